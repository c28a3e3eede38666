package main

import (
	"fmt"
	"strconv"
	"strings"

	"phitsreport/internal/deck"
	"phitsreport/internal/plan"

	"github.com/spf13/cobra"
)

func (c *cli) planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect sweep plans",
	}
	cmd.AddCommand(c.planExpandCmd(), c.planRenderCmd())
	return cmd
}

func (c *cli) planExpandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expand <plan.yaml>",
		Short: "List the cases and grow values of a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			values := make([]string, 0)
			for _, v := range p.Grow.Values() {
				values = append(values, strconv.FormatFloat(v, 'f', -1, 64))
			}
			fmt.Fprintf(out, "plan %s: template %s\n", p.Name, p.Template)
			fmt.Fprintf(out, "grow %s/%s: %s\n", p.Grow.Section, p.Grow.Key, strings.Join(values, " "))
			for _, cs := range p.Expand() {
				fmt.Fprintf(out, "case %s (%d assignments)\n", cs.Name, len(cs.Set))
			}
			return nil
		},
	}
}

func (c *cli) planRenderCmd() *cobra.Command {
	var (
		caseName string
		value    float64
		output   string
	)
	cmd := &cobra.Command{
		Use:   "render <plan.yaml>",
		Short: "Render the input deck of one case at one grow value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.Load(args[0])
			if err != nil {
				return err
			}
			var target *plan.Case
			for _, cs := range p.Expand() {
				if cs.Name == caseName {
					target = &cs
					break
				}
			}
			if target == nil {
				return fmt.Errorf("case %q not in plan %s", caseName, p.Name)
			}
			if !cmd.Flags().Changed("value") {
				value = p.Grow.Start
			}
			tmpl, err := deck.Load(p.Template)
			if err != nil {
				return err
			}
			d, err := plan.Render(tmpl, *target, p.Grow, value)
			if err != nil {
				return err
			}
			return writeDeck(cmd, d, output)
		},
	}
	cmd.Flags().StringVar(&caseName, "case", "", "case name")
	cmd.Flags().Float64Var(&value, "value", 0, "grow value (defaults to grow.start)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the deck here instead of stdout")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

func writeDeck(cmd *cobra.Command, d *deck.Deck, output string) error {
	if output == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), d.String())
		return err
	}
	return d.WriteFile(output)
}
