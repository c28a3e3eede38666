package main

import (
	"fmt"

	"phitsreport/internal/deck"

	"github.com/spf13/cobra"
)

func (c *cli) deckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deck",
		Short: "Read and edit PHITS input decks",
	}
	cmd.AddCommand(c.deckSectionsCmd(), c.deckGetCmd(), c.deckSetCmd())
	return cmd
}

func (c *cli) deckSectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sections <deck>",
		Short: "List the sections of a deck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deck.Load(args[0])
			if err != nil {
				return err
			}
			for _, s := range d.Sections() {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}

func (c *cli) deckGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <deck> <section> <key>",
		Short: "Print one value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deck.Load(args[0])
			if err != nil {
				return err
			}
			v, err := d.Get(args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func (c *cli) deckSetCmd() *cobra.Command {
	var (
		field  int
		output string
	)
	cmd := &cobra.Command{
		Use:   "set <deck> <section> <key> <value>",
		Short: "Replace one value, keeping layout and comments",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deck.Load(args[0])
			if err != nil {
				return err
			}
			if field > 0 {
				err = d.SetField(args[1], args[2], field, args[3])
			} else {
				err = d.Set(args[1], args[2], args[3])
			}
			if err != nil {
				return err
			}
			c.log.Debug().Str("section", args[1]).Str("key", args[2]).Int("field", field).Msg("deck value set")
			return writeDeck(cmd, d, output)
		},
	}
	cmd.Flags().IntVar(&field, "field", 0, "replace only this whitespace field of the value (1-based)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the deck here instead of stdout")
	return cmd
}
