package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"phitsreport/internal/logging"
	"phitsreport/internal/report"

	"github.com/spf13/cobra"
)

var errReportHasErrors = errors.New("report has parse errors")

func (c *cli) parseCmd() *cobra.Command {
	var (
		kinds    []string
		encoding string
		parallel bool
		asJSON   bool
		strict   bool
	)
	cmd := &cobra.Command{
		Use:   "parse <report>",
		Short: "Parse a report file and print its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks := make([]report.Kind, 0, len(kinds))
			for _, k := range kinds {
				ks = append(ks, report.Kind(k))
			}
			p := report.NewParser(
				report.WithLogger(logging.Component(c.log, "parser")),
				report.WithStepTolerance(c.cfg.StepTolerance),
				report.WithParallel(parallel),
				report.WithEncoding(encoding),
			)
			rep, err := p.ParseFile(args[0], ks)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rep); err != nil {
					return err
				}
			} else if err := printOverview(out, rep); err != nil {
				return err
			}
			if strict && len(rep.Errors) > 0 {
				return fmt.Errorf("%w: %d", errReportHasErrors, len(rep.Errors))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "report kind to extract (repeatable)")
	cmd.Flags().StringVar(&encoding, "encoding", c.cfg.ReportEncoding, "report charset")
	cmd.Flags().BoolVar(&parallel, "parallel", c.cfg.ParallelParse, "parse kinds concurrently")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full parsed report as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any page fails")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func printOverview(w io.Writer, rep *report.ParsedReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tPAGES\tERRORS")
	for _, k := range rep.Requested {
		pages := 0
		if m, ok := rep.Model(k); ok {
			pages = m.Len()
		} else if k == report.KindSummary && rep.Summary != nil {
			pages = 1
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\n", k, pages, len(rep.ErrorsFor(k)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, d := range rep.Details() {
		fmt.Fprintf(w, "error [%s] %s\n", d.Code, d.Message)
	}
	for _, wn := range rep.Warnings {
		fmt.Fprintf(w, "warning %s page %d: %s\n", wn.Kind, wn.Page, wn.Message)
	}
	return nil
}

func (c *cli) kindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the supported report kinds",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, k := range report.Kinds() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}
}
