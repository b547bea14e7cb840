// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zouly-group/tadf-workbench/internal/dataset"
	"github.com/zouly-group/tadf-workbench/internal/ui"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the registry, the measurement stores, and paper status",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().Bool("json", false, "output statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	wb, err := openWorkbench(ctx, cfg)
	if err != nil {
		return err
	}
	defer wb.Close()

	stats, err := wb.dataset.Statistics(ctx)
	if err != nil {
		return err
	}
	counts, err := wb.papers.Counts(ctx)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(os.Stdout, struct {
			dataset.Statistics
			PaperStatus map[types.PaperStatus]int `json:"paper_status"`
		}{stats, counts})
	}

	papers := ui.Table{Title: "Papers", Headers: []string{"status", "count"}}
	for _, s := range []types.PaperStatus{types.PaperPending, types.PaperCompleted, types.PaperError} {
		papers.AddRow(s, counts[s])
	}

	compounds := ui.Table{Title: "Compounds", Headers: []string{"total", "with structure", "unaligned", "labels"}}
	compounds.AddRow(stats.Compounds.Compounds, stats.Compounds.WithStructure, stats.Compounds.Unaligned, stats.Compounds.Labels)

	measurements := ui.Table{
		Title:   "Measurements",
		Headers: []string{"store", "total", "valid", "suspect", "invalid", "with structure"},
	}
	for _, k := range types.Kinds {
		m := stats.Measurements[k]
		measurements.AddRow(k, m.Total, m.Valid, m.Suspect, m.Invalid, m.StructureConfirmed)
	}

	for i, t := range []*ui.Table{&papers, &compounds, &measurements} {
		if i > 0 {
			fmt.Fprintln(os.Stdout)
		}
		if err := t.Render(os.Stdout); err != nil {
			return err
		}
	}
	return nil
}
