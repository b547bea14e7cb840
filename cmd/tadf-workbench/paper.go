// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zouly-group/tadf-workbench/internal/papers"
	"github.com/zouly-group/tadf-workbench/internal/ui"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

var papersCmd = &cobra.Command{
	Use:   "papers [identifier]",
	Short: "List registered papers and their last processing status",
	Long: `Papers lists every registered paper with the status of its most recent
run. Pass an identifier (paper id, DOI, or arXiv id) to classify it and
show the matching paper.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPapers,
}

func init() {
	papersCmd.Flags().String("status", "", "filter by status: pending, completed, error")
	papersCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(papersCmd)
}

func runPapers(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx := commandContext(cmd)
	wb, err := openWorkbench(ctx, cfg)
	if err != nil {
		return err
	}
	defer wb.Close()

	if len(args) == 1 {
		kind, value := papers.Classify(args[0])
		id := value
		switch kind {
		case papers.TypeDOI:
			id, err = papers.ID(value, "")
		case papers.TypeArxiv:
			id, err = papers.ID("", value+".pdf")
		}
		if err != nil {
			return err
		}
		p, err := wb.papers.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("%s %s: %w", kind, value, err)
		}
		if jsonOutput {
			return writeJSON(os.Stdout, p)
		}
		return renderPapers([]types.Paper{p})
	}

	list, err := wb.papers.List(ctx, types.PaperStatus(status))
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(os.Stdout, list)
	}
	if len(list) == 0 {
		fmt.Println("No papers found.")
		return nil
	}
	return renderPapers(list)
}

func renderPapers(list []types.Paper) error {
	t := ui.Table{Headers: []string{"paper", "status", "pages", "updated", "message"}}
	for _, p := range list {
		t.AddRow(p.ID, p.Status, p.Pages, p.UpdatedAt.Format("2006-01-02 15:04"), truncate(p.Message, 60))
	}
	return t.Render(os.Stdout)
}
