// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zouly-group/tadf-workbench/internal/labels"
)

var labelsCmd = &cobra.Command{
	Use:   "labels <caption>",
	Short: "Show the compound labels a figure caption enumerates",
	Long: `Labels runs the caption parser on the given text and prints the labels
found, with the pattern and caption text behind each match. Useful for
tracing labels produced by the bare "X and Y" adjacency pattern.`,
	Args: cobra.MinimumNArgs(1),
	// The parser needs no configuration or secrets.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE:              runLabels,
}

func init() {
	labelsCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(labelsCmd)
}

func runLabels(cmd *cobra.Command, args []string) error {
	res := labels.Parse(strings.Join(args, " "))

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(os.Stdout, res)
	}
	if len(res.Labels) == 0 {
		fmt.Println("No labels found.")
		return nil
	}
	fmt.Fprintf(os.Stdout, "labels: %s\n", strings.Join(res.Labels, ", "))
	for _, m := range res.Matches {
		fmt.Fprintf(os.Stdout, "  %-9s  %q -> %s\n", m.Pattern, m.Text, strings.Join(m.Labels, ", "))
	}
	return nil
}
