// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zouly-group/tadf-workbench/internal/labels"
	"github.com/zouly-group/tadf-workbench/internal/ui"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

var compoundCmd = &cobra.Command{
	Use:   "compound",
	Short: "Query the compound registry",
}

var compoundShowCmd = &cobra.Command{
	Use:   "show <compound-id>",
	Short: "Show one compound with its provenance",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompoundShow,
}

var compoundFindCmd = &cobra.Command{
	Use:   "find <paper-id> <label>",
	Short: "Find the compound a paper's local label resolved to",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompoundFind,
}

var compoundListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every compound in creation order",
	RunE:  runCompoundList,
}

func init() {
	compoundShowCmd.Flags().Bool("json", false, "output as JSON")
	compoundFindCmd.Flags().Bool("json", false, "output as JSON")
	compoundListCmd.Flags().Bool("json", false, "output as JSON")
	compoundListCmd.Flags().Bool("unaligned", false, "only compounds without a structure-backed alignment")

	compoundCmd.AddCommand(compoundShowCmd)
	compoundCmd.AddCommand(compoundFindCmd)
	compoundCmd.AddCommand(compoundListCmd)

	rootCmd.AddCommand(compoundCmd)
}

func runCompoundShow(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	wb, err := openWorkbench(ctx, cfg)
	if err != nil {
		return err
	}
	defer wb.Close()

	c, err := wb.registry.Lookup(ctx, args[0])
	if err != nil {
		return err
	}
	return printCompound(cmd, c)
}

func runCompoundFind(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	wb, err := openWorkbench(ctx, cfg)
	if err != nil {
		return err
	}
	defer wb.Close()

	id, err := wb.registry.FindByLocal(ctx, args[0], labels.NormalizeLabel(args[1]))
	if err != nil {
		return err
	}
	c, err := wb.registry.Lookup(ctx, id)
	if err != nil {
		return err
	}
	return printCompound(cmd, c)
}

func printCompound(cmd *cobra.Command, c *types.Compound) error {
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(os.Stdout, c)
	}

	fmt.Fprintf(os.Stdout, "%s\n", ui.Accent.Render(c.CompoundID))
	fmt.Fprintf(os.Stdout, "  origin:     %s:%s\n", c.OriginPaperID, c.OriginLocalLabel)
	if c.DisplayName != "" {
		fmt.Fprintf(os.Stdout, "  name:       %s\n", c.DisplayName)
	}
	if c.StructureEncoding != "" {
		fmt.Fprintf(os.Stdout, "  structure:  %s\n", c.StructureEncoding)
	}
	if c.StructureConfidence != nil {
		fmt.Fprintf(os.Stdout, "  confidence: %.2f\n", *c.StructureConfidence)
	}
	fmt.Fprintf(os.Stdout, "  aligned:    %t\n", c.Aligned)
	fmt.Fprintf(os.Stdout, "  provenance: %s\n", strings.Join(c.Provenance, ", "))
	return nil
}

func runCompoundList(cmd *cobra.Command, args []string) error {
	unaligned, _ := cmd.Flags().GetBool("unaligned")

	ctx := commandContext(cmd)
	wb, err := openWorkbench(ctx, cfg)
	if err != nil {
		return err
	}
	defer wb.Close()

	all, err := wb.registry.List(ctx)
	if err != nil {
		return err
	}
	compounds := all[:0]
	for _, c := range all {
		if unaligned && c.Aligned {
			continue
		}
		compounds = append(compounds, c)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(os.Stdout, compounds)
	}
	if len(compounds) == 0 {
		fmt.Println("No compounds found.")
		return nil
	}

	t := ui.Table{Headers: []string{"compound", "origin", "structure", "labels"}}
	for _, c := range compounds {
		structure := "-"
		if c.StructureEncoding != "" {
			structure = truncate(c.StructureEncoding, 40)
		}
		t.AddRow(c.CompoundID, c.OriginPaperID+":"+c.OriginLocalLabel, structure, len(c.Provenance))
	}
	if err := t.Render(os.Stdout); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\n%d compounds\n", len(compounds))
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
