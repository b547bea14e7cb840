// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/zouly-group/tadf-workbench/internal/quality"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the active validation rules or check a rules file",
	Long: `Rules prints the validation rule table in effect: the file named by
quality.rules_file, or the built-in table. With --check, the given file
is parsed and checked against the record schemas instead.`,
	RunE: runRules,
}

func init() {
	rulesCmd.Flags().String("check", "", "validate this rules file and exit")
	rootCmd.AddCommand(rulesCmd)
}

func runRules(cmd *cobra.Command, args []string) error {
	if path, _ := cmd.Flags().GetString("check"); path != "" {
		rs, err := quality.LoadRules(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: ok (%d photophysical, %d device rules)\n",
			path, len(rs[types.KindPhotophysical]), len(rs[types.KindDevice]))
		return nil
	}

	rs, err := quality.LoadRules(cfg.Quality.RulesFile)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(map[string][]quality.Rule{
		string(types.KindPhotophysical): rs[types.KindPhotophysical],
		string(types.KindDevice):        rs[types.KindDevice],
	}); err != nil {
		return err
	}
	return enc.Close()
}
