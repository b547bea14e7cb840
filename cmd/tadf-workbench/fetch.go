// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zouly-group/tadf-workbench/internal/papers"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [identifiers...]",
	Short: "Download open-access PDFs by DOI or arXiv id and register them",
	Long: `Fetch downloads the open-access PDF of each DOI (located through
OpenAlex) or arXiv id into fetch.papers_dir and registers the paper as
pending, with its title from CrossRef or arXiv. Existing files are not
downloaded again.

Identifiers come from the arguments and, with --file, one per line from a
file (blank lines and lines starting with # are ignored).`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("file", "", "read identifiers from this file")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ids := append([]string(nil), args...)
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		fromFile, err := readIdentifiers(path)
		if err != nil {
			return err
		}
		ids = append(ids, fromFile...)
	}
	if len(ids) == 0 {
		return fmt.Errorf("provide identifiers as arguments or with --file")
	}

	ctx := commandContext(cmd)
	wb, err := openWorkbench(ctx, cfg)
	if err != nil {
		return err
	}
	defer wb.Close()

	result := papers.NewFetcher(cfg.Fetch).FetchBatch(ctx, ids, os.Stdout)
	for _, p := range result.Papers {
		if _, err := wb.papers.Register(ctx, p); err != nil {
			return err
		}
	}
	if result.HasFailures() {
		return fmt.Errorf("%d identifier(s) failed", result.Failed)
	}
	return nil
}

func readIdentifiers(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, sc.Err()
}
