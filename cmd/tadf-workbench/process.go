// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zouly-group/tadf-workbench/internal/align"
	"github.com/zouly-group/tadf-workbench/internal/container"
	"github.com/zouly-group/tadf-workbench/internal/document"
	"github.com/zouly-group/tadf-workbench/internal/extract"
	"github.com/zouly-group/tadf-workbench/internal/llm"
	"github.com/zouly-group/tadf-workbench/internal/ocsr"
	"github.com/zouly-group/tadf-workbench/internal/pipeline"
	"github.com/zouly-group/tadf-workbench/internal/quality"
	"github.com/zouly-group/tadf-workbench/internal/vision"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

var processCmd = &cobra.Command{
	Use:   "process [pdfs...]",
	Short: "Run papers through extraction, alignment, and validation",
	Long: `Process runs each PDF through the full pipeline: document structure,
figure classification, structure recognition, table extraction, label
alignment against the compound registry, validation, and storage.

Staged outputs and a quality report are written per paper under
pipeline.processed_dir. A failed paper does not stop the batch; the
command exits non-zero when any paper failed.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().String("dir", "", "process every PDF in this directory")
	processCmd.Flags().String("id", "", "paper id (single PDF only; default derived from DOI or filename)")
	processCmd.Flags().String("doi", "", "paper DOI (single PDF only)")
	processCmd.Flags().String("title", "", "paper title (single PDF only)")
	processCmd.Flags().Int("concurrency", 0, "concurrent outbound calls per paper (overrides pipeline.concurrency)")

	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	inputs, err := processInputs(cmd, args)
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
		cfg.Pipeline.Concurrency = n
	}

	ctx := commandContext(cmd)

	wb, err := openWorkbench(ctx, cfg)
	if err != nil {
		return err
	}
	defer wb.Close()

	p, err := newPipeline(ctx, wb, cfg)
	if err != nil {
		return err
	}

	result := p.RunBatch(ctx, inputs)
	if result.HasFailures() {
		return fmt.Errorf("%d paper(s) failed processing", result.Failed)
	}
	return nil
}

func processInputs(cmd *cobra.Command, args []string) ([]pipeline.PaperInput, error) {
	dir, _ := cmd.Flags().GetString("dir")
	paths := append([]string(nil), args...)
	if dir != "" {
		found, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("provide one or more PDF paths or --dir")
	}

	id, _ := cmd.Flags().GetString("id")
	doi, _ := cmd.Flags().GetString("doi")
	title, _ := cmd.Flags().GetString("title")
	if len(paths) > 1 && (id != "" || doi != "" || title != "") {
		return nil, fmt.Errorf("--id, --doi, and --title apply to a single PDF")
	}

	inputs := make([]pipeline.PaperInput, len(paths))
	for i, path := range paths {
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil, fmt.Errorf("%s: not a PDF", path)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		inputs[i] = pipeline.PaperInput{ID: id, DOI: doi, Title: title, PDFPath: path}
	}
	return inputs, nil
}

// newPipeline wires the configured collaborators.
func newPipeline(ctx context.Context, wb *workbench, c types.Config) (*pipeline.Pipeline, error) {
	docs, err := newDocumentSource(ctx, c.Document)
	if err != nil {
		return nil, err
	}
	rules, err := quality.LoadRules(c.Quality.RulesFile)
	if err != nil {
		return nil, err
	}

	model := llm.New(c.LLM)
	return pipeline.New(pipeline.Deps{
		Papers:     wb.papers,
		Documents:  docs,
		Classifier: vision.NewChatClassifier(model, ""),
		Recognizer: ocsr.NewDecimerClient(c.Recognition),
		Extractor:  extract.NewChatExtractor(model, c.LLM.MaxRetries),
		Aligner:    align.NewResolver(wb.registry),
		Quality:    quality.NewEngine(rules),
		Dataset:    wb.dataset,
	}, pipeline.Options{
		Concurrency:  c.Pipeline.Concurrency,
		ProcessedDir: c.Pipeline.ProcessedDir,
		Progress:     os.Stdout,
	}), nil
}

func newDocumentSource(ctx context.Context, c types.DocumentConfig) (document.Source, error) {
	switch c.Backend {
	case types.DocumentContainer:
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		return document.NewContainerSource(ctx, rt, c.Image, c.OutputDir)
	default:
		return document.NewContentListSource(c.OutputDir), nil
	}
}
