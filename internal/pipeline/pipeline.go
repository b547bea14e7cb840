// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one paper through the workbench: document structure,
// figure classification, structure recognition, table extraction, alignment
// with the compound registry, validation, and persistence.
//
// Stages run in order. A stage failure ends the run with status error and
// keeps whatever earlier stages persisted. Only outbound collaborator calls
// (classification, recognition, extraction) run concurrently, on a bounded
// pool; registry and store writes happen after the pool drains.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/zouly-group/tadf-workbench/internal/align"
	"github.com/zouly-group/tadf-workbench/internal/dataset"
	"github.com/zouly-group/tadf-workbench/internal/document"
	"github.com/zouly-group/tadf-workbench/internal/extract"
	"github.com/zouly-group/tadf-workbench/internal/labels"
	"github.com/zouly-group/tadf-workbench/internal/ocsr"
	"github.com/zouly-group/tadf-workbench/internal/papers"
	"github.com/zouly-group/tadf-workbench/internal/quality"
	"github.com/zouly-group/tadf-workbench/internal/vision"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// DefaultConcurrency caps concurrent outbound calls within one paper.
const DefaultConcurrency = 4

// maxContextParagraphs is how much body text accompanies each table.
const maxContextParagraphs = 3

// Staged output files written under ProcessedDir/<paper id>/.
const (
	fileDocument        = "document.json"
	fileClassifications = "classifications.json"
	fileStructures      = "structures.json"
	fileExtracted       = "extracted.json"
	fileAlignment       = "alignment.json"
	fileUnmapped        = "unmapped.json"
)

// Stage numbers a step of the run.
type Stage int

const (
	StageRegister Stage = iota + 1
	StageDocument
	StageStageDocument
	StageClassify
	StageRecognize
	StageExtract
	StageAlign
	StagePersist
)

var stageNames = map[Stage]string{
	StageRegister:      "register paper",
	StageDocument:      "document structure",
	StageStageDocument: "stage document",
	StageClassify:      "classify figures",
	StageRecognize:     "recognize structures",
	StageExtract:       "extract tables",
	StageAlign:         "align labels",
	StagePersist:       "validate and persist",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("stage %d", int(s))
}

// PaperInput identifies one paper to process. ID is derived from DOI or
// the PDF filename when empty.
type PaperInput struct {
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
	DOI     string `json:"doi,omitempty" yaml:"doi,omitempty"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	PDFPath string `json:"pdf_path" yaml:"pdf_path"`
}

// Summary counts what each stage produced. Stages that did not run leave
// their fields zero.
type Summary struct {
	Tables           int                    `json:"tables" yaml:"tables"`
	Figures          int                    `json:"figures" yaml:"figures"`
	Classified       int                    `json:"classified" yaml:"classified"`
	StructureFigures int                    `json:"structure_figures" yaml:"structure_figures"`
	Structures       quality.StructureTally `json:"structures" yaml:"structures"`
	Extracted        int                    `json:"extracted" yaml:"extracted"`
	Alignment        align.Stats            `json:"alignment" yaml:"alignment"`
	Unmapped         int                    `json:"unmapped" yaml:"unmapped"`
	Photophysical    quality.Tally          `json:"photophysical" yaml:"photophysical"`
	Device           quality.Tally          `json:"device" yaml:"device"`
	Upsert           dataset.UpsertResult   `json:"upsert" yaml:"upsert"`
}

// RunResult is the outcome of one paper's run.
type RunResult struct {
	RunID  string            `json:"run_id" yaml:"run_id"`
	Paper  types.Paper       `json:"paper" yaml:"paper"`
	Status types.PaperStatus `json:"status" yaml:"status"`

	// Stage is the last stage reached: the failed one, or StagePersist on
	// success.
	Stage   Stage   `json:"stage" yaml:"stage"`
	Summary Summary `json:"summary" yaml:"summary"`

	// ReportPath is the written quality report, empty when the run did
	// not reach it.
	ReportPath string        `json:"report_path,omitempty" yaml:"report_path,omitempty"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	Err        error         `json:"-" yaml:"-"`
}

// Failed reports whether the run ended in error.
func (r RunResult) Failed() bool { return r.Err != nil }

// Deps are the collaborators a pipeline drives.
type Deps struct {
	Papers     *papers.Registry
	Documents  document.Source
	Classifier vision.Classifier
	Recognizer ocsr.Recognizer
	Extractor  extract.TableExtractor
	Aligner    *align.Resolver
	Quality    *quality.Engine
	Dataset    *dataset.Builder

	// Mapper assigns caption labels to figure regions. Defaults to
	// labels.Positional.
	Mapper labels.RegionMapper
}

// Options tunes a pipeline.
type Options struct {
	// Concurrency caps concurrent outbound calls (default 4).
	Concurrency int

	// ProcessedDir receives staged outputs, one directory per paper.
	ProcessedDir string

	// Progress receives one line per paper and a batch summary. Nil
	// discards them.
	Progress io.Writer
}

// Pipeline processes papers.
type Pipeline struct {
	deps     Deps
	opts     Options
	newRunID func() string
	now      func() time.Time
}

// New returns a pipeline over deps.
func New(deps Deps, opts Options) *Pipeline {
	if deps.Mapper == nil {
		deps.Mapper = labels.Positional{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	return &Pipeline{
		deps:     deps,
		opts:     opts,
		newRunID: func() string { return uuid.Must(uuid.NewV7()).String() },
		now:      time.Now,
	}
}

// run carries one paper's state between stages.
type run struct {
	id     string
	paper  types.Paper
	dir    string
	log    *slog.Logger
	result *RunResult

	doc             *types.Document
	classifications []types.Classification
	structures      []types.StructureCandidate
	photophysical   []*types.PhotophysicalRecord
	devices         []*types.DeviceRecord
	alignment       *align.Alignment
}

// Run processes one paper through every stage. The returned result carries
// the stage reached and the error that ended the run, if any; the paper's
// status is persisted either way once it is registered.
func (p *Pipeline) Run(ctx context.Context, in PaperInput) RunResult {
	start := p.now()
	res := RunResult{RunID: p.newRunID(), Status: types.PaperPending}
	r := &run{id: res.RunID, result: &res, log: slog.With("run", res.RunID)}

	stages := []struct {
		stage Stage
		fn    func(context.Context, *run) error
	}{
		{StageRegister, func(ctx context.Context, r *run) error { return p.register(ctx, r, in) }},
		{StageDocument, p.loadDocument},
		{StageStageDocument, p.stageDocument},
		{StageClassify, p.classifyFigures},
		{StageRecognize, p.recognizeStructures},
		{StageExtract, p.extractTables},
		{StageAlign, p.align},
		{StagePersist, p.persist},
	}

	for _, s := range stages {
		res.Stage = s.stage
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}
		if err := s.fn(ctx, r); err != nil {
			res.Err = fmt.Errorf("stage %d (%s): %w", s.stage, s.stage, err)
			break
		}
	}
	res.Duration = p.now().Sub(start)

	if res.Err != nil {
		res.Status = types.PaperError
		r.log.Error("run failed", "stage", int(res.Stage), "error", res.Err)
	} else {
		res.Status = types.PaperCompleted
		r.log.Info("run completed", "duration", res.Duration)
	}

	if res.Paper.ID != "" {
		msg := ""
		if res.Err != nil {
			msg = res.Err.Error()
		}
		// Status is recorded even when ctx was canceled mid-run.
		if err := p.deps.Papers.SetStatus(context.WithoutCancel(ctx), res.Paper.ID, res.Status, msg, res.RunID); err != nil {
			slog.Error("recording paper status", "paper", res.Paper.ID, "error", err)
		}
		res.Paper.Status = res.Status
		res.Paper.Message = msg
		res.Paper.LastRunID = res.RunID
	}
	return res
}

// BatchResult holds the outcome of a batch run.
type BatchResult struct {
	Completed int
	Failed    int
	Results   []RunResult
}

// Total returns the number of papers processed.
func (b BatchResult) Total() int { return b.Completed + b.Failed }

// HasFailures reports whether any paper failed.
func (b BatchResult) HasFailures() bool { return b.Failed > 0 }

// RunBatch processes papers one after another, continuing after failures.
// It stops early only when ctx is canceled.
func (p *Pipeline) RunBatch(ctx context.Context, inputs []PaperInput) BatchResult {
	w := p.opts.Progress
	var out BatchResult
	for _, in := range inputs {
		if ctx.Err() != nil {
			break
		}
		name := in.ID
		if name == "" {
			name = filepath.Base(in.PDFPath)
		}
		fmt.Fprintf(w, "processing %s\n", name)

		res := p.Run(ctx, in)
		out.Results = append(out.Results, res)
		if res.Failed() {
			out.Failed++
			fmt.Fprintf(w, "failed  %s: %v\n", name, res.Err)
			continue
		}
		out.Completed++
		s := res.Summary
		fmt.Fprintf(w, "completed %s (%d tables, %d structures, %d records stored, %d unmapped)\n",
			res.Paper.ID, s.Tables, s.Structures.OK, len(s.Upsert.Succeeded), s.Unmapped)
	}
	fmt.Fprintf(w, "\ncompleted: %d, failed: %d\n", out.Completed, out.Failed)
	return out
}

// writeStaged writes v as indented JSON into the run's directory.
func writeStaged(dir, name string, v any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// ReadStaged decodes a staged output file of a paper.
func ReadStaged(processedDir, paperID, name string, v any) error {
	data, err := os.ReadFile(filepath.Join(processedDir, paperID, name))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
