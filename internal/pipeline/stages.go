// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/zouly-group/tadf-workbench/internal/align"
	"github.com/zouly-group/tadf-workbench/internal/dataset"
	"github.com/zouly-group/tadf-workbench/internal/document"
	"github.com/zouly-group/tadf-workbench/internal/labels"
	"github.com/zouly-group/tadf-workbench/internal/quality"
	"github.com/zouly-group/tadf-workbench/internal/vision"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

func (p *Pipeline) register(ctx context.Context, r *run, in PaperInput) error {
	paper, err := p.deps.Papers.Register(ctx, types.Paper{
		ID:        in.ID,
		DOI:       in.DOI,
		Title:     in.Title,
		PDFPath:   in.PDFPath,
		LastRunID: r.id,
	})
	if err != nil {
		return err
	}
	r.paper = paper
	r.result.Paper = paper
	r.dir = filepath.Join(p.opts.ProcessedDir, paper.ID)
	r.log = r.log.With("paper", paper.ID)
	r.log.Info("registered paper", "pages", paper.Pages)
	return nil
}

func (p *Pipeline) loadDocument(ctx context.Context, r *run) error {
	doc, err := p.deps.Documents.Load(ctx, r.paper)
	if err != nil {
		return err
	}
	r.doc = doc
	r.result.Summary.Tables = len(doc.Tables)
	r.result.Summary.Figures = len(doc.Figures)
	r.log.Info("loaded document", "tables", len(doc.Tables), "figures", len(doc.Figures), "paragraphs", len(doc.Paragraphs))
	return nil
}

func (p *Pipeline) stageDocument(_ context.Context, r *run) error {
	return writeStaged(r.dir, fileDocument, r.doc)
}

// pool runs fn over items with at most limit calls in flight. fn reports
// whether its result should be kept; results keep item order. Failures are
// fn's to log: the pool itself only fails when ctx is canceled.
func pool[T, R any](ctx context.Context, limit int, items []T, fn func(context.Context, T) (R, bool)) ([]R, error) {
	results := make([]R, len(items))
	keep := make([]bool, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, it := range items {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i], keep[i] = fn(gctx, it)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]R, 0, len(items))
	for i, ok := range keep {
		if ok {
			out = append(out, results[i])
		}
	}
	return out, nil
}

func (p *Pipeline) classifyFigures(ctx context.Context, r *run) error {
	cls, err := pool(ctx, p.opts.Concurrency, r.doc.Figures, func(ctx context.Context, fig types.Figure) (types.Classification, bool) {
		cl, err := p.deps.Classifier.Classify(ctx, fig)
		if err != nil {
			r.log.Warn("figure classification failed", "figure", fig.FigureID, "error", err)
			return cl, false
		}
		cl.FigureID = fig.FigureID
		return cl, true
	})
	if err != nil {
		return err
	}
	r.classifications = cls
	r.result.Summary.Classified = len(cls)
	return writeStaged(r.dir, fileClassifications, cls)
}

// regionJob is one figure region to recognize, with its caption label.
type regionJob struct {
	figure types.Figure
	region types.Region
	label  string
}

func (p *Pipeline) recognizeStructures(ctx context.Context, r *run) error {
	isStructure := make(map[string]bool, len(r.classifications))
	for _, cl := range r.classifications {
		if vision.IsStructure(cl) {
			isStructure[cl.FigureID] = true
		}
	}

	var jobs []regionJob
	for _, fig := range r.doc.Figures {
		if !isStructure[fig.FigureID] {
			continue
		}
		r.result.Summary.StructureFigures++
		parsed := labels.Parse(fig.Caption)
		for _, m := range parsed.Matches {
			r.log.Debug("caption label match", "figure", fig.FigureID, "pattern", m.Pattern, "text", m.Text, "labels", m.Labels)
		}
		figLabels := parsed.Labels
		if len(fig.Regions) == 0 && len(figLabels) > 1 {
			// The whole image is one scheme; its structure belongs to no
			// single label and stays in the candidates for manual correction.
			r.log.Info("unsegmented figure names several labels, leaving structure unlabeled",
				"figure", fig.FigureID, "labels", figLabels)
			figLabels = nil
		}
		for _, a := range p.deps.Mapper.Map(fig.RegionsOrWhole(), figLabels) {
			jobs = append(jobs, regionJob{figure: fig, region: a.Region, label: a.Label})
		}
	}

	cands, err := pool(ctx, p.opts.Concurrency, jobs, func(ctx context.Context, j regionJob) (types.StructureCandidate, bool) {
		c := types.StructureCandidate{
			PaperID:    r.paper.ID,
			FigureID:   j.figure.FigureID,
			RegionID:   j.region.RegionID,
			ImageRef:   j.region.ImageRef,
			LocalLabel: j.label,
			Status:     types.StructureParseFailed,
		}
		pred, err := p.deps.Recognizer.Recognize(ctx, j.region.ImageRef)
		if err != nil {
			r.log.Warn("structure recognition failed", "figure", j.figure.FigureID, "region", j.region.RegionID, "error", err)
			return c, true
		}
		c.Encoding = pred.Encoding
		c.Confidence = pred.Confidence
		c.Status = pred.Status
		return c, true
	})
	if err != nil {
		return err
	}
	r.structures = cands
	r.result.Summary.Structures = quality.CountStructures(cands)
	return writeStaged(r.dir, fileStructures, cands)
}

// extracted is the staged form of the extraction stage.
type extracted struct {
	Photophysical []*types.PhotophysicalRecord `json:"photophysical"`
	Device        []*types.DeviceRecord        `json:"device"`
}

func (p *Pipeline) extractTables(ctx context.Context, r *run) error {
	var tables []types.Table
	for _, t := range r.doc.Tables {
		if t.Kind == types.TablePhotophysical || t.Kind == types.TableDevice {
			tables = append(tables, t)
		}
	}

	perTable, err := pool(ctx, p.opts.Concurrency, tables, func(ctx context.Context, t types.Table) ([]types.Record, bool) {
		paragraphs := document.ContextParagraphs(r.doc, t, maxContextParagraphs)
		recs, err := p.deps.Extractor.Extract(ctx, r.paper.ID, t, paragraphs)
		if err != nil {
			r.log.Warn("table extraction failed", "table", t.TableID, "error", err)
			return nil, false
		}
		return recs, true
	})
	if err != nil {
		return err
	}

	for _, recs := range perTable {
		for _, rec := range recs {
			switch v := rec.(type) {
			case *types.PhotophysicalRecord:
				r.photophysical = append(r.photophysical, v)
			case *types.DeviceRecord:
				r.devices = append(r.devices, v)
			}
		}
	}
	r.result.Summary.Extracted = len(r.photophysical) + len(r.devices)
	r.log.Info("extracted records", "photophysical", len(r.photophysical), "device", len(r.devices))
	return writeStaged(r.dir, fileExtracted, extracted{Photophysical: r.photophysical, Device: r.devices})
}

func (p *Pipeline) align(ctx context.Context, r *run) error {
	a, err := p.deps.Aligner.Align(ctx, r.paper.ID, r.structures, r.photophysical, r.devices)
	if err != nil {
		return err
	}
	r.alignment = a
	r.result.Summary.Alignment = a.Stats
	r.log.Info("aligned labels", "labels", a.Stats.TotalLabels, "aligned", a.Stats.Aligned, "created", a.Stats.Created)
	return writeStaged(r.dir, fileAlignment, a)
}

func (p *Pipeline) persist(ctx context.Context, r *run) error {
	photo, photoUnmapped := align.MapRecords(r.alignment, r.photophysical)
	dev, devUnmapped := align.MapRecords(r.alignment, r.devices)

	// Every extracted record is scored so the report covers unmapped rows.
	r.result.Summary.Photophysical = quality.ScoreAll(p.deps.Quality, r.photophysical)
	r.result.Summary.Device = quality.ScoreAll(p.deps.Quality, r.devices)

	unmapped := extracted{Photophysical: photoUnmapped, Device: devUnmapped}
	r.result.Summary.Unmapped = len(photoUnmapped) + len(devUnmapped)
	if r.result.Summary.Unmapped > 0 {
		r.log.Warn("records without a compound", "count", r.result.Summary.Unmapped)
	}
	if err := writeStaged(r.dir, fileUnmapped, unmapped); err != nil {
		return err
	}

	records := append(dataset.Records(photo), dataset.Records(dev)...)
	up, err := p.deps.Dataset.Upsert(ctx, records)
	r.result.Summary.Upsert = up
	if err != nil {
		return err
	}

	path, err := quality.WriteReport(r.dir, quality.Report{
		PaperID:       r.paper.ID,
		RunID:         r.id,
		GeneratedAt:   p.now().UTC(),
		Photophysical: r.result.Summary.Photophysical,
		Device:        r.result.Summary.Device,
		Structures:    r.result.Summary.Structures,
	})
	if err != nil {
		return err
	}
	r.result.ReportPath = path
	return nil
}
