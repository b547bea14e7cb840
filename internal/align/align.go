// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package align reconciles the local labels one paper uses across its
// recognized structures and measurement tables with the compound registry,
// then attaches the resolved compound ids to the paper's records.
package align

import (
	"context"
	"fmt"

	"github.com/zouly-group/tadf-workbench/internal/labels"
	"github.com/zouly-group/tadf-workbench/internal/registry"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// Stats summarizes one paper's alignment. Unaligned counts labels that got
// a fallback id because no usable structure was recognized for them.
type Stats struct {
	PaperID     string `json:"paper_id" yaml:"paper_id"`
	TotalLabels int    `json:"total_labels" yaml:"total_labels"`
	Aligned     int    `json:"aligned" yaml:"aligned"`
	Unaligned   int    `json:"unaligned" yaml:"unaligned"`
	Created     int    `json:"created" yaml:"created"`
}

// Alignment is the label → compound map for one paper.
type Alignment struct {
	Stats     Stats             `json:"stats" yaml:"stats"`
	Compounds map[string]string `json:"compounds" yaml:"compounds"`
}

// CompoundFor returns the compound id for a label as written in a record
// or caption.
func (a *Alignment) CompoundFor(label string) (string, bool) {
	id, ok := a.Compounds[labels.NormalizeLabel(label)]
	return id, ok
}

// Resolver aligns papers against a registry.
type Resolver struct {
	reg *registry.Registry
}

// NewResolver returns a resolver that writes through reg.
func NewResolver(reg *registry.Registry) *Resolver {
	return &Resolver{reg: reg}
}

// Align collects every label seen in structures and records, picks the
// highest-confidence usable structure for each, and resolves all of them in
// one registry call. A label without a structure still resolves, to a
// fallback id.
func (r *Resolver) Align(ctx context.Context, paperID string, structures []types.StructureCandidate, photophysical []*types.PhotophysicalRecord, devices []*types.DeviceRecord) (*Alignment, error) {
	var order []string
	reqs := make(map[string]*registry.ResolveRequest)
	best := make(map[string]types.StructureCandidate)

	see := func(label, displayName string) string {
		key := labels.NormalizeLabel(label)
		if key == "" {
			return ""
		}
		req, ok := reqs[key]
		if !ok {
			req = &registry.ResolveRequest{LocalLabel: key}
			reqs[key] = req
			order = append(order, key)
		}
		if req.DisplayName == "" {
			req.DisplayName = displayName
		}
		return key
	}

	for _, c := range structures {
		key := see(c.LocalLabel, "")
		if key == "" || !c.Usable() {
			continue
		}
		if cur, ok := best[key]; !ok || c.Confidence > cur.Confidence {
			best[key] = c
		}
	}
	for _, rec := range photophysical {
		see(rec.LocalLabel, rec.Name)
	}
	for _, rec := range devices {
		see(rec.LocalLabel, rec.EmitterName)
	}

	labels.SortLabels(order)

	batch := make([]registry.ResolveRequest, 0, len(order))
	for _, key := range order {
		req := *reqs[key]
		if c, ok := best[key]; ok {
			conf := c.Confidence
			req.Encoding = c.Encoding
			req.Confidence = &conf
		}
		batch = append(batch, req)
	}

	a := &Alignment{
		Stats:     Stats{PaperID: paperID, TotalLabels: len(batch)},
		Compounds: make(map[string]string, len(batch)),
	}
	if len(batch) == 0 {
		return a, nil
	}

	res, err := r.reg.ResolvePaper(ctx, paperID, batch)
	if err != nil {
		return nil, fmt.Errorf("aligning %s: %w", paperID, err)
	}
	for key, rr := range res {
		a.Compounds[key] = rr.CompoundID
		if rr.Aligned {
			a.Stats.Aligned++
		}
		if rr.Created {
			a.Stats.Created++
		}
	}
	a.Stats.Unaligned = a.Stats.TotalLabels - a.Stats.Aligned
	return a, nil
}

// MapRecords attaches compound ids to records whose label resolved. Records
// without a label, or whose label is unknown to the alignment, are returned
// unmapped and untouched. No record is dropped.
func MapRecords[R types.Record](a *Alignment, records []R) (mapped, unmapped []R) {
	for _, rec := range records {
		h := rec.Header()
		id, ok := a.CompoundFor(h.LocalLabel)
		if h.LocalLabel == "" || !ok {
			unmapped = append(unmapped, rec)
			continue
		}
		h.CompoundID = id
		mapped = append(mapped, rec)
	}
	return mapped, unmapped
}
