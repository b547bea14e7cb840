// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Compound is a canonical registry entry. Compound ids are never reused and
// entries are never deleted.
type Compound struct {
	CompoundID       string `json:"compound_id" yaml:"compound_id"`
	OriginPaperID    string `json:"origin_paper_id" yaml:"origin_paper_id"`
	OriginLocalLabel string `json:"origin_local_label" yaml:"origin_local_label"`
	DisplayName      string `json:"display_name,omitempty" yaml:"display_name,omitempty"`

	// StructureEncoding is the canonical structure encoding, empty when the
	// compound has no recognized structure yet.
	StructureEncoding   string   `json:"structure_encoding,omitempty" yaml:"structure_encoding,omitempty"`
	StructureConfidence *float64 `json:"structure_confidence,omitempty" yaml:"structure_confidence,omitempty"`

	// Aligned is false for paper-scoped fallback ids created without a
	// structure.
	Aligned bool `json:"aligned" yaml:"aligned"`

	// Provenance lists every "paper:label" pair resolved to this compound,
	// in the order they were first seen.
	Provenance []string `json:"provenance" yaml:"provenance"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// LocalRef identifies a compound as written inside one paper.
type LocalRef struct {
	PaperID    string `json:"paper_id" yaml:"paper_id"`
	LocalLabel string `json:"local_label" yaml:"local_label"`
}

// String renders the ref in provenance form, "paper:label".
func (r LocalRef) String() string { return r.PaperID + ":" + r.LocalLabel }

// StructureStatus is the outcome of optical structure recognition.
type StructureStatus string

const (
	StructureOK            StructureStatus = "ok"
	StructureLowConfidence StructureStatus = "low_confidence"
	StructureParseFailed   StructureStatus = "parse_failed"
)

// StructureCandidate is one recognized structure image. Only candidates with
// status ok seed compound identity; the rest are kept for manual correction.
type StructureCandidate struct {
	PaperID  string `json:"paper_id" yaml:"paper_id"`
	FigureID string `json:"figure_id" yaml:"figure_id"`
	RegionID string `json:"region_id,omitempty" yaml:"region_id,omitempty"`
	ImageRef string `json:"image_ref" yaml:"image_ref"`

	// LocalLabel is the label mapped from the figure caption, empty when
	// the caption named no label for this region.
	LocalLabel string `json:"local_label,omitempty" yaml:"local_label,omitempty"`

	Encoding   string          `json:"encoding" yaml:"encoding"`
	Confidence float64         `json:"confidence" yaml:"confidence"`
	Status     StructureStatus `json:"status" yaml:"status"`
}

// Usable reports whether the candidate may seed compound identity.
func (c StructureCandidate) Usable() bool {
	return c.Status == StructureOK && c.Encoding != ""
}
