// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// TableKind classifies a table by the measurements it reports.
type TableKind string

const (
	TablePhotophysical TableKind = "photophysical"
	TableDevice        TableKind = "device"
	TableComputational TableKind = "computational"
	TableUnknown       TableKind = "unknown"
)

// Table is one table found by the document-structure service.
type Table struct {
	TableID string `json:"table_id" yaml:"table_id"`
	Caption string `json:"caption" yaml:"caption"`

	// Content is the tabular body rendered as Markdown.
	Content string    `json:"content" yaml:"content"`
	Page    int       `json:"page" yaml:"page"`
	Kind    TableKind `json:"kind" yaml:"kind"`
}

// Region is one segmented sub-image of a figure.
type Region struct {
	RegionID string `json:"region_id" yaml:"region_id"`
	ImageRef string `json:"image_ref" yaml:"image_ref"`
}

// Figure is one image found by the document-structure service.
type Figure struct {
	FigureID string `json:"figure_id" yaml:"figure_id"`
	ImageRef string `json:"image_ref" yaml:"image_ref"`
	Caption  string `json:"caption" yaml:"caption"`
	Page     int    `json:"page" yaml:"page"`

	// Regions holds segmented sub-structures in segmentation order. Empty
	// when the figure was not segmented; the whole image is then one region.
	Regions []Region `json:"regions,omitempty" yaml:"regions,omitempty"`
}

// RegionsOrWhole returns the figure's regions, or the whole image as a single
// region when it was not segmented.
func (f Figure) RegionsOrWhole() []Region {
	if len(f.Regions) > 0 {
		return f.Regions
	}
	return []Region{{RegionID: f.FigureID, ImageRef: f.ImageRef}}
}

// Paragraph is one block of body text.
type Paragraph struct {
	ParaID  string `json:"para_id" yaml:"para_id"`
	Text    string `json:"text" yaml:"text"`
	Section string `json:"section,omitempty" yaml:"section,omitempty"`
	Page    int    `json:"page" yaml:"page"`
}

// Document is the structured content of one paper.
type Document struct {
	PaperID    string      `json:"paper_id" yaml:"paper_id"`
	Tables     []Table     `json:"tables" yaml:"tables"`
	Figures    []Figure    `json:"figures" yaml:"figures"`
	Paragraphs []Paragraph `json:"paragraphs,omitempty" yaml:"paragraphs,omitempty"`
}

// FigureType is the vision classifier's category for a figure.
type FigureType string

const (
	FigureMolecularStructure  FigureType = "molecular_structure"
	FigureEnergyLevelDiagram  FigureType = "energy_level_diagram"
	FigureDeviceStructure     FigureType = "device_structure"
	FigurePhotophysicalScheme FigureType = "photophysical_scheme"
	FigureSpectrumOrCurve     FigureType = "spectrum_or_curve"
	FigureTableOrFlowchart    FigureType = "table_or_flowchart"
	FigureOther               FigureType = "other"
)

// Classification is the vision classifier's verdict for one figure.
type Classification struct {
	FigureID             string     `json:"figure_id" yaml:"figure_id"`
	FigureType           FigureType `json:"figure_type" yaml:"figure_type"`
	IsMolecularStructure bool       `json:"is_molecular_structure" yaml:"is_molecular_structure"`
	Reason               string     `json:"reason" yaml:"reason"`
}
