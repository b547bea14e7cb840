// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vision classifies figure images so that only molecular structure
// drawings reach structure recognition.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// Describer sends an image and a prompt to a vision model.
type Describer interface {
	Describe(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// Classifier assigns a figure type to one figure.
type Classifier interface {
	Classify(ctx context.Context, fig types.Figure) (types.Classification, error)
}

// knownTypes is the closed set of figure types.
var knownTypes = map[types.FigureType]bool{
	types.FigureMolecularStructure:  true,
	types.FigureEnergyLevelDiagram:  true,
	types.FigureDeviceStructure:     true,
	types.FigurePhotophysicalScheme: true,
	types.FigureSpectrumOrCurve:     true,
	types.FigureTableOrFlowchart:    true,
	types.FigureOther:               true,
}

const classifyPrompt = `You classify figures from scientific papers on thermally activated delayed fluorescence (TADF) materials.

Categories:
1. molecular_structure: 2D chemical structure drawings of compounds
2. energy_level_diagram: energy level or Jablonski diagrams showing S0, S1, T1, HOMO/LUMO or ΔEST
3. device_structure: OLED device stacks drawn as layered rectangles (ITO/TAPC/EML...)
4. photophysical_scheme: mechanism schemes with arrows for RISC, TADF and similar processes
5. spectrum_or_curve: PL, EL or absorption spectra, decay curves and other plots
6. table_or_flowchart: table screenshots, flowcharts, frameworks
7. other: photographs, logos, anything else

If the main content is a chemical structure drawing, answer molecular_structure. If several kinds appear, pick the dominant one. Always pick exactly one category.

Respond with JSON only:
{"figure_type": "<category>", "is_molecular_structure": true or false, "reason": "<short reason>"}`

// ChatClassifier classifies figures with a vision chat model.
type ChatClassifier struct {
	model Describer
	// baseDir resolves relative image references.
	baseDir string
}

// NewChatClassifier returns a classifier reading images relative to baseDir.
func NewChatClassifier(model Describer, baseDir string) *ChatClassifier {
	return &ChatClassifier{model: model, baseDir: baseDir}
}

// Classify implements Classifier. An unknown category in the answer maps
// to other; molecular_structure always sets IsMolecularStructure.
func (c *ChatClassifier) Classify(ctx context.Context, fig types.Figure) (types.Classification, error) {
	image, err := os.ReadFile(c.resolve(fig.ImageRef))
	if err != nil {
		return types.Classification{}, fmt.Errorf("reading figure %s: %w", fig.FigureID, err)
	}

	answer, err := c.model.Describe(ctx, classifyPrompt, image, "")
	if err != nil {
		return types.Classification{}, fmt.Errorf("classifying figure %s: %w", fig.FigureID, err)
	}

	cl, err := parseClassification(answer)
	if err != nil {
		return types.Classification{}, fmt.Errorf("figure %s: %w", fig.FigureID, err)
	}
	cl.FigureID = fig.FigureID
	return cl, nil
}

func (c *ChatClassifier) resolve(ref string) string {
	if filepath.IsAbs(ref) || c.baseDir == "" {
		return ref
	}
	return filepath.Join(c.baseDir, ref)
}

func parseClassification(answer string) (types.Classification, error) {
	start, end := strings.Index(answer, "{"), strings.LastIndex(answer, "}")
	if start < 0 || end < start {
		return types.Classification{}, fmt.Errorf("no JSON object in classification %q", answer)
	}
	var cl types.Classification
	if err := json.Unmarshal([]byte(answer[start:end+1]), &cl); err != nil {
		return types.Classification{}, fmt.Errorf("parsing classification: %w", err)
	}
	cl.FigureType = types.FigureType(strings.ToLower(strings.TrimSpace(string(cl.FigureType))))
	if !knownTypes[cl.FigureType] {
		cl.FigureType = types.FigureOther
	}
	if cl.FigureType == types.FigureMolecularStructure {
		cl.IsMolecularStructure = true
	}
	return cl, nil
}

// IsStructure reports whether a figure should go to structure recognition.
func IsStructure(cl types.Classification) bool {
	return cl.IsMolecularStructure || cl.FigureType == types.FigureMolecularStructure
}
