// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quality

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// Tally counts records per quality tier.
type Tally struct {
	Total   int `json:"total" yaml:"total"`
	Valid   int `json:"valid" yaml:"valid"`
	Suspect int `json:"suspect" yaml:"suspect"`
	Invalid int `json:"invalid" yaml:"invalid"`
}

// Add counts one record with the given flag.
func (t *Tally) Add(flag types.QualityFlag) {
	t.Total++
	switch flag {
	case types.QualityValid:
		t.Valid++
	case types.QualitySuspect:
		t.Suspect++
	case types.QualityInvalid:
		t.Invalid++
	}
}

// ValidRate is the fraction of valid records, 0 for an empty tally.
func (t Tally) ValidRate() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Valid) / float64(t.Total)
}

// StructureTally counts structure candidates per recognition status.
type StructureTally struct {
	Total         int `json:"total" yaml:"total"`
	OK            int `json:"ok" yaml:"ok"`
	LowConfidence int `json:"low_confidence" yaml:"low_confidence"`
	ParseFailed   int `json:"parse_failed" yaml:"parse_failed"`
}

// CountStructures tallies candidates by status.
func CountStructures(candidates []types.StructureCandidate) StructureTally {
	var t StructureTally
	for _, c := range candidates {
		t.Total++
		switch c.Status {
		case types.StructureOK:
			t.OK++
		case types.StructureLowConfidence:
			t.LowConfidence++
		case types.StructureParseFailed:
			t.ParseFailed++
		}
	}
	return t
}

// SuccessRate is the fraction of candidates recognized with status ok.
func (t StructureTally) SuccessRate() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.OK) / float64(t.Total)
}

// Report summarizes the quality of one paper's extraction.
type Report struct {
	PaperID       string         `json:"paper_id"`
	RunID         string         `json:"run_id"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Photophysical Tally          `json:"photophysical"`
	Device        Tally          `json:"device"`
	Structures    StructureTally `json:"structures"`
}

// MarshalJSON adds the derived rates to the report.
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	return json.Marshal(struct {
		plain
		PhotophysicalValidRate float64 `json:"photophysical_valid_rate"`
		DeviceValidRate        float64 `json:"device_valid_rate"`
		StructureSuccessRate   float64 `json:"structure_success_rate"`
	}{
		plain:                  plain(r),
		PhotophysicalValidRate: r.Photophysical.ValidRate(),
		DeviceValidRate:        r.Device.ValidRate(),
		StructureSuccessRate:   r.Structures.SuccessRate(),
	})
}

// WriteReport writes r as indented JSON to dir/quality_report.json.
func WriteReport(dir string, r Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling quality report: %w", err)
	}
	path := filepath.Join(dir, "quality_report.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing quality report: %w", err)
	}
	return path, nil
}
