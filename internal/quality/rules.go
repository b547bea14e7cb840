// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quality

import (
	_ "embed"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/zouly-group/tadf-workbench/pkg/types"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// Rule declares the accepted values of one numeric field. Min and Max are
// inclusive hard bounds; AdvisoryMax is a soft bound inside them.
type Rule struct {
	Field        string   `json:"field" yaml:"field"`
	Min          *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max          *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	NonNegative  bool     `json:"non_negative,omitempty" yaml:"non_negative,omitempty"`
	AdvisoryMax  *float64 `json:"advisory_max,omitempty" yaml:"advisory_max,omitempty"`
	AdvisoryNote string   `json:"advisory_note,omitempty" yaml:"advisory_note,omitempty"`
}

// RuleSet maps each measurement kind to its ordered rules.
type RuleSet map[types.MeasurementKind][]Rule

type ruleFile struct {
	Photophysical []Rule `yaml:"photophysical"`
	Device        []Rule `yaml:"device"`
}

// DefaultRules returns the built-in rule table.
func DefaultRules() RuleSet {
	rs, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("quality: built-in rules: %v", err))
	}
	return rs
}

// LoadRules reads a rule table from path. An empty path yields the
// built-in table.
func LoadRules(path string) (RuleSet, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file %s: %w", path, err)
	}
	rs, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rs, nil
}

// ParseRules decodes a YAML rule table and checks it against the record
// schemas.
func ParseRules(data []byte) (RuleSet, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	rs := RuleSet{
		types.KindPhotophysical: f.Photophysical,
		types.KindDevice:        f.Device,
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

// Validate reports rules naming unknown fields, duplicated fields, or
// inverted bounds.
func (rs RuleSet) Validate() error {
	for kind, rules := range rs {
		rec := types.NewRecord(kind)
		if rec == nil {
			return fmt.Errorf("unknown measurement kind %q", kind)
		}
		known := make(map[string]bool)
		for _, f := range rec.Numeric() {
			known[f.Name] = true
		}
		seen := make(map[string]bool)
		for _, r := range rules {
			if !known[r.Field] {
				return fmt.Errorf("%s rule: unknown field %q", kind, r.Field)
			}
			if seen[r.Field] {
				return fmt.Errorf("%s rule: field %q declared twice", kind, r.Field)
			}
			seen[r.Field] = true
			if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
				return fmt.Errorf("%s rule %s: min %g above max %g", kind, r.Field, *r.Min, *r.Max)
			}
		}
	}
	return nil
}
