// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quality assigns a quality tier to measurement records by checking
// their numeric fields against a declarative rule table.
package quality

import (
	"fmt"
	"math"
	"strconv"

	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// Severity separates data errors from values that only need a second look.
type Severity string

const (
	SeverityHard     Severity = "hard"
	SeverityAdvisory Severity = "advisory"
)

// Issue is one rule violation.
type Issue struct {
	Field    string   `json:"field" yaml:"field"`
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
}

// Result is the outcome of evaluating one record.
type Result struct {
	Flag   types.QualityFlag `json:"flag" yaml:"flag"`
	Issues []Issue           `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// Messages returns the issue messages in rule order, nil when there are none.
func (r Result) Messages() []string {
	if len(r.Issues) == 0 {
		return nil
	}
	out := make([]string, len(r.Issues))
	for i, is := range r.Issues {
		out[i] = is.Message
	}
	return out
}

// Evaluate checks rec against rules. Every rule is checked in order and
// each violating field contributes exactly one issue. Absent values pass.
// Evaluate does not modify rec.
func Evaluate(rec types.Record, rules []Rule) Result {
	values := make(map[string]*float64)
	for _, f := range rec.Numeric() {
		values[f.Name] = f.Value
	}

	var issues []Issue
	for _, rule := range rules {
		v := values[rule.Field]
		if v == nil {
			continue
		}
		if is, ok := check(rule, *v); ok {
			issues = append(issues, is)
		}
	}

	flag := types.QualityValid
	for _, is := range issues {
		if is.Severity == SeverityHard {
			flag = types.QualityInvalid
			break
		}
		flag = types.QualitySuspect
	}
	return Result{Flag: flag, Issues: issues}
}

// check returns the first violation of rule by v: negative, then out of
// range, then over the advisory threshold.
func check(rule Rule, v float64) (Issue, bool) {
	hard := func(msg string) (Issue, bool) {
		return Issue{Field: rule.Field, Severity: SeverityHard, Message: msg}, true
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return hard(fmt.Sprintf("%s=%s is out of range (not a finite number)", rule.Field, num(v)))
	}
	if rule.NonNegative && v < 0 {
		return hard(fmt.Sprintf("%s=%s is negative", rule.Field, num(v)))
	}
	if (rule.Min != nil && v < *rule.Min) || (rule.Max != nil && v > *rule.Max) {
		return hard(fmt.Sprintf("%s=%s is out of range %s", rule.Field, num(v), bounds(rule)))
	}
	if rule.AdvisoryMax != nil && v > *rule.AdvisoryMax {
		msg := fmt.Sprintf("%s=%s exceeds advisory threshold %s", rule.Field, num(v), num(*rule.AdvisoryMax))
		if rule.AdvisoryNote != "" {
			msg += " (" + rule.AdvisoryNote + ")"
		}
		return Issue{Field: rule.Field, Severity: SeverityAdvisory, Message: msg}, true
	}
	return Issue{}, false
}

func bounds(rule Rule) string {
	lo, hi := "-inf", "+inf"
	if rule.Min != nil {
		lo = num(*rule.Min)
	}
	if rule.Max != nil {
		hi = num(*rule.Max)
	}
	return "[" + lo + ", " + hi + "]"
}

func num(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// Engine scores records of any kind against a rule set.
type Engine struct {
	rules RuleSet
}

// NewEngine returns an engine over rules.
func NewEngine(rules RuleSet) *Engine {
	return &Engine{rules: rules}
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() RuleSet { return e.rules }

// Score evaluates rec and writes the flag and issue messages onto its
// header.
func (e *Engine) Score(rec types.Record) Result {
	res := Evaluate(rec, e.rules[rec.Kind()])
	h := rec.Header()
	h.QualityFlag = res.Flag
	h.QualityIssues = res.Messages()
	return res
}

// ScoreAll scores every record in place and tallies the tiers.
func ScoreAll[R types.Record](e *Engine, records []R) Tally {
	var t Tally
	for _, rec := range records {
		t.Add(e.Score(rec).Flag)
	}
	return t
}
