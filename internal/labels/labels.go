// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package labels finds the compound labels a figure caption enumerates
// ("compounds 1-4", "molecules 1a, 1b, and 2") and maps them onto the
// figure's segmented regions.
package labels

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// maxRangeSpan caps numeric range expansion. Larger spans are almost
// always page or year numbers rather than compound enumerations.
const maxRangeSpan = 50

const (
	// PatternKeyword marks labels found after a keyword such as "compounds".
	PatternKeyword = "keyword"
	// PatternAdjacency marks labels found in bare "X and Y" / "X, Y" pairs.
	PatternAdjacency = "adjacency"
)

const (
	labelToken = `\d+[a-z]?\b`
	item       = labelToken + `(?:\s*-\s*(?:\d+[a-z]?|[a-z])\b)?`
	separator  = `\s*(?:,\s*and\b|,|\band\b|&)\s*`
)

var (
	keywordPattern = regexp.MustCompile(
		`\b(?:compounds?|molecules?|emitters?|derivatives?|structures?\s+of)\s+(` +
			item + `(?:` + separator + item + `)*)`)

	adjacencyPattern = regexp.MustCompile(`\b(\d+[a-z]?)\s*(?:,\s*and\b|\band\b|,|&)\s*(\d+[a-z]?)\b`)

	itemPattern  = regexp.MustCompile(item)
	rangePattern = regexp.MustCompile(`^(\d+)([a-z]?)\s*-\s*(?:(\d+)([a-z]?)|([a-z]))$`)

	dashes = strings.NewReplacer("‐", "-", "‑", "-", "‒", "-", "–", "-", "—", "-", "−", "-")
)

// Match is one pattern hit, kept so over-generated labels can be traced to
// the text that produced them.
type Match struct {
	Pattern string   `json:"pattern" yaml:"pattern"`
	Text    string   `json:"text" yaml:"text"`
	Labels  []string `json:"labels" yaml:"labels"`
}

// Result holds the parsed labels and the matches behind them.
type Result struct {
	Labels  []string `json:"labels" yaml:"labels"`
	Matches []Match  `json:"matches,omitempty" yaml:"matches,omitempty"`
}

// ParseLabels returns the sorted, de-duplicated labels enumerated in caption.
func ParseLabels(caption string) []string {
	return Parse(caption).Labels
}

// Parse applies every pattern to caption and unions their labels. Labels
// are lower-cased and sorted by numeric prefix, then suffix.
func Parse(caption string) Result {
	text := Normalize(caption)

	var res Result
	seen := make(map[string]bool)
	add := func(pattern, matched string, labels []string) {
		if len(labels) == 0 {
			return
		}
		res.Matches = append(res.Matches, Match{Pattern: pattern, Text: matched, Labels: labels})
		for _, l := range labels {
			if !seen[l] {
				seen[l] = true
				res.Labels = append(res.Labels, l)
			}
		}
	}

	for _, m := range keywordPattern.FindAllStringSubmatch(text, -1) {
		var labels []string
		for _, it := range itemPattern.FindAllString(m[1], -1) {
			labels = append(labels, expand(it)...)
		}
		add(PatternKeyword, m[0], labels)
	}

	for _, m := range adjacencyPattern.FindAllStringSubmatch(text, -1) {
		add(PatternAdjacency, m[0], []string{m[1], m[2]})
	}

	SortLabels(res.Labels)
	return res
}

// Normalize folds compatibility characters, unifies dashes, lower-cases,
// and collapses whitespace.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = dashes.Replace(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeLabel canonicalizes a label as written in a table or caption so
// it compares equal to parsed caption labels.
func NormalizeLabel(label string) string {
	return strings.ReplaceAll(Normalize(label), " ", "")
}

// expand turns one list item into labels: "3" → [3], "1-4" → [1 2 3 4],
// "5a-c" and "2a-2c" → letter runs. Ranges that cannot be expanded yield
// their two endpoints.
func expand(it string) []string {
	it = strings.ReplaceAll(it, " ", "")
	m := rangePattern.FindStringSubmatch(it)
	if m == nil {
		return []string{it}
	}

	lo, _ := strconv.Atoi(m[1])
	loSuffix := m[2]

	// "5a-c": letter run on the same number.
	if m[5] != "" {
		if loSuffix == "" {
			return []string{m[1], m[1] + m[5]}
		}
		return letterRun(m[1], loSuffix[0], m[5][0])
	}

	hi, _ := strconv.Atoi(m[3])
	hiSuffix := m[4]
	first, last := m[1]+loSuffix, m[3]+hiSuffix

	switch {
	case loSuffix == "" && hiSuffix == "":
		if hi < lo || hi-lo >= maxRangeSpan {
			return []string{first, last}
		}
		out := make([]string, 0, hi-lo+1)
		for n := lo; n <= hi; n++ {
			out = append(out, strconv.Itoa(n))
		}
		return out
	case loSuffix != "" && hiSuffix != "" && lo == hi:
		return letterRun(m[1], loSuffix[0], hiSuffix[0])
	default:
		return []string{first, last}
	}
}

func letterRun(prefix string, from, to byte) []string {
	if to < from {
		return []string{prefix + string(from), prefix + string(to)}
	}
	out := make([]string, 0, int(to-from)+1)
	for c := from; c <= to; c++ {
		out = append(out, prefix+string(c))
	}
	return out
}

// SortLabels orders labels by numeric prefix ascending, then by the
// remaining suffix, so "2" < "2a" < "2b" < "10". Labels without a numeric
// prefix sort after numbered ones, lexicographically.
func SortLabels(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool {
		ni, si, oki := splitLabel(labels[i])
		nj, sj, okj := splitLabel(labels[j])
		switch {
		case oki && okj:
			if ni != nj {
				return ni < nj
			}
			return si < sj
		case oki != okj:
			return oki
		default:
			return labels[i] < labels[j]
		}
	})
}

func splitLabel(label string) (int, string, bool) {
	end := 0
	for end < len(label) && label[end] >= '0' && label[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, label, false
	}
	n, err := strconv.Atoi(label[:end])
	if err != nil {
		return 0, label, false
	}
	return n, label[end:], true
}
