// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package document obtains the structured content of a paper (tables,
// figures, body text) from a document-structure service's content list.
// Backends differ only in how the content list is produced.
package document

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// ErrNoContent means no structured output exists for a paper. It is fatal
// for that paper's run.
var ErrNoContent = errors.New("no structured document output")

// Source produces the structured document for a paper.
type Source interface {
	Load(ctx context.Context, paper types.Paper) (*types.Document, error)
}

// tableRefRe finds "Table 2" style references.
var tableRefRe = regexp.MustCompile(`(?i)\btable\s+(S?\d+)\b`)

// ContextParagraphs returns up to max paragraphs that refer to the same
// numbered table as t's caption.
func ContextParagraphs(doc *types.Document, t types.Table, max int) []string {
	m := tableRefRe.FindStringSubmatch(t.Caption)
	if m == nil || max <= 0 {
		return nil
	}
	want := strings.ToLower(m[1])

	var out []string
	for _, p := range doc.Paragraphs {
		for _, ref := range tableRefRe.FindAllStringSubmatch(p.Text, -1) {
			if strings.ToLower(ref[1]) == want {
				out = append(out, p.Text)
				break
			}
		}
		if len(out) == max {
			break
		}
	}
	return out
}

// Tables returns the document's tables of the given kind.
func Tables(doc *types.Document, kind types.TableKind) []types.Table {
	var out []types.Table
	for _, t := range doc.Tables {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}
