// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package papers

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gosimple/slug"
	"github.com/ledongthuc/pdf"
)

// IdentifierType classifies the identifier a paper id is derived from.
type IdentifierType int

const (
	TypeFilename IdentifierType = iota
	TypeArxiv
	TypeDOI
)

func (t IdentifierType) String() string {
	switch t {
	case TypeArxiv:
		return "arxiv"
	case TypeDOI:
		return "doi"
	default:
		return "filename"
	}
}

// arxivPattern matches arXiv IDs: "2301.07041", "arXiv:2301.07041", "2301.07041v2".
var arxivPattern = regexp.MustCompile(`^(?i:arxiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)$`)

// doiPattern matches DOIs, with or without a resolver prefix.
var doiPattern = regexp.MustCompile(`^(?i:https?://(?:dx\.)?doi\.org/|doi:)?(10\.\d{4,9}/\S+)$`)

// Classify determines the identifier type and returns the normalized form.
// Anything that is neither an arXiv id nor a DOI is treated as a filename.
func Classify(identifier string) (IdentifierType, string) {
	identifier = strings.TrimSpace(identifier)

	if m := arxivPattern.FindStringSubmatch(identifier); m != nil {
		return TypeArxiv, m[1]
	}
	if m := doiPattern.FindStringSubmatch(identifier); m != nil {
		return TypeDOI, m[1]
	}
	return TypeFilename, identifier
}

// ID derives a paper id from a DOI when one is given, otherwise from the
// PDF filename stem. A stem that is itself an arXiv id or a DOI-like name
// is slugged the same way.
func ID(doi, pdfPath string) (string, error) {
	src := strings.TrimSpace(doi)
	if src != "" {
		if t, _ := Classify(src); t != TypeDOI {
			return "", fmt.Errorf("not a DOI: %q", doi)
		}
	} else {
		src = strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	}

	_, normalized := Classify(src)
	id := slug.Make(normalized)
	if id == "" {
		return "", fmt.Errorf("cannot derive a paper id from %q", src)
	}
	return id, nil
}

// PageCount reads the number of pages from the PDF at path.
func PageCount(path string) (n int, err error) {
	defer func() {
		// The reader panics on some malformed cross-reference tables.
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("reading %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return r.NumPage(), nil
}
