// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package papers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zouly-group/tadf-workbench/internal/store"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// minimalPDF builds a PDF with n empty pages and a valid cross-reference
// table.
func minimalPDF(n int) []byte {
	doc := "%PDF-1.4\n"
	var offsets []int

	offsets = append(offsets, len(doc))
	doc += "1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n"

	kids := ""
	for i := 0; i < n; i++ {
		kids += fmt.Sprintf("%d 0 R ", 3+i)
	}
	offsets = append(offsets, len(doc))
	doc += fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", kids, n)

	for i := 0; i < n; i++ {
		offsets = append(offsets, len(doc))
		doc += fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n", 3+i)
	}

	xref := len(doc)
	doc += fmt.Sprintf("xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		doc += fmt.Sprintf("%010d 00000 n \n", off)
	}
	doc += fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return []byte(doc)
}

func writePDF(t *testing.T, name string, pages int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, minimalPDF(pages), 0o644))
	return path
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	r := NewRegistry(st)
	r.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return r
}

func TestClassify(t *testing.T) {
	tests := []struct {
		in       string
		wantType IdentifierType
		wantNorm string
	}{
		{"2301.07041", TypeArxiv, "2301.07041"},
		{"arXiv:2301.07041v2", TypeArxiv, "2301.07041v2"},
		{"10.1021/jacs.5b01234", TypeDOI, "10.1021/jacs.5b01234"},
		{"https://doi.org/10.1002/adma.201805377", TypeDOI, "10.1002/adma.201805377"},
		{"doi:10.1038/nature11687", TypeDOI, "10.1038/nature11687"},
		{"  Zhang 2021 TADF review ", TypeFilename, "Zhang 2021 TADF review"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			gotType, gotNorm := Classify(tt.in)
			assert.Equal(t, tt.wantType, gotType)
			assert.Equal(t, tt.wantNorm, gotNorm)
		})
	}
	assert.Equal(t, "doi", TypeDOI.String())
	assert.Equal(t, "filename", TypeFilename.String())
}

func TestID(t *testing.T) {
	tests := []struct {
		name    string
		doi     string
		pdf     string
		want    string
		wantErr bool
	}{
		{"doi wins", "10.1021/jacs.5b01234", "/papers/whatever.pdf", "10-1021-jacs-5b01234", false},
		{"filename stem", "", "/papers/Zhang et al (2021).pdf", "zhang-et-al-2021", false},
		{"arxiv filename", "", "2301.07041v2.pdf", "2301-07041v2", false},
		{"underscores kept", "", "adams_2019_tadf.pdf", "adams_2019_tadf", false},
		{"bad doi", "not-a-doi", "x.pdf", "", true},
		{"nothing usable", "", "/papers/().pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ID(tt.doi, tt.pdf)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageCount(t *testing.T) {
	n, err := PageCount(writePDF(t, "three.pdf", 3))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	junk := filepath.Join(t.TempDir(), "junk.pdf")
	require.NoError(t, os.WriteFile(junk, []byte("not a pdf"), 0o644))
	_, err = PageCount(junk)
	assert.Error(t, err)

	_, err = PageCount(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	r := testRegistry(t)

	p, err := r.Register(ctx, types.Paper{PDFPath: writePDF(t, "Li 2020.pdf", 2), Title: "Blue TADF"})
	require.NoError(t, err)
	assert.Equal(t, "li-2020", p.ID)
	assert.Equal(t, 2, p.Pages)
	assert.Equal(t, types.PaperPending, p.Status)

	got, err := r.Get(ctx, "li-2020")
	require.NoError(t, err)
	assert.Equal(t, "Blue TADF", got.Title)
	assert.Equal(t, 2, got.Pages)
	assert.True(t, r.now().Equal(got.UpdatedAt))

	// Re-registering from the bare file keeps the stored title.
	_, err = r.Register(ctx, types.Paper{ID: "li-2020", PDFPath: got.PDFPath})
	require.NoError(t, err)
	got, err = r.Get(ctx, "li-2020")
	require.NoError(t, err)
	assert.Equal(t, "Blue TADF", got.Title)

	// Unreadable PDFs register with no page count.
	p, err = r.Register(ctx, types.Paper{DOI: "10.1021/acs.chemmater.0c01234", PDFPath: "/missing/file.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "10-1021-acs-chemmater-0c01234", p.ID)
	assert.Zero(t, p.Pages)

	_, err = r.Register(ctx, types.Paper{DOI: "garbage"})
	assert.Error(t, err)

	for _, id := range []string{"smith:2021", "smith/2021", `smith\2021`} {
		_, err = r.Register(ctx, types.Paper{ID: id, PDFPath: "x.pdf"})
		assert.ErrorIs(t, err, ErrInvalidID, id)
	}
	_, err = r.Register(ctx, types.Paper{ID: "smith_2021", PDFPath: "x.pdf"})
	assert.NoError(t, err, "underscores are allowed in explicit ids")
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()
	r := testRegistry(t)

	_, err := r.Register(ctx, types.Paper{ID: "p1", PDFPath: "p1.pdf", Pages: 7})
	require.NoError(t, err)
	require.NoError(t, r.SetStatus(ctx, "p1", types.PaperError, "no document output", "run-1"))

	got, err := r.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, types.PaperError, got.Status)
	assert.Equal(t, "no document output", got.Message)
	assert.Equal(t, "run-1", got.LastRunID)

	// Re-registering resets the status but keeps the last run id.
	_, err = r.Register(ctx, types.Paper{ID: "p1", PDFPath: "p1.pdf", Pages: 7})
	require.NoError(t, err)
	got, err = r.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, types.PaperPending, got.Status)
	assert.Empty(t, got.Message)
	assert.Equal(t, "run-1", got.LastRunID)

	err = r.SetStatus(ctx, "nope", types.PaperCompleted, "", "run-2")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndCounts(t *testing.T) {
	ctx := context.Background()
	r := testRegistry(t)

	for _, id := range []string{"c", "a", "b"} {
		_, err := r.Register(ctx, types.Paper{ID: id, Pages: 1})
		require.NoError(t, err)
	}
	require.NoError(t, r.SetStatus(ctx, "b", types.PaperCompleted, "", "run-1"))

	all, err := r.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "c", all[2].ID)

	done, err := r.List(ctx, types.PaperCompleted)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "b", done[0].ID)

	counts, err := r.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[types.PaperStatus]int{types.PaperPending: 2, types.PaperCompleted: 1}, counts)
}
