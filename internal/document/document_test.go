// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zouly-group/tadf-workbench/internal/container"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

func TestContentListSource_Load(t *testing.T) {
	src := NewContentListSource("testdata")
	doc, err := src.Load(context.Background(), types.Paper{ID: "p1"})
	require.NoError(t, err)

	assert.Equal(t, "p1", doc.PaperID)
	require.Len(t, doc.Tables, 2)
	require.Len(t, doc.Figures, 1)
	require.Len(t, doc.Paragraphs, 1, "headings and short text are not paragraphs")

	t1 := doc.Tables[0]
	assert.Equal(t, "p1_table_1", t1.TableID)
	assert.Equal(t, "Table 1. Photophysical properties of 1-3.\n\nFootnote: a) In toluene.", t1.Caption)
	assert.Equal(t, types.TablePhotophysical, t1.Kind)
	assert.Equal(t, 2, t1.Page)
	assert.Equal(t, "| Cpd | λPL (nm) | ΦPL |\n|---|---|---|\n| 1 | 475 | 0.92 |\n| 2 | 488 |  |", t1.Content)

	t2 := doc.Tables[1]
	assert.Equal(t, "p1_table_2", t2.TableID)
	assert.Equal(t, types.TableDevice, t2.Kind)
	assert.Equal(t, "| Device | EQE (%) |\n|---|---|\n| D1 | 25.3 |", t2.Content)

	fig := doc.Figures[0]
	assert.Equal(t, "p1_fig_1", fig.FigureID)
	assert.Equal(t, filepath.Join("testdata", "p1", "auto", "images", "fig1.jpg"), fig.ImageRef)
	assert.Equal(t, "Figure 1. Molecular structures of compounds 1-3.", fig.Caption)

	assert.Equal(t, "Introduction", doc.Paragraphs[0].Section)
	assert.Equal(t, []string{doc.Paragraphs[0].Text}, ContextParagraphs(doc, t1, 3))
	assert.Empty(t, ContextParagraphs(doc, t2, 3))
	assert.Equal(t, []types.Table{t2}, Tables(doc, types.TableDevice))
}

func TestContentListSource_Missing(t *testing.T) {
	_, err := NewContentListSource("testdata").Load(context.Background(), types.Paper{ID: "nope"})
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestParseContentList(t *testing.T) {
	_, err := ParseContentList(strings.NewReader(`[]`), "p", "")
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = ParseContentList(strings.NewReader(`{"not": "a list"}`), "p", "")
	assert.Error(t, err)

	doc, err := ParseContentList(strings.NewReader(`[{"type": "image", "img_path": "/abs/x.png"}]`), "p", "/base")
	require.NoError(t, err)
	assert.Equal(t, "/abs/x.png", doc.Figures[0].ImageRef)
}

func TestClassifyTable(t *testing.T) {
	tests := []struct {
		caption string
		want    types.TableKind
	}{
		{"Table 1. Photophysical properties of the emitters.", types.TablePhotophysical},
		{"Table 2. PL and PLQY data in doped films", types.TablePhotophysical},
		{"Table 3. EL performance of OLED devices", types.TableDevice},
		{"Table 4. Summary of EQE values", types.TableDevice},
		{"Table S1. Calculated HOMO/LUMO energies (DFT)", types.TableComputational},
		{"Table 5. Sample compositions", types.TableUnknown},
		{"Table 6. Crystal data and model refinement", types.TableUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyTable(tt.caption))
		})
	}
}

func TestHTMLTableToMarkdown(t *testing.T) {
	md, err := HTMLTableToMarkdown("")
	require.NoError(t, err)
	assert.Empty(t, md)

	md, err = HTMLTableToMarkdown("<p>no   rows here</p>")
	require.NoError(t, err)
	assert.Equal(t, "no rows here", md)

	md, err = HTMLTableToMarkdown("<table><tr><td>a|b</td><td>c</td></tr><tr><td>1</td><td>2</td><td>extra</td></tr></table>")
	require.NoError(t, err)
	assert.Equal(t, "| a\\|b | c |\n|---|---|\n| 1 | 2 |", md)
}

// fakeRuntime writes a content list into the mounted output dir.
type fakeRuntime struct {
	runs    int
	lastOpt container.RunOptions
	fail    bool
}

func (f *fakeRuntime) Name() string                              { return "docker" }
func (f *fakeRuntime) Available(context.Context) bool            { return true }
func (f *fakeRuntime) ImageExists(context.Context, string) error { return nil }
func (f *fakeRuntime) Run(_ context.Context, _ string, opts container.RunOptions, _ io.Reader, _ io.Writer) error {
	f.runs++
	f.lastOpt = opts
	if f.fail {
		return errors.New("exit status 1")
	}
	out := opts.Mounts[1].Host
	data, err := os.ReadFile(filepath.Join("testdata", "p1", "auto", "p1_content_list.json"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(out, "auto"), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(out, "auto", "p1_content_list.json"), data, 0o644)
}

func TestContainerSource(t *testing.T) {
	ctx := context.Background()
	rt := &fakeRuntime{}
	outDir := t.TempDir()
	src, err := NewContainerSource(ctx, rt, "mineru:latest", outDir)
	require.NoError(t, err)

	paper := types.Paper{ID: "p1", PDFPath: filepath.Join(t.TempDir(), "paper.pdf")}
	doc, err := src.Load(ctx, paper)
	require.NoError(t, err)
	assert.Len(t, doc.Tables, 2)
	assert.Equal(t, []string{"-p", "/in/paper.pdf", "-o", "/out"}, rt.lastOpt.Args)
	assert.True(t, rt.lastOpt.Mounts[0].ReadOnly)
	assert.False(t, rt.lastOpt.Network)

	_, err = src.Load(ctx, paper)
	require.NoError(t, err)
	assert.Equal(t, 1, rt.runs, "existing output is reused")

	failing, err := NewContainerSource(ctx, &fakeRuntime{fail: true}, "mineru:latest", t.TempDir())
	require.NoError(t, err)
	_, err = failing.Load(ctx, paper)
	assert.Error(t, err)

	_, err = failing.Load(ctx, types.Paper{ID: "p2"})
	assert.ErrorIs(t, err, ErrNoContent)
}
