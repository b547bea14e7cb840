// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zouly-group/tadf-workbench/pkg/types"
)

type mockDescriber struct {
	answer string
	err    error
	image  []byte
}

func (m *mockDescriber) Describe(_ context.Context, _ string, image []byte, _ string) (string, error) {
	m.image = image
	return m.answer, m.err
}

func writeImage(t *testing.T) (dir, name string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "images", "fig1.jpg"), []byte("jpegdata"), 0o644))
	return dir, filepath.Join("images", "fig1.jpg")
}

func TestClassify(t *testing.T) {
	dir, ref := writeImage(t)

	tests := []struct {
		name       string
		answer     string
		wantType   types.FigureType
		wantStruct bool
	}{
		{
			name:       "structure",
			answer:     `{"figure_type": "molecular_structure", "is_molecular_structure": true, "reason": "skeletal formulas"}`,
			wantType:   types.FigureMolecularStructure,
			wantStruct: true,
		},
		{
			name:     "spectrum with prose",
			answer:   "Sure.\n```json\n{\"figure_type\": \"spectrum_or_curve\", \"is_molecular_structure\": false, \"reason\": \"PL spectra\"}\n```",
			wantType: types.FigureSpectrumOrCurve,
		},
		{
			name:     "unknown category",
			answer:   `{"figure_type": "crystal_packing", "is_molecular_structure": false}`,
			wantType: types.FigureOther,
		},
		{
			name:       "flag implied by type",
			answer:     `{"figure_type": "Molecular_Structure", "is_molecular_structure": false}`,
			wantType:   types.FigureMolecularStructure,
			wantStruct: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockDescriber{answer: tt.answer}
			c := NewChatClassifier(m, dir)
			cl, err := c.Classify(context.Background(), types.Figure{FigureID: "p1_fig_1", ImageRef: ref})
			require.NoError(t, err)
			assert.Equal(t, "p1_fig_1", cl.FigureID)
			assert.Equal(t, tt.wantType, cl.FigureType)
			assert.Equal(t, tt.wantStruct, cl.IsMolecularStructure)
			assert.Equal(t, tt.wantStruct, IsStructure(cl))
			assert.Equal(t, []byte("jpegdata"), m.image)
		})
	}
}

func TestClassify_Errors(t *testing.T) {
	dir, ref := writeImage(t)
	ctx := context.Background()

	_, err := NewChatClassifier(&mockDescriber{}, dir).Classify(ctx, types.Figure{FigureID: "f", ImageRef: "missing.jpg"})
	assert.Error(t, err)

	_, err = NewChatClassifier(&mockDescriber{err: errors.New("503")}, dir).Classify(ctx, types.Figure{FigureID: "f", ImageRef: ref})
	assert.Error(t, err)

	_, err = NewChatClassifier(&mockDescriber{answer: "cannot tell"}, dir).Classify(ctx, types.Figure{FigureID: "f", ImageRef: ref})
	assert.Error(t, err)
}
