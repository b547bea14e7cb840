// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ocsr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zouly-group/tadf-workbench/pkg/types"
)

func serve(t *testing.T, smiles string, tokens any) *DecimerClient {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "struct.png", hdr.Filename)
		assert.Equal(t, "png-bytes", string(data))
		json.NewEncoder(w).Encode(map[string]any{"smiles": smiles, "token_confidences": tokens})
	}))
	t.Cleanup(ts.Close)
	return NewDecimerClient(types.RecognitionConfig{URL: ts.URL + "/predict"})
}

func image(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "struct.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))
	return path
}

func TestRecognize(t *testing.T) {
	tests := []struct {
		name     string
		smiles   string
		tokens   any
		wantConf float64
		want     types.StructureStatus
	}{
		{"confident", "c1ccccc1", []float64{0.9, 0.8, 1.0}, 0.9, types.StructureOK},
		{"object tokens", "c1ccccc1", []map[string]float64{{"confidence": 0.6}, {"confidence": 0.7}}, 0.65, types.StructureLowConfidence},
		{"at threshold", "CCO", []float64{0.7}, 0.7, types.StructureOK},
		{"no tokens", "c1ccccc1", []float64{}, 0, types.StructureLowConfidence},
		{"empty", "", []float64{0.99}, 0.99, types.StructureParseFailed},
		{"too short", "C", []float64{0.99}, 0.99, types.StructureParseFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := serve(t, tt.smiles, tt.tokens)
			p, err := c.Recognize(context.Background(), image(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Status)
			assert.InDelta(t, tt.wantConf, p.Confidence, 1e-9)
			assert.Equal(t, tt.smiles, p.Encoding)
		})
	}
}

func TestRecognize_Errors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad image", http.StatusBadRequest)
	}))
	defer ts.Close()

	c := NewDecimerClient(types.RecognitionConfig{URL: ts.URL})
	_, err := c.Recognize(context.Background(), image(t))
	assert.Error(t, err)

	_, err = c.Recognize(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestNewDecimerClient_DefaultThreshold(t *testing.T) {
	assert.Equal(t, DefaultThreshold, NewDecimerClient(types.RecognitionConfig{}).threshold)
	assert.Equal(t, 0.5, NewDecimerClient(types.RecognitionConfig{ConfidenceThreshold: 0.5}).threshold)
}
