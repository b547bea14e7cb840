// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zouly-group/tadf-workbench/internal/httputil"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

func TestMain(m *testing.M) {
	httputil.RetryBaseDelay = time.Millisecond
	m.Run()
}

type captured struct {
	Model       string            `json:"model"`
	Temperature float64           `json:"temperature"`
	Messages    []json.RawMessage `json:"messages"`
}

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return New(types.LLMConfig{
		BaseURL:     ts.URL + "/v1/",
		APIKey:      "sk-test",
		Model:       "qwen-plus",
		VisionModel: "qwen-vl-max",
		Temperature: 0.1,
	})
}

func reply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
	})
}

func TestComplete(t *testing.T) {
	var got captured
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply(w, `[{"paper_local_id": "1"}]`)
	})

	out, err := c.Complete(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)
	assert.Equal(t, `[{"paper_local_id": "1"}]`, out)
	assert.Equal(t, "qwen-plus", got.Model)
	assert.InDelta(t, 0.1, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Contains(t, string(got.Messages[0]), `"role":"system"`)
}

func TestDescribe_SendsDataURI(t *testing.T) {
	var got captured
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply(w, `{"figure_type": "molecular_structure"}`)
	})

	_, err := c.Describe(context.Background(), "classify", []byte("\x89PNG\r\n\x1a\nrest"), "")
	require.NoError(t, err)
	assert.Equal(t, "qwen-vl-max", got.Model)
	require.Len(t, got.Messages, 1)
	msg := string(got.Messages[0])
	assert.Contains(t, msg, `"url":"data:image/png;base64,`)
	assert.Contains(t, msg, `"text":"classify"`)
}

func TestChat_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		reply(w, "ok")
	})

	out, err := c.Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name:    "unauthorized",
			handler: func(w http.ResponseWriter, _ *http.Request) { http.Error(w, "invalid api key", http.StatusUnauthorized) },
			want:    "HTTP 401",
		},
		{
			name:    "no choices",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`{"choices": []}`)) },
			want:    ErrEmptyResponse.Error(),
		},
		{
			name:    "not json",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`<html>`)) },
			want:    "decoding",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, tt.handler)
			_, err := c.Complete(context.Background(), "s", "u")
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

func TestNew_FullEndpoint(t *testing.T) {
	c := New(types.LLMConfig{BaseURL: "https://example.test/compatible-mode/v1/chat/completions"})
	assert.Equal(t, "https://example.test/compatible-mode/v1/chat/completions", c.endpoint)
}
