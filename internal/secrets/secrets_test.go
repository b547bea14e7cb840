// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// secretsDir lays out files (name → content) and subdirectories (content
// "/") under a temp dir.
func secretsDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if content == "/" {
			require.NoError(t, os.Mkdir(path, 0o755))
			continue
		}
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

func TestLoad_KeepsOnlyNonEmptyVisibleFiles(t *testing.T) {
	dir := secretsDir(t, map[string]string{
		LLMAPIKey:         "  sk-qwen-123 \n",
		RecognitionAPIKey: "decimer-token\n",
		"blank":           " \n\t",
		".gitkeep":        "",
		".env":            "LLM=shadow",
		"nested":          "/",
	})

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Set{LLMAPIKey: "sk-qwen-123", RecognitionAPIKey: "decimer-token"}, got)
	assert.ElementsMatch(t, []string{LLMAPIKey, RecognitionAPIKey}, got.Names())
}

func TestLoad_EmptySets(t *testing.T) {
	for name, dir := range map[string]string{
		"missing directory": filepath.Join(t.TempDir(), "absent"),
		"empty directory":   t.TempDir(),
	} {
		t.Run(name, func(t *testing.T) {
			got, err := Load(dir)
			require.NoError(t, err)
			assert.Empty(t, got)
			assert.NotNil(t, got)
		})
	}
}

func TestLoad_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "reading secrets directory")
}

func TestLoad_SkipsUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits do not apply to root")
	}
	dir := secretsDir(t, map[string]string{LLMAPIKey: "sk-ok"})
	locked := filepath.Join(dir, RecognitionAPIKey)
	require.NoError(t, os.WriteFile(locked, []byte("hidden"), 0o000))

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Set{LLMAPIKey: "sk-ok"}, got)
}

func TestSet_Get(t *testing.T) {
	s := Set{LLMAPIKey: "sk-1"}
	assert.Equal(t, "sk-1", s.Get(LLMAPIKey, "fallback"))
	assert.Equal(t, "fallback", s.Get(RecognitionAPIKey, "fallback"))
}
