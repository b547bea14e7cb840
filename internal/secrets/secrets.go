// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads API keys kept one per file under .secrets/. The
// file name is the key; its trimmed contents are the value. The workbench
// looks for llm-api-key and recognition-api-key.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDir is the secrets directory relative to the working directory.
const DefaultDir = ".secrets/"

// Key files understood by the workbench.
const (
	LLMAPIKey         = "llm-api-key"
	RecognitionAPIKey = "recognition-api-key"
)

// Set is a loaded secrets directory.
type Set map[string]string

// Get returns the secret for key, or fallback when it is absent.
func (s Set) Get(key, fallback string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return fallback
}

// Names returns the loaded key names, never their values.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	return names
}

// Load returns the non-empty secrets in dir, keyed by file name. Hidden
// files and subdirectories are ignored. A missing dir yields an empty set;
// a file that cannot be read is logged and left out.
func Load(dir string) (Set, error) {
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Set{}, nil
	case err != nil:
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	set := make(Set, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		v, err := readValue(filepath.Join(dir, e.Name()))
		if err != nil {
			slog.Warn("skipping unreadable secret", "name", e.Name(), "error", err)
			continue
		}
		if v != "" {
			set[e.Name()] = v
		}
	}
	return set, nil
}

func readValue(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
