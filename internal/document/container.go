// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zouly-group/tadf-workbench/internal/container"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// Paths inside the parser container.
const (
	containerIn  = "/in"
	containerOut = "/out"
)

// ContainerSource runs a document-structure parser image over the paper's
// PDF and reads the content list it writes to outDir/<paper id>/. Papers
// that already have output are not parsed again.
type ContainerSource struct {
	runtime container.Runtime
	image   string
	outDir  string
}

// NewContainerSource checks that image exists in rt.
func NewContainerSource(ctx context.Context, rt container.Runtime, image, outDir string) (*ContainerSource, error) {
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("document parser image not available in %s: %w", rt.Name(), err)
	}
	return &ContainerSource{runtime: rt, image: image, outDir: outDir}, nil
}

// Load implements Source.
func (s *ContainerSource) Load(ctx context.Context, paper types.Paper) (*types.Document, error) {
	dir := filepath.Join(s.outDir, paper.ID)
	if _, err := FindContentList(dir); err == nil {
		slog.Info("reusing document output", "paper", paper.ID, "dir", dir)
		return LoadDir(dir, paper.ID)
	} else if !errors.Is(err, ErrNoContent) {
		return nil, err
	}

	if paper.PDFPath == "" {
		return nil, fmt.Errorf("paper %s has no PDF: %w", paper.ID, ErrNoContent)
	}
	pdfDir, err := filepath.Abs(filepath.Dir(paper.PDFPath))
	if err != nil {
		return nil, err
	}
	absOut, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absOut, 0o755); err != nil {
		return nil, fmt.Errorf("creating document output dir: %w", err)
	}

	opts := container.RunOptions{
		Args: []string{"-p", containerIn + "/" + filepath.Base(paper.PDFPath), "-o", containerOut},
		Mounts: []container.Mount{
			{Host: pdfDir, Container: containerIn, ReadOnly: true},
			{Host: absOut, Container: containerOut},
		},
	}
	slog.Info("parsing document", "paper", paper.ID, "image", s.image)
	if err := s.runtime.Run(ctx, s.image, opts, nil, io.Discard); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", paper.ID, err)
	}
	return LoadDir(dir, paper.ID)
}
