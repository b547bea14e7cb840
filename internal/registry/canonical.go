// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/zouly-group/tadf-workbench/internal/container"
)

// Canonicalizer rewrites a structure encoding into canonical form so that
// equivalent structures hash to the same compound id.
type Canonicalizer interface {
	Canonicalize(ctx context.Context, encoding string) (string, error)
}

// RawCanonicalizer hashes encodings as written, trimmed of surrounding
// whitespace. Chemically equivalent encodings written differently do not
// dedupe under it.
type RawCanonicalizer struct{}

// Canonicalize implements Canonicalizer.
func (RawCanonicalizer) Canonicalize(_ context.Context, encoding string) (string, error) {
	return strings.TrimSpace(encoding), nil
}

// ContainerCanonicalizer pipes each encoding through a cheminformatics
// container image that prints the canonical encoding on stdout.
type ContainerCanonicalizer struct {
	runtime container.Runtime
	image   string
}

// NewContainerCanonicalizer checks that image exists in rt.
func NewContainerCanonicalizer(ctx context.Context, rt container.Runtime, image string) (*ContainerCanonicalizer, error) {
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("canonicalizer image not available in %s: %w", rt.Name(), err)
	}
	return &ContainerCanonicalizer{runtime: rt, image: image}, nil
}

// Canonicalize implements Canonicalizer.
func (c *ContainerCanonicalizer) Canonicalize(ctx context.Context, encoding string) (string, error) {
	var out bytes.Buffer
	in := strings.NewReader(strings.TrimSpace(encoding) + "\n")
	if err := c.runtime.Run(ctx, c.image, container.RunOptions{}, in, &out); err != nil {
		return "", fmt.Errorf("canonicalizing %q: %w", encoding, err)
	}
	canonical := strings.TrimSpace(out.String())
	if canonical == "" {
		return "", fmt.Errorf("canonicalizer returned nothing for %q", encoding)
	}
	return canonical, nil
}
