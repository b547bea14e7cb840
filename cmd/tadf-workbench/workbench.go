// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zouly-group/tadf-workbench/internal/container"
	"github.com/zouly-group/tadf-workbench/internal/dataset"
	"github.com/zouly-group/tadf-workbench/internal/papers"
	"github.com/zouly-group/tadf-workbench/internal/registry"
	"github.com/zouly-group/tadf-workbench/internal/store"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// workbench bundles the stores every command reads or writes.
type workbench struct {
	store    *store.Store
	registry *registry.Registry
	dataset  *dataset.Builder
	papers   *papers.Registry
}

// openWorkbench opens the database and builds the registry with the
// configured canonicalizer.
func openWorkbench(ctx context.Context, c types.Config) (*workbench, error) {
	canon, err := newCanonicalizer(ctx, c.Canonicalizer)
	if err != nil {
		return nil, err
	}
	st, err := store.OpenConfig(c.Store)
	if err != nil {
		return nil, err
	}
	reg := registry.New(st, canon)
	return &workbench{
		store:    st,
		registry: reg,
		dataset:  dataset.NewBuilder(st, reg),
		papers:   papers.NewRegistry(st),
	}, nil
}

func (w *workbench) Close() error { return w.store.Close() }

func newCanonicalizer(ctx context.Context, c types.CanonicalizerConfig) (registry.Canonicalizer, error) {
	switch c.Backend {
	case "", "raw":
		return registry.RawCanonicalizer{}, nil
	case "container":
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		return registry.NewContainerCanonicalizer(ctx, rt, c.Image)
	default:
		return nil, fmt.Errorf("unknown canonicalizer backend %q", c.Backend)
	}
}

// commandContext returns the command's context, set by ExecuteContext.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func parseKind(s string) (types.MeasurementKind, error) {
	for _, k := range types.Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown measurement kind %q (want photophysical or device)", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
