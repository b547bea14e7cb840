// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zouly-group/tadf-workbench/internal/store"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

const compoundColumns = `compound_id, origin_paper_id, origin_local_label, display_name,
	structure_encoding, structure_confidence, aligned, created_at, updated_at`

// Lookup returns the compound with the given id, or ErrNotFound.
func (r *Registry) Lookup(ctx context.Context, compoundID string) (*types.Compound, error) {
	row := r.st.DB().QueryRowContext(ctx,
		`SELECT `+compoundColumns+` FROM compounds WHERE compound_id = ?`, compoundID)
	c, err := scanCompound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("compound %s: %w", compoundID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up compound %s: %w", compoundID, err)
	}

	prov, err := r.provenance(ctx, compoundID)
	if err != nil {
		return nil, err
	}
	c.Provenance = prov[compoundID]
	return c, nil
}

// LookupMany returns the compounds for ids that exist, keyed by id.
func (r *Registry) LookupMany(ctx context.Context, ids []string) (map[string]*types.Compound, error) {
	out := make(map[string]*types.Compound, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok || id == "" {
			continue
		}
		c, err := r.Lookup(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = c
	}
	return out, nil
}

// FindByLocal returns the compound id mapped to a paper's label, or
// ErrNotFound.
func (r *Registry) FindByLocal(ctx context.Context, paperID, label string) (string, error) {
	var id string
	err := r.st.DB().QueryRowContext(ctx,
		`SELECT compound_id FROM compound_labels WHERE paper_id = ? AND local_label = ?`,
		paperID, label,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("label %s:%s: %w", paperID, label, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("finding label %s:%s: %w", paperID, label, err)
	}
	return id, nil
}

// List returns every compound in creation order.
func (r *Registry) List(ctx context.Context) ([]types.Compound, error) {
	rows, err := r.st.DB().QueryContext(ctx,
		`SELECT `+compoundColumns+` FROM compounds ORDER BY created_at, compound_id`)
	if err != nil {
		return nil, fmt.Errorf("listing compounds: %w", err)
	}
	var out []types.Compound
	for rows.Next() {
		c, err := scanCompound(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning compound: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	prov, err := r.provenance(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Provenance = prov[out[i].CompoundID]
	}
	return out, nil
}

// Stats counts registry entries.
type Stats struct {
	Compounds     int `json:"compounds"`
	WithStructure int `json:"with_structure"`
	Unaligned     int `json:"unaligned"`
	Labels        int `json:"labels"`
}

// Stats returns registry counts.
func (r *Registry) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.st.DB().QueryRowContext(ctx,
		`SELECT count(*),
			coalesce(sum(CASE WHEN structure_encoding != '' THEN 1 ELSE 0 END), 0),
			coalesce(sum(CASE WHEN aligned = 0 THEN 1 ELSE 0 END), 0)
		 FROM compounds`,
	).Scan(&s.Compounds, &s.WithStructure, &s.Unaligned)
	if err != nil {
		return Stats{}, fmt.Errorf("counting compounds: %w", err)
	}
	if err := r.st.DB().QueryRowContext(ctx, `SELECT count(*) FROM compound_labels`).Scan(&s.Labels); err != nil {
		return Stats{}, fmt.Errorf("counting labels: %w", err)
	}
	return s, nil
}

// provenance loads provenance entries in append order, for one compound or
// for all when compoundID is empty.
func (r *Registry) provenance(ctx context.Context, compoundID string) (map[string][]string, error) {
	query := `SELECT compound_id, paper_id, local_label FROM compound_provenance`
	var args []any
	if compoundID != "" {
		query += ` WHERE compound_id = ?`
		args = append(args, compoundID)
	}
	query += ` ORDER BY seq`

	rows, err := r.st.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading provenance: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var id string
		var ref types.LocalRef
		if err := rows.Scan(&id, &ref.PaperID, &ref.LocalLabel); err != nil {
			return nil, fmt.Errorf("scanning provenance: %w", err)
		}
		out[id] = append(out[id], ref.String())
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCompound(s scanner) (*types.Compound, error) {
	var c types.Compound
	var conf sql.NullFloat64
	var created, updated string
	if err := s.Scan(&c.CompoundID, &c.OriginPaperID, &c.OriginLocalLabel, &c.DisplayName,
		&c.StructureEncoding, &conf, &c.Aligned, &created, &updated); err != nil {
		return nil, err
	}
	if conf.Valid {
		v := conf.Float64
		c.StructureConfidence = &v
	}
	c.CreatedAt = store.ParseTimestamp(created)
	c.UpdatedAt = store.ParseTimestamp(updated)
	return &c, nil
}
