// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"context"
	"fmt"

	"github.com/zouly-group/tadf-workbench/internal/registry"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// StoreStats counts one measurement store.
type StoreStats struct {
	Total              int `json:"total" yaml:"total"`
	Valid              int `json:"valid" yaml:"valid"`
	Suspect            int `json:"suspect" yaml:"suspect"`
	Invalid            int `json:"invalid" yaml:"invalid"`
	StructureConfirmed int `json:"structure_confirmed" yaml:"structure_confirmed"`
}

// Statistics summarizes the stores and the registry.
type Statistics struct {
	Papers       int                                  `json:"papers" yaml:"papers"`
	Compounds    registry.Stats                       `json:"compounds" yaml:"compounds"`
	Measurements map[types.MeasurementKind]StoreStats `json:"measurements" yaml:"measurements"`
}

// Statistics counts stored records per kind and quality flag, the records
// whose compound has a structure, and registry totals. It does not mutate.
func (b *Builder) Statistics(ctx context.Context) (Statistics, error) {
	s := Statistics{Measurements: make(map[types.MeasurementKind]StoreStats, len(tables))}

	if err := b.st.DB().QueryRowContext(ctx, `SELECT count(*) FROM papers`).Scan(&s.Papers); err != nil {
		return Statistics{}, fmt.Errorf("counting papers: %w", err)
	}

	for _, kind := range types.Kinds {
		table := tables[kind]
		var ss StoreStats
		err := b.st.DB().QueryRowContext(ctx,
			`SELECT count(*),
				coalesce(sum(CASE WHEN quality_flag = 'valid' THEN 1 ELSE 0 END), 0),
				coalesce(sum(CASE WHEN quality_flag = 'suspect' THEN 1 ELSE 0 END), 0),
				coalesce(sum(CASE WHEN quality_flag = 'invalid' THEN 1 ELSE 0 END), 0)
			 FROM `+table,
		).Scan(&ss.Total, &ss.Valid, &ss.Suspect, &ss.Invalid)
		if err != nil {
			return Statistics{}, fmt.Errorf("counting %s: %w", table, err)
		}
		err = b.st.DB().QueryRowContext(ctx,
			`SELECT count(*) FROM `+table+` m
			 JOIN compounds c ON c.compound_id = m.compound_id
			 WHERE c.structure_encoding != ''`,
		).Scan(&ss.StructureConfirmed)
		if err != nil {
			return Statistics{}, fmt.Errorf("counting confirmed %s: %w", table, err)
		}
		s.Measurements[kind] = ss
	}

	rs, err := b.reg.Stats(ctx)
	if err != nil {
		return Statistics{}, err
	}
	s.Compounds = rs
	return s, nil
}
