// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dataset persists scored measurement records and builds
// ML-ready exports by joining them with the compound registry.
//
// Records are upserted by record_id with whole-row replacement. A batch
// upsert is best effort: each record commits on its own, and a record that
// cannot be stored is skipped with a reason instead of failing the batch.
package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zouly-group/tadf-workbench/internal/registry"
	"github.com/zouly-group/tadf-workbench/internal/store"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// unknownPart stands in for a missing label or compound in derived record ids.
const unknownPart = "unknown"

// tables maps each measurement kind to its store.
var tables = map[types.MeasurementKind]string{
	types.KindPhotophysical: "photophysics",
	types.KindDevice:        "devices",
}

// Builder owns the measurement stores.
type Builder struct {
	st  *store.Store
	reg *registry.Registry
	now func() time.Time
}

// NewBuilder returns a builder over st, joining exports against reg.
func NewBuilder(st *store.Store, reg *registry.Registry) *Builder {
	return &Builder{
		st:  st,
		reg: reg,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Skipped records why one record of a batch was not stored.
type Skipped struct {
	Index    int    `json:"index" yaml:"index"`
	RecordID string `json:"record_id,omitempty" yaml:"record_id,omitempty"`
	Reason   string `json:"reason" yaml:"reason"`
}

// UpsertResult is the per-record outcome of a batch upsert.
type UpsertResult struct {
	Succeeded []string  `json:"succeeded" yaml:"succeeded"`
	Skipped   []Skipped `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Inserted  int       `json:"inserted" yaml:"inserted"`
	Replaced  int       `json:"replaced" yaml:"replaced"`
}

// Add folds other into r.
func (r *UpsertResult) Add(other UpsertResult) {
	r.Succeeded = append(r.Succeeded, other.Succeeded...)
	r.Skipped = append(r.Skipped, other.Skipped...)
	r.Inserted += other.Inserted
	r.Replaced += other.Replaced
}

// RecordID derives the upsert key "<paper>_<label>_<compound>", with
// "unknown" standing in for a missing label or compound.
func RecordID(h *types.RecordHeader) string {
	label, compound := h.LocalLabel, h.CompoundID
	if label == "" {
		label = unknownPart
	}
	if compound == "" {
		compound = unknownPart
	}
	return h.PaperID + "_" + label + "_" + compound
}

// Records converts a typed slice for Upsert.
func Records[R types.Record](rs []R) []types.Record {
	out := make([]types.Record, len(rs))
	for i, r := range rs {
		out[i] = r
	}
	return out
}

// Upsert stores each record under its record_id, deriving the id when
// unset. Records lacking a paper id or a quality flag, or that cannot be
// serialized, are skipped. The error is non-nil only when ctx ends.
func (b *Builder) Upsert(ctx context.Context, records []types.Record) (UpsertResult, error) {
	var res UpsertResult
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		id, replaced, err := b.upsertOne(ctx, rec)
		if err != nil {
			slog.Warn("record skipped", "index", i, "record_id", id, "reason", err)
			res.Skipped = append(res.Skipped, Skipped{Index: i, RecordID: id, Reason: err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
		if replaced {
			res.Replaced++
		} else {
			res.Inserted++
		}
	}
	return res, nil
}

func (b *Builder) upsertOne(ctx context.Context, rec types.Record) (string, bool, error) {
	if rec == nil {
		return "", false, errors.New("nil record")
	}
	table, ok := tables[rec.Kind()]
	if !ok {
		return "", false, fmt.Errorf("unknown measurement kind %q", rec.Kind())
	}
	h := rec.Header()
	if h.PaperID == "" {
		return h.RecordID, false, errors.New("missing paper_id")
	}
	if h.QualityFlag == "" {
		return h.RecordID, false, errors.New("record has not been scored")
	}
	if h.RecordID == "" {
		h.RecordID = RecordID(h)
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return h.RecordID, false, fmt.Errorf("serializing record: %w", err)
	}
	issues, err := json.Marshal(nonNil(h.QualityIssues))
	if err != nil {
		return h.RecordID, false, fmt.Errorf("serializing issues: %w", err)
	}

	var replaced bool
	err = b.st.InTx(ctx, func(tx *sql.Tx) error {
		var one int
		switch err := tx.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE record_id = ?`, h.RecordID).Scan(&one); {
		case err == nil:
			replaced = true
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("checking record: %w", err)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (record_id, paper_id, local_label, compound_id, quality_flag, quality_issues, payload, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(record_id) DO UPDATE SET
				paper_id=excluded.paper_id, local_label=excluded.local_label,
				compound_id=excluded.compound_id, quality_flag=excluded.quality_flag,
				quality_issues=excluded.quality_issues, payload=excluded.payload,
				updated_at=excluded.updated_at`,
			h.RecordID, h.PaperID, h.LocalLabel, h.CompoundID, string(h.QualityFlag),
			string(issues), string(payload), store.Timestamp(b.now()),
		)
		if err != nil {
			return fmt.Errorf("storing record: %w", err)
		}
		return nil
	})
	if err != nil {
		return h.RecordID, false, err
	}
	return h.RecordID, replaced, nil
}

// Filter narrows record queries. Zero fields match everything.
type Filter struct {
	PaperID string
	Quality types.QualityFlag
}

// Records returns stored records of one kind, ordered by record id.
func (b *Builder) Records(ctx context.Context, kind types.MeasurementKind, f Filter) ([]types.Record, error) {
	table, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown measurement kind %q", kind)
	}

	query := `SELECT payload FROM ` + table + ` WHERE 1=1`
	var args []any
	if f.PaperID != "" {
		query += ` AND paper_id = ?`
		args = append(args, f.PaperID)
	}
	if f.Quality != "" {
		query += ` AND quality_flag = ?`
		args = append(args, string(f.Quality))
	}
	query += ` ORDER BY record_id`

	rows, err := b.st.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		rec := types.NewRecord(kind)
		if err := json.Unmarshal([]byte(payload), rec); err != nil {
			return nil, fmt.Errorf("decoding %s record: %w", kind, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns one stored record by id.
func (b *Builder) Get(ctx context.Context, kind types.MeasurementKind, recordID string) (types.Record, error) {
	table, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown measurement kind %q", kind)
	}
	var payload string
	err := b.st.DB().QueryRowContext(ctx, `SELECT payload FROM `+table+` WHERE record_id = ?`, recordID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s record %s: %w", kind, recordID, registry.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s record %s: %w", kind, recordID, err)
	}
	rec := types.NewRecord(kind)
	if err := json.Unmarshal([]byte(payload), rec); err != nil {
		return nil, fmt.Errorf("decoding %s record %s: %w", kind, recordID, err)
	}
	return rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
