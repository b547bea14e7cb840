// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package papers keeps the registry of processed papers: their ids, source
// PDFs, and the outcome of the most recent run.
package papers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zouly-group/tadf-workbench/internal/store"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// ErrNotFound is returned when no paper has the requested id.
var ErrNotFound = errors.New("paper not found")

// ErrInvalidID is returned for an explicit paper id that cannot name a
// paper: ':' separates paper and label in compound ids and provenance, and
// path separators would escape the processed directory.
var ErrInvalidID = errors.New("invalid paper id")

// Registry reads and writes the papers table.
type Registry struct {
	st  *store.Store
	now func() time.Time
}

// NewRegistry returns a paper registry on st.
func NewRegistry(st *store.Store) *Registry {
	return &Registry{st: st, now: time.Now}
}

// Register derives the paper's id when empty, reads its page count, and
// records it as pending. Registering an existing id refreshes its metadata
// and resets its status; an empty DOI or title keeps the stored one.
func (r *Registry) Register(ctx context.Context, p types.Paper) (types.Paper, error) {
	if p.ID == "" {
		id, err := ID(p.DOI, p.PDFPath)
		if err != nil {
			return p, err
		}
		p.ID = id
	} else if strings.ContainsAny(p.ID, ":/\\") {
		return p, fmt.Errorf("%w %q: must not contain ':' or path separators", ErrInvalidID, p.ID)
	}
	if p.Pages == 0 && p.PDFPath != "" {
		n, err := PageCount(p.PDFPath)
		if err != nil {
			slog.Warn("page count unavailable", "paper", p.ID, "error", err)
		}
		p.Pages = n
	}
	p.Status = types.PaperPending
	p.Message = ""
	p.UpdatedAt = r.now().UTC()

	err := r.st.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO papers (id, doi, title, pdf_path, pages, status, message, last_run_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, '', ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				doi = CASE WHEN excluded.doi = '' THEN papers.doi ELSE excluded.doi END,
				title = CASE WHEN excluded.title = '' THEN papers.title ELSE excluded.title END,
				pdf_path = excluded.pdf_path,
				pages = excluded.pages,
				status = excluded.status,
				message = '',
				last_run_id = CASE WHEN excluded.last_run_id = '' THEN papers.last_run_id ELSE excluded.last_run_id END,
				updated_at = excluded.updated_at`,
			p.ID, p.DOI, p.Title, p.PDFPath, p.Pages, string(p.Status), p.LastRunID, store.Timestamp(p.UpdatedAt))
		return err
	})
	if err != nil {
		return p, fmt.Errorf("registering paper %s: %w", p.ID, err)
	}
	return p, nil
}

// SetStatus records the outcome of a run.
func (r *Registry) SetStatus(ctx context.Context, id string, status types.PaperStatus, message, runID string) error {
	return r.st.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE papers SET status = ?, message = ?, last_run_id = ?, updated_at = ? WHERE id = ?`,
			string(status), message, runID, store.Timestamp(r.now()), id)
		if err != nil {
			return fmt.Errorf("updating paper %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("paper %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

const paperColumns = `id, doi, title, pdf_path, pages, status, message, last_run_id, updated_at`

// Get returns the paper with the given id, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, id string) (types.Paper, error) {
	row := r.st.DB().QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE id = ?`, id)
	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("paper %s: %w", id, ErrNotFound)
	}
	return p, err
}

// List returns every paper ordered by id, optionally filtered by status.
func (r *Registry) List(ctx context.Context, status types.PaperStatus) ([]types.Paper, error) {
	q := `SELECT ` + paperColumns + ` FROM papers`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	rows, err := r.st.DB().QueryContext(ctx, q+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	defer rows.Close()

	var out []types.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Counts returns the number of papers per status.
func (r *Registry) Counts(ctx context.Context) (map[types.PaperStatus]int, error) {
	rows, err := r.st.DB().QueryContext(ctx, `SELECT status, COUNT(*) FROM papers GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting papers: %w", err)
	}
	defer rows.Close()

	out := make(map[types.PaperStatus]int)
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[types.PaperStatus(s)] = n
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPaper(s scanner) (types.Paper, error) {
	var p types.Paper
	var status, updated string
	err := s.Scan(&p.ID, &p.DOI, &p.Title, &p.PDFPath, &p.Pages, &status, &p.Message, &p.LastRunID, &updated)
	if err != nil {
		return p, err
	}
	p.Status = types.PaperStatus(status)
	p.UpdatedAt = store.ParseTimestamp(updated)
	return p, nil
}
