// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry is the compound identity registry. It is the only
// writer of the (paper, local label) → compound mapping and of the
// compound provenance log.
//
// Compound ids are "cmp_" plus the first 12 hex characters of the SHA-256
// of the canonical structure encoding. Labels with no structure get a
// paper-scoped fallback id "<paper>_<label>" and are marked unaligned.
package registry

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zouly-group/tadf-workbench/internal/store"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("not found")

const idPrefix = "cmp_"

// ResolveRequest asks for the compound behind one label of a paper.
// Encoding and Confidence come from a recognized structure, when any.
type ResolveRequest struct {
	LocalLabel  string
	Encoding    string
	Confidence  *float64
	DisplayName string
}

// Resolution is the outcome of resolving one label.
type Resolution struct {
	CompoundID string `json:"compound_id"`
	// Existing is true when the label was already mapped.
	Existing bool `json:"existing"`
	// Created is true when this call created the compound entry.
	Created bool `json:"created"`
	// Aligned is false for fallback ids.
	Aligned bool `json:"aligned"`
}

// Registry resolves local labels to compounds.
type Registry struct {
	st    *store.Store
	canon Canonicalizer
	now   func() time.Time

	mu         sync.Mutex
	paperLocks map[string]*sync.Mutex
}

// New returns a registry over st. A nil canonicalizer hashes encodings as
// written.
func New(st *store.Store, canon Canonicalizer) *Registry {
	if canon == nil {
		canon = RawCanonicalizer{}
	}
	return &Registry{
		st:         st,
		canon:      canon,
		now:        func() time.Time { return time.Now().UTC() },
		paperLocks: make(map[string]*sync.Mutex),
	}
}

// CompoundID derives the registry id for a canonical encoding.
func CompoundID(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return idPrefix + hex.EncodeToString(sum[:])[:12]
}

// FallbackID is the paper-scoped id "paper:label" for a label with no
// structure. Paper ids never contain ':', so distinct pairs never share one.
func FallbackID(paperID, label string) string {
	return paperID + ":" + label
}

// ResolveOrCreate resolves one label. See ResolvePaper.
func (r *Registry) ResolveOrCreate(ctx context.Context, ref types.LocalRef, encoding string, confidence *float64) (Resolution, error) {
	res, err := r.ResolvePaper(ctx, ref.PaperID, []ResolveRequest{{
		LocalLabel: ref.LocalLabel,
		Encoding:   encoding,
		Confidence: confidence,
	}})
	if err != nil {
		return Resolution{}, err
	}
	return res[ref.LocalLabel], nil
}

// ResolvePaper resolves every label of one paper in a single transaction.
// An existing mapping is returned unchanged. Otherwise a structure encoding
// resolves to its hash id, reusing the entry if another paper registered
// the same structure; no encoding yields the fallback id. New mappings
// append "paper:label" to the compound's provenance.
//
// Calls for the same paper are serialized. Canonicalization runs before
// any lock is taken.
func (r *Registry) ResolvePaper(ctx context.Context, paperID string, reqs []ResolveRequest) (map[string]Resolution, error) {
	if strings.TrimSpace(paperID) == "" {
		return nil, fmt.Errorf("resolving labels: empty paper id")
	}
	if strings.Contains(paperID, ":") {
		return nil, fmt.Errorf("resolving labels: paper id %q contains ':'", paperID)
	}
	for _, req := range reqs {
		if strings.TrimSpace(req.LocalLabel) == "" {
			return nil, fmt.Errorf("resolving labels for %s: empty local label", paperID)
		}
	}

	canonical := make([]string, len(reqs))
	for i, req := range reqs {
		if req.Encoding != "" {
			canonical[i] = r.canonicalize(ctx, req.Encoding)
		}
	}

	unlock := r.lockPaper(paperID)
	defer unlock()

	out := make(map[string]Resolution, len(reqs))
	err := r.st.InTx(ctx, func(tx *sql.Tx) error {
		for i, req := range reqs {
			if _, done := out[req.LocalLabel]; done {
				continue
			}
			res, err := r.resolveTx(ctx, tx, paperID, req, canonical[i])
			if err != nil {
				return fmt.Errorf("resolving %s:%s: %w", paperID, req.LocalLabel, err)
			}
			out[req.LocalLabel] = res
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Registry) resolveTx(ctx context.Context, tx *sql.Tx, paperID string, req ResolveRequest, canonical string) (Resolution, error) {
	var existing string
	var aligned bool
	err := tx.QueryRowContext(ctx,
		`SELECT l.compound_id, c.aligned FROM compound_labels l
		 JOIN compounds c ON c.compound_id = l.compound_id
		 WHERE l.paper_id = ? AND l.local_label = ?`,
		paperID, req.LocalLabel,
	).Scan(&existing, &aligned)
	if err == nil {
		return Resolution{CompoundID: existing, Existing: true, Aligned: aligned}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Resolution{}, fmt.Errorf("looking up label: %w", err)
	}

	ts := store.Timestamp(r.now())
	res := Resolution{Aligned: canonical != ""}
	if res.Aligned {
		res.CompoundID = CompoundID(canonical)
	} else {
		res.CompoundID = FallbackID(paperID, req.LocalLabel)
	}

	// Create if absent: the first writer's origin fields win.
	result, err := tx.ExecContext(ctx,
		`INSERT INTO compounds (compound_id, origin_paper_id, origin_local_label, display_name,
			structure_encoding, structure_confidence, aligned, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(compound_id) DO NOTHING`,
		res.CompoundID, paperID, req.LocalLabel, req.DisplayName,
		canonical, nullFloat(req.Confidence), res.Aligned, ts, ts,
	)
	if err != nil {
		return Resolution{}, fmt.Errorf("creating compound: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 1 {
		res.Created = true
	} else {
		// Fill fields left empty by the creator.
		if _, err := tx.ExecContext(ctx,
			`UPDATE compounds SET
				structure_encoding = CASE WHEN structure_encoding = '' THEN ? ELSE structure_encoding END,
				structure_confidence = CASE WHEN structure_encoding = '' THEN ? ELSE structure_confidence END,
				display_name = CASE WHEN display_name = '' THEN ? ELSE display_name END,
				updated_at = ?
			 WHERE compound_id = ?`,
			canonical, nullFloat(req.Confidence), req.DisplayName, ts, res.CompoundID,
		); err != nil {
			return Resolution{}, fmt.Errorf("updating compound: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO compound_labels (paper_id, local_label, compound_id, created_at) VALUES (?, ?, ?, ?)`,
		paperID, req.LocalLabel, res.CompoundID, ts,
	); err != nil {
		return Resolution{}, fmt.Errorf("mapping label: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO compound_provenance (compound_id, paper_id, local_label, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(compound_id, paper_id, local_label) DO NOTHING`,
		res.CompoundID, paperID, req.LocalLabel, ts,
	); err != nil {
		return Resolution{}, fmt.Errorf("appending provenance: %w", err)
	}

	return res, nil
}

// canonicalize falls back to the trimmed raw encoding when the
// canonicalizer fails.
func (r *Registry) canonicalize(ctx context.Context, encoding string) string {
	raw := strings.TrimSpace(encoding)
	canonical, err := r.canon.Canonicalize(ctx, encoding)
	if err != nil || canonical == "" {
		slog.Warn("canonicalization failed, hashing raw encoding", "encoding", raw, "error", err)
		return raw
	}
	return canonical
}

func (r *Registry) lockPaper(paperID string) func() {
	r.mu.Lock()
	l, ok := r.paperLocks[paperID]
	if !ok {
		l = &sync.Mutex{}
		r.paperLocks[paperID] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
