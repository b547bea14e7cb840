// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns measurement tables into typed records via a chat
// model. Each table kind has its own prompt; the model's JSON array answer
// is decoded leniently into photophysical or device records.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// maxContextParagraphs caps the surrounding text sent with a table.
const maxContextParagraphs = 3

// snippetLen caps the source snippet stored on each record.
const snippetLen = 200

// ErrUnsupportedTable is returned for tables whose kind yields no records.
var ErrUnsupportedTable = errors.New("table kind has no record type")

// Completer abstracts the chat model so tests can supply a mock.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// TableExtractor extracts records from one table.
type TableExtractor interface {
	Extract(ctx context.Context, paperID string, table types.Table, paragraphs []string) ([]types.Record, error)
}

// ChatExtractor is a TableExtractor backed by a chat model.
type ChatExtractor struct {
	model      Completer
	maxRetries int
}

// NewChatExtractor returns an extractor that retries failed calls up to
// maxRetries times (default 1).
func NewChatExtractor(model Completer, maxRetries int) *ChatExtractor {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &ChatExtractor{model: model, maxRetries: maxRetries}
}

// Extract renders the prompt for the table's kind, calls the model and
// decodes its answer. A call that still fails after retries is an error. An
// answer that does not parse yields no records and no error.
func (e *ChatExtractor) Extract(ctx context.Context, paperID string, table types.Table, paragraphs []string) ([]types.Record, error) {
	kind, ok := recordKind(table.Kind)
	if !ok {
		return nil, fmt.Errorf("table %s (%s): %w", table.TableID, table.Kind, ErrUnsupportedTable)
	}

	system, user, err := renderPrompt(kind, table, paragraphs)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	answer, err := callWithRetry(ctx, e.model, system, user, e.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("extracting table %s: %w", table.TableID, err)
	}

	rows, err := parseRows(answer)
	if err != nil {
		slog.Warn("unparseable extraction answer", "paper", paperID, "table", table.TableID, "error", err, "answer", truncate(answer, snippetLen))
		return nil, nil
	}

	records := make([]types.Record, 0, len(rows))
	for i, row := range rows {
		rec, err := decodeRecord(kind, row)
		if err != nil {
			slog.Warn("dropping extracted row", "paper", paperID, "table", table.TableID, "row", i, "error", err)
			continue
		}
		h := rec.Header()
		h.PaperID = paperID
		h.TableID = table.TableID
		h.SourceSnippet = truncate(table.Caption, snippetLen)
		records = append(records, rec)
	}
	return records, nil
}

func recordKind(k types.TableKind) (types.MeasurementKind, bool) {
	switch k {
	case types.TablePhotophysical:
		return types.KindPhotophysical, true
	case types.TableDevice:
		return types.KindDevice, true
	default:
		return "", false
	}
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls the model with exponential backoff.
func callWithRetry(ctx context.Context, model Completer, system, user string, maxRetries int) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := model.Complete(ctx, system, user)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// fenceRe finds a fenced JSON block inside a chatty answer.
var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\]|\\{.*?\\})\\s*```")

// parseRows decodes the answer as a JSON array of objects, or a single
// object, falling back to the first fenced block.
func parseRows(answer string) ([]map[string]any, error) {
	rows, err := decodeRows(strings.TrimSpace(answer))
	if err == nil {
		return rows, nil
	}
	if m := fenceRe.FindStringSubmatch(answer); m != nil {
		return decodeRows(m[1])
	}
	return nil, err
}

func decodeRows(s string) ([]map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case []any:
		rows := make([]map[string]any, 0, len(x))
		for _, e := range x {
			if m, ok := e.(map[string]any); ok {
				rows = append(rows, m)
			}
		}
		return rows, nil
	case map[string]any:
		return []map[string]any{x}, nil
	default:
		return nil, fmt.Errorf("answer is a JSON %T, want array or object", v)
	}
}

// labelKeys are the answer keys that may carry the paper-local label.
var labelKeys = []string{"paper_local_id", "local_label", "compound_label", "label"}

// decodeRecord normalizes one answer row onto the record's JSON fields:
// numeric fields become floats or are dropped, text fields become strings.
func decodeRecord(kind types.MeasurementKind, row map[string]any) (types.Record, error) {
	rec := types.NewRecord(kind)

	clean := make(map[string]any)
	for _, k := range labelKeys {
		if s := text(row[k]); s != "" {
			clean["local_label"] = s
			break
		}
	}
	numeric := make(map[string]bool)
	for _, n := range rec.Numeric() {
		numeric[n.Name] = true
		if v, ok := number(row[n.Name]); ok {
			clean[n.Name] = v
		}
	}
	for _, f := range rec.Fields() {
		if numeric[f.Name] {
			continue
		}
		if s := text(row[f.Name]); s != "" {
			clean[f.Name] = s
		}
	}

	data, err := json.Marshal(clean)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// numberRe pulls the leading number out of cells like "90%" or "~3.2 μs".
var numberRe = regexp.MustCompile(`[-+]?\d*\.?\d+(?:[eE][-+]?\d+)?`)

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, "−", "-"))
		if s == "" || s == "-" || strings.EqualFold(s, "n/a") {
			return 0, false
		}
		m := numberRe.FindString(s)
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(m, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
