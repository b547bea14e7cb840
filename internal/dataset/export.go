// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// Join columns prepended to every ML row.
const (
	ColumnCompoundID = "compound_id"
	ColumnStructure  = "structure_encoding"
)

// ExportOptions selects rows for an ML export.
type ExportOptions struct {
	// Quality keeps records with this flag; empty means valid.
	Quality types.QualityFlag
	// RequireFields drops rows where any listed field is absent.
	RequireFields []string
	// Columns projects rows onto these columns; empty keeps all.
	Columns []string
}

// Target is a named ML export preset.
type Target struct {
	Name    string
	Kind    types.MeasurementKind
	Options ExportOptions
}

// Targets are the ML datasets produced by ExportTargets.
var Targets = []Target{
	{
		Name: "delta_est",
		Kind: types.KindPhotophysical,
		Options: ExportOptions{
			RequireFields: []string{"Delta_EST_eV"},
			Columns:       []string{ColumnCompoundID, ColumnStructure, "Delta_EST_eV", "environment_type", "temperature_K"},
		},
	},
	{
		Name: "fwhm",
		Kind: types.KindPhotophysical,
		Options: ExportOptions{
			RequireFields: []string{"FWHM_nm"},
			Columns:       []string{ColumnCompoundID, ColumnStructure, "FWHM_nm", "lambda_PL_nm", "environment_type"},
		},
	},
	{
		Name: "eqe",
		Kind: types.KindDevice,
		Options: ExportOptions{
			RequireFields: []string{"EQE_max_percent"},
			Columns:       []string{ColumnCompoundID, ColumnStructure, "EQE_max_percent", "lambda_EL_nm", "host", "doping_wt_percent"},
		},
	},
}

// TargetByName returns the preset with the given name.
func TargetByName(name string) (Target, bool) {
	for _, t := range Targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// Row is one flat dataset row keyed by column name.
type Row map[string]any

// Dataset is a flat table with a fixed column order.
type Dataset struct {
	Kind    types.MeasurementKind
	Columns []string
	Rows    []Row
}

// ExportML joins stored records of one kind with the registry and keeps
// rows whose compound has a structure encoding, whose quality flag matches,
// and which carry every required field. Nothing is written.
func (b *Builder) ExportML(ctx context.Context, kind types.MeasurementKind, opts ExportOptions) (*Dataset, error) {
	flag := opts.Quality
	if flag == "" {
		flag = types.QualityValid
	}
	recs, err := b.Records(ctx, kind, Filter{Quality: flag})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.Header().CompoundID)
	}
	compounds, err := b.reg.LookupMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("joining compounds: %w", err)
	}

	ds := &Dataset{Kind: kind, Columns: columnsFor(kind)}
	for _, rec := range recs {
		c, ok := compounds[rec.Header().CompoundID]
		if !ok || c.StructureEncoding == "" {
			continue
		}
		row := Row{ColumnCompoundID: c.CompoundID, ColumnStructure: c.StructureEncoding}
		for _, f := range rec.Fields() {
			row[f.Name] = f.Value
		}
		if !row.has(opts.RequireFields) {
			continue
		}
		ds.Rows = append(ds.Rows, row)
	}
	if len(opts.Columns) > 0 {
		ds = ds.Project(opts.Columns)
	}
	return ds, nil
}

// ExportTarget builds the dataset for one named preset.
func (b *Builder) ExportTarget(ctx context.Context, t Target) (*Dataset, error) {
	return b.ExportML(ctx, t.Kind, t.Options)
}

func (r Row) has(fields []string) bool {
	for _, f := range fields {
		if r[f] == nil {
			return false
		}
	}
	return true
}

func columnsFor(kind types.MeasurementKind) []string {
	cols := []string{ColumnCompoundID, ColumnStructure}
	rec := types.NewRecord(kind)
	if rec == nil {
		return cols
	}
	for _, f := range rec.Fields() {
		cols = append(cols, f.Name)
	}
	return cols
}

// Project returns a dataset restricted to cols, in that order.
func (d *Dataset) Project(cols []string) *Dataset {
	out := &Dataset{Kind: d.Kind, Columns: append([]string(nil), cols...)}
	for _, r := range d.Rows {
		p := make(Row, len(cols))
		for _, c := range cols {
			p[c] = r[c]
		}
		out.Rows = append(out.Rows, p)
	}
	return out
}

// orderedRow marshals a row as a JSON object in column order.
type orderedRow struct {
	cols []string
	row  Row
}

func (o orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range o.cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(o.row[c])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WriteJSON writes the rows as an indented JSON array.
func (d *Dataset) WriteJSON(w io.Writer) error {
	rows := make([]orderedRow, len(d.Rows))
	for i, r := range d.Rows {
		rows[i] = orderedRow{cols: d.Columns, row: r}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// WriteCSV writes a header line then one line per row. Absent values are
// empty cells.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Columns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	line := make([]string, len(d.Columns))
	for _, r := range d.Rows {
		for i, c := range d.Columns {
			line[i] = cell(r[c])
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteYAML writes the rows as a YAML sequence of mappings in column order.
func (d *Dataset) WriteYAML(w io.Writer) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, r := range d.Rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, c := range d.Columns {
			var v yaml.Node
			if err := v.Encode(r[c]); err != nil {
				return fmt.Errorf("encoding column %s: %w", c, err)
			}
			m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: c}, &v)
		}
		seq.Content = append(seq.Content, m)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(seq); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv, json or yaml)", s)
	}
}

// WriteFile writes the dataset to dir/name.<format> and returns the path.
func (d *Dataset) WriteFile(dir, name string, format Format) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export dir: %w", err)
	}
	path := filepath.Join(dir, name+"."+string(format))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	switch format {
	case FormatCSV:
		err = d.WriteCSV(f)
	case FormatJSON:
		err = d.WriteJSON(f)
	case FormatYAML:
		err = d.WriteYAML(f)
	default:
		err = fmt.Errorf("unknown export format %q", format)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// ExportTargets writes one file per named preset and returns the paths.
func (b *Builder) ExportTargets(ctx context.Context, dir string, format Format) ([]string, error) {
	var paths []string
	for _, t := range Targets {
		ds, err := b.ExportTarget(ctx, t)
		if err != nil {
			return paths, fmt.Errorf("target %s: %w", t.Name, err)
		}
		path, err := ds.WriteFile(dir, t.Name, format)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ExportAll dumps the compound registry and both measurement stores, every
// row regardless of quality, as CSV files in dir.
func (b *Builder) ExportAll(ctx context.Context, dir string) ([]string, error) {
	var paths []string

	compounds, err := b.reg.List(ctx)
	if err != nil {
		return nil, err
	}
	cds := &Dataset{Columns: []string{
		"compound_id", "origin_paper_id", "origin_local_label", "display_name",
		"structure_encoding", "structure_confidence", "aligned", "provenance",
	}}
	for _, c := range compounds {
		var conf any
		if c.StructureConfidence != nil {
			conf = *c.StructureConfidence
		}
		cds.Rows = append(cds.Rows, Row{
			"compound_id":          c.CompoundID,
			"origin_paper_id":      c.OriginPaperID,
			"origin_local_label":   c.OriginLocalLabel,
			"display_name":         c.DisplayName,
			"structure_encoding":   c.StructureEncoding,
			"structure_confidence": conf,
			"aligned":              c.Aligned,
			"provenance":           strings.Join(c.Provenance, ";"),
		})
	}
	path, err := cds.WriteFile(dir, "compounds", FormatCSV)
	if err != nil {
		return nil, err
	}
	paths = append(paths, path)

	for _, kind := range types.Kinds {
		recs, err := b.Records(ctx, kind, Filter{})
		if err != nil {
			return paths, err
		}
		ds := &Dataset{Kind: kind, Columns: append([]string{
			"record_id", "paper_id", "local_label", "compound_id", "table_id",
			"quality_flag", "quality_issues",
		}, columnsFor(kind)[2:]...)}
		for _, rec := range recs {
			h := rec.Header()
			row := Row{
				"record_id":      h.RecordID,
				"paper_id":       h.PaperID,
				"local_label":    h.LocalLabel,
				"compound_id":    h.CompoundID,
				"table_id":       h.TableID,
				"quality_flag":   string(h.QualityFlag),
				"quality_issues": strings.Join(h.QualityIssues, "; "),
			}
			for _, f := range rec.Fields() {
				row[f.Name] = f.Value
			}
			ds.Rows = append(ds.Rows, row)
		}
		path, err := ds.WriteFile(dir, tables[kind], FormatCSV)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}
