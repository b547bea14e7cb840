// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/zouly-group/tadf-workbench/internal/registry"
	"github.com/zouly-group/tadf-workbench/internal/store"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

func testBuilder(t *testing.T) (*Builder, *registry.Registry) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "dataset.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	reg := registry.New(st, nil)
	return NewBuilder(st, reg), reg
}

func scored(paper, label, compound string, flag types.QualityFlag) *types.PhotophysicalRecord {
	return &types.PhotophysicalRecord{RecordHeader: types.RecordHeader{
		PaperID: paper, LocalLabel: label, CompoundID: compound, QualityFlag: flag,
	}}
}

// seed registers p1:1 with a structure and p1:2 without, then stores three
// photophysical records against them.
func seed(t *testing.T, b *Builder, reg *registry.Registry) string {
	t.Helper()
	ctx := context.Background()
	_, err := reg.ResolvePaper(ctx, "p1", []registry.ResolveRequest{
		{LocalLabel: "1", Encoding: "c1ccccc1"},
		{LocalLabel: "2"},
	})
	require.NoError(t, err)
	cmp := registry.CompoundID("c1ccccc1")

	r1 := scored("p1", "1", cmp, types.QualityValid)
	r1.DeltaESTeV = types.Float(0.08)
	r1.EnvironmentType = "film"

	r2 := scored("p1", "2", registry.FallbackID("p1", "2"), types.QualityValid)
	r2.DeltaESTeV = types.Float(0.1)

	r3 := scored("p1", "1", cmp, types.QualitySuspect)
	r3.RecordID = "p1_1_toluene"
	r3.EnvironmentType = "solution"
	r3.DeltaESTeV = types.Float(1.2)
	r3.QualityIssues = []string{"Delta_EST_eV=1.2 exceeds advisory threshold 1 (verify the emitter is a TADF material)"}

	res, err := b.Upsert(ctx, Records([]*types.PhotophysicalRecord{r1, r2, r3}))
	require.NoError(t, err)
	require.Empty(t, res.Skipped)
	require.Equal(t, 3, res.Inserted)
	return cmp
}

func TestRecordID(t *testing.T) {
	tests := []struct {
		name string
		h    types.RecordHeader
		want string
	}{
		{"full", types.RecordHeader{PaperID: "p1", LocalLabel: "2a", CompoundID: "cmp_x"}, "p1_2a_cmp_x"},
		{"no label", types.RecordHeader{PaperID: "p1", CompoundID: "cmp_x"}, "p1_unknown_cmp_x"},
		{"no compound", types.RecordHeader{PaperID: "p1", LocalLabel: "3"}, "p1_3_unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RecordID(&tt.h))
		})
	}
}

func TestUpsert_ReplacesWholeRecord(t *testing.T) {
	b, _ := testBuilder(t)
	ctx := context.Background()

	rec := scored("p1", "1", "p1_1", types.QualityValid)
	rec.DeltaESTeV = types.Float(0.2)
	rec.FWHMNm = types.Float(80)
	res, err := b.Upsert(ctx, Records([]*types.PhotophysicalRecord{rec}))
	require.NoError(t, err)
	assert.Equal(t, []string{"p1_1_p1_1"}, res.Succeeded)
	assert.Equal(t, 1, res.Inserted)

	again := scored("p1", "1", "p1_1", types.QualitySuspect)
	again.DeltaESTeV = types.Float(0.3)
	res, err = b.Upsert(ctx, Records([]*types.PhotophysicalRecord{again}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Replaced)
	assert.Zero(t, res.Inserted)

	got, err := b.Get(ctx, types.KindPhotophysical, "p1_1_p1_1")
	require.NoError(t, err)
	p := got.(*types.PhotophysicalRecord)
	assert.InDelta(t, 0.3, *p.DeltaESTeV, 1e-9)
	assert.Nil(t, p.FWHMNm, "no field survives from the replaced row")
	assert.Equal(t, types.QualitySuspect, p.QualityFlag)

	all, err := b.Records(ctx, types.KindPhotophysical, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsert_SkipsBadRecordsAndContinues(t *testing.T) {
	b, _ := testBuilder(t)
	ctx := context.Background()

	nan := scored("p1", "2", "", types.QualityInvalid)
	nan.PhiPL = types.Float(math.NaN())

	dev := &types.DeviceRecord{RecordHeader: types.RecordHeader{PaperID: "p1", LocalLabel: "1", QualityFlag: types.QualityValid}}
	dev.EQEMaxPercent = types.Float(21.5)

	res, err := b.Upsert(ctx, []types.Record{
		scored("", "1", "", types.QualityValid),
		nan,
		scored("p1", "3", "", ""),
		dev,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"p1_1_unknown"}, res.Succeeded)
	require.Len(t, res.Skipped, 3)
	assert.Equal(t, 0, res.Skipped[0].Index)
	assert.Contains(t, res.Skipped[0].Reason, "paper_id")
	assert.Equal(t, 1, res.Skipped[1].Index)
	assert.Equal(t, "p1_2_unknown", res.Skipped[1].RecordID)
	assert.Equal(t, 2, res.Skipped[2].Index)

	_, err = b.Get(ctx, types.KindDevice, "p1_1_unknown")
	require.NoError(t, err)
	_, err = b.Get(ctx, types.KindPhotophysical, "p1_2_unknown")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestUpsert_CanceledContext(t *testing.T) {
	b, _ := testBuilder(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Upsert(ctx, []types.Record{scored("p1", "1", "", types.QualityValid)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExportML(t *testing.T) {
	b, reg := testBuilder(t)
	cmp := seed(t, b, reg)
	ctx := context.Background()

	ds, err := b.ExportML(ctx, types.KindPhotophysical, ExportOptions{})
	require.NoError(t, err)
	require.Len(t, ds.Rows, 1, "rows without a structure are dropped")
	row := ds.Rows[0]
	assert.Equal(t, cmp, row[ColumnCompoundID])
	assert.Equal(t, "c1ccccc1", row[ColumnStructure])
	assert.Equal(t, 0.08, row["Delta_EST_eV"])
	assert.Nil(t, row["FWHM_nm"])
	assert.Equal(t, []string{ColumnCompoundID, ColumnStructure}, ds.Columns[:2])
	assert.Contains(t, ds.Columns, "Delta_EST_eV")

	ds, err = b.ExportML(ctx, types.KindPhotophysical, ExportOptions{Quality: types.QualitySuspect})
	require.NoError(t, err)
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, 1.2, ds.Rows[0]["Delta_EST_eV"])

	ds, err = b.ExportML(ctx, types.KindPhotophysical, ExportOptions{RequireFields: []string{"FWHM_nm"}})
	require.NoError(t, err)
	assert.Empty(t, ds.Rows)

	ds, err = b.ExportML(ctx, types.KindDevice, ExportOptions{})
	require.NoError(t, err)
	assert.Empty(t, ds.Rows)
}

func TestExportTarget(t *testing.T) {
	b, reg := testBuilder(t)
	seed(t, b, reg)

	tgt, ok := TargetByName("delta_est")
	require.True(t, ok)
	ds, err := b.ExportTarget(context.Background(), tgt)
	require.NoError(t, err)
	assert.Equal(t, tgt.Options.Columns, ds.Columns)
	require.Len(t, ds.Rows, 1)
	assert.Len(t, ds.Rows[0], len(tgt.Options.Columns))

	_, ok = TargetByName("homo_lumo")
	assert.False(t, ok)

	dir := t.TempDir()
	paths, err := b.ExportTargets(context.Background(), dir, FormatJSON)
	require.NoError(t, err)
	assert.Len(t, paths, len(Targets))
	for _, p := range paths {
		assert.FileExists(t, p)
	}
}

func goldenDataset() *Dataset {
	return &Dataset{
		Kind:    types.KindPhotophysical,
		Columns: []string{ColumnCompoundID, ColumnStructure, "Delta_EST_eV", "environment_type", "temperature_K"},
		Rows: []Row{
			{ColumnCompoundID: "cmp_a", ColumnStructure: "c1ccccc1", "Delta_EST_eV": 0.08, "environment_type": "film", "temperature_K": 300.0},
			{ColumnCompoundID: "cmp_b", ColumnStructure: "N#C", "Delta_EST_eV": 0.15, "environment_type": nil, "temperature_K": nil},
		},
	}
}

func TestDataset_Golden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	ds := goldenDataset()

	var csvOut bytes.Buffer
	require.NoError(t, ds.WriteCSV(&csvOut))
	g.Assert(t, "delta_est_csv", csvOut.Bytes())

	var jsonOut bytes.Buffer
	require.NoError(t, ds.WriteJSON(&jsonOut))
	g.Assert(t, "delta_est_json", jsonOut.Bytes())
}

func TestDataset_WriteYAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, goldenDataset().WriteYAML(&out))

	assert.True(t, strings.HasPrefix(out.String(), "- compound_id: cmp_a\n  structure_encoding: c1ccccc1\n"),
		"columns keep their order: %s", out.String())

	var rows []map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, 0.08, rows[0]["Delta_EST_eV"])
	assert.Nil(t, rows[1]["temperature_K"])
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("parquet")
	assert.Error(t, err)
}

func TestExportAll(t *testing.T) {
	b, reg := testBuilder(t)
	seed(t, b, reg)

	dir := t.TempDir()
	paths, err := b.ExportAll(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "compounds.csv"),
		filepath.Join(dir, "devices.csv"),
		filepath.Join(dir, "photophysics.csv"),
	}, paths)

	data, err := os.ReadFile(filepath.Join(dir, "photophysics.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4, "header plus every record regardless of quality")
	assert.True(t, strings.HasPrefix(lines[0], "record_id,paper_id,local_label,compound_id,table_id,quality_flag,quality_issues,name,"))

	data, err = os.ReadFile(filepath.Join(dir, "devices.csv"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"), "header only")
}

func TestStatistics(t *testing.T) {
	b, reg := testBuilder(t)
	seed(t, b, reg)

	s, err := b.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StoreStats{Total: 3, Valid: 2, Suspect: 1, StructureConfirmed: 2}, s.Measurements[types.KindPhotophysical])
	assert.Equal(t, StoreStats{}, s.Measurements[types.KindDevice])
	assert.Equal(t, 2, s.Compounds.Compounds)
	assert.Equal(t, 1, s.Compounds.WithStructure)

	again, err := b.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, s, again)
}
