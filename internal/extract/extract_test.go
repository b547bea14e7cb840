// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// mockCompleter returns canned answers and records the prompts it saw.
type mockCompleter struct {
	answer string
	system string
	user   string
}

func (m *mockCompleter) Complete(_ context.Context, system, user string) (string, error) {
	m.system, m.user = system, user
	return m.answer, nil
}

// failNTimes fails the first n calls then answers.
type failNTimes struct {
	n      int
	calls  int
	answer string
}

func (f *failNTimes) Complete(context.Context, string, string) (string, error) {
	f.calls++
	if f.calls <= f.n {
		return "", errors.New("model unavailable")
	}
	return f.answer, nil
}

func TestMain(m *testing.M) {
	backoffBase = time.Millisecond
	m.Run()
}

var photoTable = types.Table{
	TableID: "p1_table_1",
	Caption: "Table 1. Photophysical properties of 1-3.",
	Content: "| Cpd | λPL | ΦPL | ΔEST |\n|---|---|---|---|\n| 1 | 475 | 0.92 | 0.08 |",
	Kind:    types.TablePhotophysical,
}

func TestExtract_Photophysical(t *testing.T) {
	m := &mockCompleter{answer: `[
		{"paper_local_id": 1, "lambda_PL_nm": 475, "Phi_PL": "0.92", "Delta_EST_eV": 0.08, "environment_type": "doped_film", "FWHM_nm": null},
		{"paper_local_id": "2a", "lambda_PL_nm": "488 nm", "Phi_PL": "n/a", "name": "  DMAC-TRZ "}
	]`}
	e := NewChatExtractor(m, 0)

	recs, err := e.Extract(context.Background(), "p1", photoTable, []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0].(*types.PhotophysicalRecord)
	assert.Equal(t, "p1", first.PaperID)
	assert.Equal(t, "p1_table_1", first.TableID)
	assert.Equal(t, "1", first.LocalLabel)
	assert.Equal(t, photoTable.Caption, first.SourceSnippet)
	require.NotNil(t, first.PhiPL)
	assert.InDelta(t, 0.92, *first.PhiPL, 1e-9)
	assert.InDelta(t, 475, *first.LambdaPLNm, 1e-9)
	assert.Equal(t, "doped_film", first.EnvironmentType)
	assert.Nil(t, first.FWHMNm)

	second := recs[1].(*types.PhotophysicalRecord)
	assert.Equal(t, "2a", second.LocalLabel)
	assert.InDelta(t, 488, *second.LambdaPLNm, 1e-9)
	assert.Nil(t, second.PhiPL)
	assert.Equal(t, "DMAC-TRZ", second.Name)

	assert.Contains(t, m.system, "Delta_EST_eV")
	assert.Contains(t, m.user, photoTable.Caption)
	assert.Contains(t, m.user, "c\n")
	assert.NotContains(t, m.user, "d\n", "context is capped")
}

func TestExtract_Device(t *testing.T) {
	m := &mockCompleter{answer: "Here you go:\n```json\n[{\"paper_local_id\": \"3\", \"EQE_max_percent\": 25.3, \"CIE_x\": 0.16, \"host\": \"mCBP\"}]\n```"}
	e := NewChatExtractor(m, 0)

	table := types.Table{TableID: "p1_table_2", Caption: "Table 2. EL performance.", Kind: types.TableDevice}
	recs, err := e.Extract(context.Background(), "p1", table, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	dev := recs[0].(*types.DeviceRecord)
	assert.Equal(t, "3", dev.LocalLabel)
	assert.InDelta(t, 25.3, *dev.EQEMaxPercent, 1e-9)
	assert.Equal(t, "mCBP", dev.Host)
	assert.Contains(t, m.system, "EQE_max_percent")
	assert.NotContains(t, m.user, "Context paragraphs")
}

func TestExtract_MalformedAnswerYieldsNoRecords(t *testing.T) {
	e := NewChatExtractor(&mockCompleter{answer: "I could not find any data."}, 0)
	recs, err := e.Extract(context.Background(), "p1", photoTable, nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestExtract_UnsupportedTable(t *testing.T) {
	e := NewChatExtractor(&mockCompleter{}, 0)
	_, err := e.Extract(context.Background(), "p1", types.Table{TableID: "t", Kind: types.TableComputational}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedTable)
}

func TestCallWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		retries   int
		wantErr   bool
		wantCalls int
	}{
		{"first call succeeds", 0, 2, false, 1},
		{"recovers after failures", 2, 2, false, 3},
		{"exhausts retries", 3, 2, true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &failNTimes{n: tt.failures, answer: "[]"}
			out, err := callWithRetry(context.Background(), f, "s", "u", tt.retries)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "model unavailable")
			} else {
				require.NoError(t, err)
				assert.Equal(t, "[]", out)
			}
			assert.Equal(t, tt.wantCalls, f.calls)
		})
	}
}

func TestParseRows(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		want    int
		wantErr bool
	}{
		{"array", `[{"a": 1}, {"b": 2}]`, 2, false},
		{"single object", `{"a": 1}`, 1, false},
		{"fenced", "text\n```json\n[{\"a\": 1}]\n```\nmore", 1, false},
		{"unlabeled fence", "```\n{\"a\": 1}\n```", 1, false},
		{"non-object elements dropped", `[{"a": 1}, 3, "x"]`, 1, false},
		{"scalar", `42`, 0, true},
		{"prose", `no table here`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := parseRows(tt.answer)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, rows, tt.want)
		})
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{"0.92", 0.92, true},
		{"90%", 90, true},
		{"~3.2 μs", 3.2, true},
		{"−0.05", -0.05, true},
		{"1.2e5", 1.2e5, true},
		{"-", 0, false},
		{"N/A", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := number(tt.in)
		assert.Equal(t, tt.wantOK, ok, "%v", tt.in)
		if tt.wantOK {
			assert.InDelta(t, tt.want, got, 1e-9, "%v", tt.in)
		}
	}
}
