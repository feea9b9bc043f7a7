package cooccurrence_test

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Sumatoshi-tech/speciespool/pkg/cooccurrence"
	"github.com/Sumatoshi-tech/speciespool/pkg/releve"
)

func dataset(t *testing.T, plots map[string][]string, order ...string) *releve.Dataset {
	t.Helper()

	var (
		ps      []releve.Plot
		records []releve.Record
	)

	for _, id := range order {
		ps = append(ps, releve.Plot{ID: id})

		for _, sp := range plots[id] {
			records = append(records, releve.Record{PlotID: id, SpeciesID: sp, Abundance: 1})
		}
	}

	ds, err := releve.NewDataset(ps, records)
	require.NoError(t, err)

	return ds
}

func threePlots(t *testing.T) *releve.Dataset {
	t.Helper()

	return dataset(t, map[string][]string{
		"p1": {"a", "b"},
		"p2": {"a", "c"},
		"p3": {"a", "b", "c"},
	}, "p1", "p2", "p3")
}

func TestBuild_Counts(t *testing.T) {
	t.Parallel()

	counts := cooccurrence.Build(threePlots(t))

	assert.Equal(t, []string{"a", "b", "c"}, counts.Universe())
	assert.Equal(t, 3, counts.Plots())
	assert.InDelta(t, 3.0, counts.Frequency(0), 0)
	assert.InDelta(t, 2.0, counts.Frequency(1), 0)
	assert.InDelta(t, 2.0, counts.Pair(0, 1), 0)
	assert.InDelta(t, 2.0, counts.Pair(1, 0), 0)
	assert.InDelta(t, 1.0, counts.Pair(1, 2), 0)
}

func TestCounts_Probabilities(t *testing.T) {
	t.Parallel()

	m := cooccurrence.Build(threePlots(t)).Probabilities()

	assert.InDelta(t, 1.0, m.At(0, 0), 1e-12)
	assert.InDelta(t, 2.0/3.0, m.At(0, 1), 1e-12)
	assert.InDelta(t, 1.0, m.At(1, 0), 1e-12)
	assert.InDelta(t, 0.5, m.At(1, 2), 1e-12)
}

func TestCounts_LeaveOneOutMatchesRebuild(t *testing.T) {
	t.Parallel()

	full := threePlots(t)
	without := dataset(t, map[string][]string{
		"p2": {"a", "c"},
		"p3": {"a", "b", "c"},
	}, "p2", "p3")

	view := cooccurrence.Build(full).ForTarget(full.Present(0))
	reference := cooccurrence.Build(without).Probabilities()

	universe := full.Species()
	row := make([]float64, view.Size())

	for i, si := range universe {
		view.Row(i, row)

		ri := slices.Index(without.Species(), si)
		require.GreaterOrEqual(t, ri, 0)

		for s, ss := range universe {
			rs := slices.Index(without.Species(), ss)
			require.GreaterOrEqual(t, rs, 0)

			assert.InDelta(t, reference.At(ri, rs), row[s], 1e-12, "M[%s][%s]", si, ss)
		}
	}
}

func TestCounts_LeaveOneOutZeroDenominator(t *testing.T) {
	t.Parallel()

	ds := dataset(t, map[string][]string{
		"p1": {"a", "d"},
		"p2": {"a"},
	}, "p1", "p2")

	view := cooccurrence.Build(ds).ForTarget(ds.Present(0))
	row := []float64{9, 9}

	d := slices.Index(ds.Species(), "d")
	require.GreaterOrEqual(t, d, 0)

	view.Row(d, row)
	assert.Equal(t, []float64{0, 0}, row)

	a := slices.Index(ds.Species(), "a")
	view.Row(a, row)
	assert.InDelta(t, 1.0, row[a], 0)
	assert.InDelta(t, 0.0, row[d], 0)
}

func TestNewMatrix_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		species []string
		data    *mat.Dense
		want    error
	}{
		{name: "not_square", species: []string{"a", "b"}, data: mat.NewDense(2, 1, []float64{1, 1}), want: cooccurrence.ErrNotSquare},
		{name: "wrong_size", species: []string{"a"}, data: mat.NewDense(2, 2, nil), want: cooccurrence.ErrNotSquare},
		{name: "above_one", species: []string{"a", "b"}, data: mat.NewDense(2, 2, []float64{1, 1.5, 0, 1}), want: cooccurrence.ErrOutOfRange},
		{name: "negative", species: []string{"a", "b"}, data: mat.NewDense(2, 2, []float64{1, -0.1, 0, 1}), want: cooccurrence.ErrOutOfRange},
		{name: "duplicate", species: []string{"a", "a"}, data: mat.NewDense(2, 2, nil), want: cooccurrence.ErrDuplicateSpecies},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := cooccurrence.NewMatrix(tt.species, tt.data)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReadCSV(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		m, err := cooccurrence.ReadCSV(strings.NewReader("species,a,b\na,1,0.25\nb,0.5,1\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, m.Universe())
		assert.InDelta(t, 0.25, m.At(0, 1), 0)

		row := make([]float64, 2)
		m.ForTarget(nil).Row(1, row)
		assert.Equal(t, []float64{0.5, 1}, row)
	})

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{name: "empty", input: "", want: cooccurrence.ErrMalformed},
		{name: "missing_row", input: "species,a,b\na,1,0\n", want: cooccurrence.ErrNotSquare},
		{name: "extra_row", input: "species,a\na,1\nb,1\n", want: cooccurrence.ErrNotSquare},
		{name: "row_order", input: "species,a,b\nb,1,0\na,0,1\n", want: cooccurrence.ErrMalformed},
		{name: "non_numeric", input: "species,a\na,x\n", want: cooccurrence.ErrMalformed},
		{name: "ragged", input: "species,a,b\na,1\nb,0,1\n", want: cooccurrence.ErrMalformed},
		{name: "out_of_range", input: "species,a\na,2\n", want: cooccurrence.ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := cooccurrence.ReadCSV(strings.NewReader(tt.input))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWriteCSV_ReadBack(t *testing.T) {
	t.Parallel()

	m := cooccurrence.Build(threePlots(t)).Probabilities()

	var buf bytes.Buffer

	require.NoError(t, cooccurrence.WriteCSV(&buf, m))

	back, err := cooccurrence.ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.Universe(), back.Universe())
	assert.InDelta(t, m.At(0, 1), back.At(0, 1), 1e-15)
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ds := threePlots(t)
	counts := cooccurrence.Build(ds)

	t.Run("lz4_cache", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(dir, "cooc.lz4")
		require.NoError(t, cooccurrence.Save(path, counts))

		src, err := cooccurrence.Load(path)
		require.NoError(t, err)

		loaded, ok := src.(*cooccurrence.Counts)
		require.True(t, ok)
		assert.Equal(t, counts.Universe(), loaded.Universe())
		assert.Equal(t, 3, loaded.Plots())
		assert.InDelta(t, counts.Pair(1, 2), loaded.Pair(1, 2), 0)
		assert.InDelta(t, counts.Pair(2, 1), loaded.Pair(2, 1), 0)
	})

	t.Run("csv_matrix", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(dir, "cooc.csv")

		var buf bytes.Buffer

		require.NoError(t, cooccurrence.WriteCSV(&buf, counts.Probabilities()))
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

		src, err := cooccurrence.Load(path)
		require.NoError(t, err)
		assert.IsType(t, &cooccurrence.Matrix{}, src)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()

		_, err := cooccurrence.Load(filepath.Join(dir, "absent.lz4"))
		require.Error(t, err)
	})
}

func TestAlign(t *testing.T) {
	t.Parallel()

	ds := threePlots(t)

	m, err := cooccurrence.NewMatrix([]string{"c", "b", "a", "z"}, mat.NewDense(4, 4, nil))
	require.NoError(t, err)

	aligned, err := cooccurrence.Align(ds, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a", "z"}, aligned.Species())
	assert.Equal(t, []int{1, 2}, aligned.Present(0))

	small, err := cooccurrence.NewMatrix([]string{"a"}, mat.NewDense(1, 1, []float64{1}))
	require.NoError(t, err)

	_, err = cooccurrence.Align(ds, small)
	require.ErrorIs(t, err, cooccurrence.ErrUniverseMismatch)
	require.ErrorIs(t, err, releve.ErrUnknownSpecies)
}
