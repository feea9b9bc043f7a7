// Package releve holds the vegetation survey input tables: plots with their
// location and optional area, and per-plot species records. A Dataset is the
// validated, immutable form shared read-only by every estimation task.
package releve

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Sentinel validation errors.
var (
	ErrMalformedHeader = errors.New("malformed table header")
	ErrNonNumeric      = errors.New("non-numeric value")
	ErrNegative        = errors.New("negative abundance")
	ErrEmptyPlot       = errors.New("plot has zero total abundance")
	ErrUnknownPlot     = errors.New("species record references unknown plot")
	ErrDuplicatePlot   = errors.New("duplicate plot id")
	ErrMissingID       = errors.New("missing identifier")
	ErrUnknownSpecies  = errors.New("species not in universe")
	ErrNoPlots         = errors.New("no plots")
)

// Plot is one georeferenced survey plot. X is the easting or longitude and Y
// the northing or latitude, depending on the coordinate system in use.
type Plot struct {
	Area *float64
	ID   string
	X    float64
	Y    float64
}

// HasArea reports whether the plot has a known, strictly positive area.
func (p Plot) HasArea() bool {
	return p.Area != nil && *p.Area > 0 && !math.IsInf(*p.Area, 0)
}

// Record is one species observation in a plot.
type Record struct {
	PlotID    string
	SpeciesID string
	Abundance float64
}

// Dataset is the validated plot × species table.
type Dataset struct {
	plots        []Plot
	plotIndex    map[string]int
	species      []string
	speciesIndex map[string]int
	// presence holds, per plot, the sorted indices of species with positive abundance.
	presence [][]int
}

// NewDataset validates plots and records and builds the presence lists.
// Species are indexed in first-seen order. Abundances of repeated
// (plot, species) pairs are summed.
func NewDataset(plots []Plot, records []Record) (*Dataset, error) {
	if len(plots) == 0 {
		return nil, ErrNoPlots
	}

	ds := &Dataset{
		plots:        slices.Clone(plots),
		plotIndex:    make(map[string]int, len(plots)),
		speciesIndex: make(map[string]int),
	}

	for i, p := range plots {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: plot at row %d", ErrMissingID, i+1)
		}

		if _, dup := ds.plotIndex[p.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePlot, p.ID)
		}

		ds.plotIndex[p.ID] = i
	}

	totals := make([]map[int]float64, len(plots))

	for i, rec := range records {
		row, ok := ds.plotIndex[rec.PlotID]
		if !ok {
			return nil, fmt.Errorf("%w: %q (record %d)", ErrUnknownPlot, rec.PlotID, i+1)
		}

		if rec.SpeciesID == "" {
			return nil, fmt.Errorf("%w: species in record %d", ErrMissingID, i+1)
		}

		if math.IsNaN(rec.Abundance) || math.IsInf(rec.Abundance, 0) {
			return nil, fmt.Errorf("%w: abundance in record %d", ErrNonNumeric, i+1)
		}

		if rec.Abundance < 0 {
			return nil, fmt.Errorf("%w: %g in record %d", ErrNegative, rec.Abundance, i+1)
		}

		col := ds.internSpecies(rec.SpeciesID)

		if totals[row] == nil {
			totals[row] = make(map[int]float64)
		}

		totals[row][col] += rec.Abundance
	}

	ds.presence = make([][]int, len(plots))

	for row, byspecies := range totals {
		for col, abundance := range byspecies {
			if abundance > 0 {
				ds.presence[row] = append(ds.presence[row], col)
			}
		}

		if len(ds.presence[row]) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrEmptyPlot, plots[row].ID)
		}

		slices.Sort(ds.presence[row])
	}

	return ds, nil
}

func (ds *Dataset) internSpecies(id string) int {
	if col, ok := ds.speciesIndex[id]; ok {
		return col
	}

	col := len(ds.species)
	ds.species = append(ds.species, id)
	ds.speciesIndex[id] = col

	return col
}

// Reindex returns a copy of the dataset whose species axis is universe, in
// the given order. Every observed species must be part of universe; species
// in universe that were never observed become all-zero columns.
func (ds *Dataset) Reindex(universe []string) (*Dataset, error) {
	index := make(map[string]int, len(universe))
	for i, id := range universe {
		index[id] = i
	}

	remap := make([]int, len(ds.species))

	for old, id := range ds.species {
		col, ok := index[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSpecies, id)
		}

		remap[old] = col
	}

	presence := make([][]int, len(ds.presence))

	for row, cols := range ds.presence {
		mapped := make([]int, len(cols))
		for i, c := range cols {
			mapped[i] = remap[c]
		}

		slices.Sort(mapped)
		presence[row] = mapped
	}

	return &Dataset{
		plots:        ds.plots,
		plotIndex:    ds.plotIndex,
		species:      slices.Clone(universe),
		speciesIndex: index,
		presence:     presence,
	}, nil
}

// NumPlots returns the number of plots.
func (ds *Dataset) NumPlots() int { return len(ds.plots) }

// NumSpecies returns the size of the species axis.
func (ds *Dataset) NumSpecies() int { return len(ds.species) }

// Plot returns the plot at row i.
func (ds *Dataset) Plot(i int) Plot { return ds.plots[i] }

// Plots returns the plots in input order. The slice must not be modified.
func (ds *Dataset) Plots() []Plot { return ds.plots }

// Species returns the species ids in column order. The slice must not be modified.
func (ds *Dataset) Species() []string { return ds.species }

// PlotIndex returns the row of the plot with the given id.
func (ds *Dataset) PlotIndex(id string) (int, bool) {
	row, ok := ds.plotIndex[id]

	return row, ok
}

// Present returns the sorted species columns present in plot row i.
// The slice must not be modified.
func (ds *Dataset) Present(i int) []int { return ds.presence[i] }

// Richness returns the number of species present in plot row i.
func (ds *Dataset) Richness(i int) int { return len(ds.presence[i]) }

// Presence returns the dense binary incidence matrix for the given plot rows
// over the full species axis. Absent species are explicit zeros. Returns nil
// for an empty row set.
func (ds *Dataset) Presence(rows []int) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}

	out := mat.NewDense(len(rows), len(ds.species), nil)

	for r, row := range rows {
		for _, col := range ds.presence[row] {
			out.Set(r, col, 1)
		}
	}

	return out
}
