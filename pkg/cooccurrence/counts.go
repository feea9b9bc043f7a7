package cooccurrence

import (
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/Sumatoshi-tech/speciespool/pkg/releve"
)

// Counts holds joint occurrence counts: pairs[i][s] is the number of plots
// containing both i and s, and the diagonal is the frequency of i.
type Counts struct {
	pairs   *mat.SymDense
	species []string
	plots   int
}

// Build counts joint occurrences over every plot of ds.
func Build(ds *releve.Dataset) *Counts {
	n := ds.NumSpecies()
	pairs := mat.NewSymDense(n, nil)

	for row := range ds.NumPlots() {
		present := ds.Present(row)

		for a, i := range present {
			for _, s := range present[a:] {
				pairs.SetSym(i, s, pairs.At(i, s)+1)
			}
		}
	}

	return &Counts{
		pairs:   pairs,
		species: slices.Clone(ds.Species()),
		plots:   ds.NumPlots(),
	}
}

// Universe implements Source.
func (c *Counts) Universe() []string { return c.species }

// Plots returns the number of plots the counts were built from.
func (c *Counts) Plots() int { return c.plots }

// Frequency returns the number of plots containing species i.
func (c *Counts) Frequency(i int) float64 { return c.pairs.At(i, i) }

// Pair returns the number of plots containing both i and s.
func (c *Counts) Pair(i, s int) float64 { return c.pairs.At(i, s) }

// ForTarget implements Source. The returned view removes the target plot's
// own occurrences: M_t[i][s] = (C[i][s] − x_i·x_s) / (N[i] − x_i), or 0 when
// the denominator is 0.
func (c *Counts) ForTarget(present []int) Conditional {
	return &leaveOneOut{counts: c, present: present}
}

// Probabilities returns M over all plots, without exclusion.
func (c *Counts) Probabilities() *Matrix {
	n := len(c.species)
	data := mat.NewDense(n, n, nil)
	row := make([]float64, n)
	full := &leaveOneOut{counts: c}

	for i := range n {
		full.Row(i, row)
		data.SetRow(i, row)
	}

	return &Matrix{data: data, species: c.species}
}

type leaveOneOut struct {
	counts *Counts
	// present is sorted.
	present []int
}

func (v *leaveOneOut) Size() int { return len(v.counts.species) }

func (v *leaveOneOut) has(i int) bool {
	_, found := slices.BinarySearch(v.present, i)

	return found
}

func (v *leaveOneOut) Row(i int, dst []float64) {
	xi := 0.0
	if v.has(i) {
		xi = 1
	}

	denom := v.counts.Frequency(i) - xi
	if denom <= 0 {
		clear(dst)

		return
	}

	for s := range dst {
		joint := v.counts.pairs.At(i, s)
		if xi == 1 && v.has(s) {
			joint--
		}

		dst[s] = joint / denom
	}
}
