// Package beals computes Beals smoothing, the probability-of-occurrence
// profile of each plot derived from the co-occurrence matrix, and the
// Bray-Curtis dissimilarity used to compare those profiles.
package beals

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/Sumatoshi-tech/speciespool/pkg/alg/stats"
	"github.com/Sumatoshi-tech/speciespool/pkg/cooccurrence"
	"github.com/Sumatoshi-tech/speciespool/pkg/releve"
)

// Smooth returns the Beals matrix for the given plot rows of ds: one row per
// plot, one column per species of the universe. Beals(p, s) is the mean of
// M[i][s] over the species i present in p; a plot without species gets a
// zero row. Values are clamped to [0,1]. Returns nil for an empty row set.
func Smooth(ds *releve.Dataset, rows []int, m cooccurrence.Conditional) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}

	size := m.Size()
	out := mat.NewDense(len(rows), size, nil)
	cache := make(map[int][]float64)

	for r, row := range rows {
		present := ds.Present(row)
		if len(present) == 0 {
			continue
		}

		acc := out.RawRowView(r)

		for _, i := range present {
			mRow, ok := cache[i]
			if !ok {
				mRow = make([]float64, size)
				m.Row(i, mRow)
				cache[i] = mRow
			}

			floats.Add(acc, mRow)
		}

		floats.Scale(1/float64(len(present)), acc)

		for s, v := range acc {
			acc[s] = stats.Clamp(v, 0, 1)
		}
	}

	return out
}

// BrayCurtis returns Σ|u−v| / Σ(u+v) for two non-negative profiles of equal
// length. Two all-zero profiles are identical and score 0.
func BrayCurtis(u, v []float64) float64 {
	var diff, total float64

	for i := range u {
		diff += math.Abs(u[i] - v[i])
		total += u[i] + v[i]
	}

	if total == 0 {
		return 0
	}

	return diff / total
}
