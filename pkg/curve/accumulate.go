package curve

import (
	"math/rand/v2"

	"github.com/Sumatoshi-tech/speciespool/pkg/releve"
)

// DefaultPermutations is the number of random plot orderings averaged into
// the accumulation curve.
const DefaultPermutations = 99

// Point is one step of the accumulation curve.
type Point struct {
	Area     float64
	Richness float64
}

// Accumulate builds the random accumulation curve over the given plot rows,
// which must all have a known area. Each permutation adds plots one at a
// time, recording cumulative area and cumulative richness; step k of the
// result is the mean over permutations after k plots.
func Accumulate(ds *releve.Dataset, rows []int, permutations int, rng *rand.Rand) []Point {
	n := len(rows)
	if n == 0 {
		return nil
	}

	if permutations <= 0 {
		permutations = DefaultPermutations
	}

	out := make([]Point, n)
	order := make([]int, n)
	seen := make([]bool, ds.NumSpecies())

	for range permutations {
		copy(order, rows)
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		clear(seen)

		area, richness := 0.0, 0

		for step, row := range order {
			area += *ds.Plot(row).Area

			for _, s := range ds.Present(row) {
				if !seen[s] {
					seen[s] = true
					richness++
				}
			}

			out[step].Area += area
			out[step].Richness += float64(richness)
		}
	}

	for i := range out {
		out[i].Area /= float64(permutations)
		out[i].Richness /= float64(permutations)
	}

	return out
}
