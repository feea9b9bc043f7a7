package pool_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/speciespool/pkg/cooccurrence"
	"github.com/Sumatoshi-tech/speciespool/pkg/pool"
	"github.com/Sumatoshi-tech/speciespool/pkg/releve"
)

// site describes one plot of a test dataset.
type site struct {
	area    *float64
	id      string
	species []string
	x, y    float64
}

func area(v float64) *float64 { return &v }

func buildDataset(t *testing.T, sites []site) *releve.Dataset {
	t.Helper()

	plots := make([]releve.Plot, len(sites))

	var records []releve.Record

	for i, s := range sites {
		plots[i] = releve.Plot{ID: s.id, X: s.x, Y: s.y, Area: s.area}

		for _, sp := range s.species {
			records = append(records, releve.Record{PlotID: s.id, SpeciesID: sp, Abundance: 1})
		}
	}

	ds, err := releve.NewDataset(plots, records)
	require.NoError(t, err)

	return ds
}

// lineSites places n plots one unit apart along the x axis.
func lineSites(n int, species func(i int) []string, areas func(i int) *float64) []site {
	sites := make([]site, n)

	for i := range sites {
		sites[i] = site{id: fmt.Sprintf("p%02d", i), x: float64(i), species: species(i)}

		if areas != nil {
			sites[i].area = areas(i)
		}
	}

	return sites
}

func identicalSpecies(int) []string { return []string{"a", "b", "c", "d"} }

// randomSpecies draws each of k species with probability 0.5, keeping at
// least one per plot.
func randomSpecies(seed uint64, k int) func(i int) []string {
	return func(i int) []string {
		rng := rand.New(rand.NewPCG(seed, uint64(i)))

		var out []string

		for s := range k {
			if rng.IntN(2) == 0 {
				out = append(out, fmt.Sprintf("s%02d", s))
			}
		}

		if len(out) == 0 {
			out = append(out, fmt.Sprintf("s%02d", rng.IntN(k)))
		}

		return out
	}
}

// growingArea gives plot i an area of 10+i.
func growingArea(i int) *float64 { return area(10 + float64(i)) }

func testParams(radius float64, minPlots int) pool.Params {
	p := pool.DefaultParams()
	p.Radius = radius
	p.MinPlots = minPlots
	p.Permutations = 5
	p.Workers = 2
	p.Seed = 42

	return p
}

func newEstimator(t *testing.T, ds *releve.Dataset, params pool.Params) *pool.Estimator {
	t.Helper()

	est, err := pool.NewEstimator(ds, cooccurrence.Build(ds), params)
	require.NoError(t, err)

	return est
}
