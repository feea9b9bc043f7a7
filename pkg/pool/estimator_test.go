package pool_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Sumatoshi-tech/speciespool/pkg/cooccurrence"
	"github.com/Sumatoshi-tech/speciespool/pkg/curve"
	"github.com/Sumatoshi-tech/speciespool/pkg/geometry"
	"github.com/Sumatoshi-tech/speciespool/pkg/pool"
	"github.com/Sumatoshi-tech/speciespool/pkg/richness"
)

func TestNewEstimator_Errors(t *testing.T) {
	t.Parallel()

	ds := buildDataset(t, lineSites(3, identicalSpecies, nil))

	t.Run("invalid_params", func(t *testing.T) {
		t.Parallel()

		params := testParams(10, 2)
		params.Bray = 2

		_, err := pool.NewEstimator(ds, cooccurrence.Build(ds), params)
		require.ErrorIs(t, err, pool.ErrInvalidBray)
	})

	t.Run("universe_mismatch", func(t *testing.T) {
		t.Parallel()

		src, err := cooccurrence.NewMatrix([]string{"a", "b"}, mat.NewDense(2, 2, []float64{1, 0, 0, 1}))
		require.NoError(t, err)

		_, err = pool.NewEstimator(ds, src, testParams(10, 2))
		require.ErrorIs(t, err, cooccurrence.ErrUniverseMismatch)
	})

	t.Run("location_out_of_range", func(t *testing.T) {
		t.Parallel()

		geo := buildDataset(t, []site{
			{id: "ok", x: 10, y: 45, species: []string{"a"}},
			{id: "bad", x: 10, y: 95, species: []string{"a"}},
		})

		params := testParams(1000, 1)
		params.Geodesic = true

		_, err := pool.NewEstimator(geo, cooccurrence.Build(geo), params)
		require.ErrorIs(t, err, geometry.ErrCoordinateRange)
		assert.Contains(t, err.Error(), `"bad"`)
	})
}

func TestNewEstimator_NormalisesPolicy(t *testing.T) {
	t.Parallel()

	ds := buildDataset(t, lineSites(3, identicalSpecies, nil))

	params := testParams(10, 2)
	params.Policy = "gompertz-asymptote"

	est := newEstimator(t, ds, params)
	assert.Equal(t, pool.PolicyGompertz, est.Params().Policy)
}

func TestEstimator_Targets(t *testing.T) {
	t.Parallel()

	ds := buildDataset(t, lineSites(4, identicalSpecies, nil))
	est := newEstimator(t, ds, testParams(10, 2))

	all, err := est.Targets(nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, all)

	some, err := est.Targets([]string{"p03", "p01"})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, some)

	_, err = est.Targets([]string{"p01", "nope"})
	require.ErrorIs(t, err, pool.ErrUnknownTarget)
}

func TestEstimate_InsufficientNeighbors(t *testing.T) {
	t.Parallel()

	ds := buildDataset(t, lineSites(20, identicalSpecies, growingArea))
	params := testParams(1, 10)
	params.SpeciesPool = true

	rec := newEstimator(t, ds, params).Estimate(context.Background(), 5)

	assert.Equal(t, "p05", rec.PlotID)
	assert.Equal(t, 3, rec.NeighborsRadius)
	assert.Equal(t, 0, rec.NeighborsFiltered)
	assert.Nil(t, rec.NeighborsSampled)
	assert.Nil(t, rec.AreaPlots)
	assert.Equal(t, []pool.Outcome{pool.OutcomeInsufficientNeighbors}, rec.Outcomes)

	assert.Nil(t, rec.Richness)
	assert.Nil(t, rec.BealsCutoff)
	assert.Nil(t, rec.CutoffValue)
	assert.Nil(t, rec.SpeciesPool)
	assert.Nil(t, rec.Accumulation)

	for _, m := range curve.Models {
		assert.Nil(t, rec.Curve(m), m)
	}
}

func TestEstimate_InsufficientFilteredNeighbors(t *testing.T) {
	t.Parallel()

	// Two floristically disjoint groups: only the target's own group passes
	// the similarity filter.
	groups := func(i int) []string {
		if i < 5 {
			return []string{"a", "b"}
		}

		return []string{"c", "d"}
	}

	ds := buildDataset(t, lineSites(10, groups, growingArea))
	params := testParams(100, 6)
	params.Bray = 0.1
	params.SpeciesPool = true

	rec := newEstimator(t, ds, params).Estimate(context.Background(), 0)

	assert.Equal(t, 10, rec.NeighborsRadius)
	assert.Equal(t, 5, rec.NeighborsFiltered)
	assert.Equal(t, []pool.Outcome{pool.OutcomeInsufficientFilteredNeighbors}, rec.Outcomes)

	assert.Nil(t, rec.NeighborsSampled)
	assert.Nil(t, rec.AreaPlots)
	assert.Nil(t, rec.Richness)
	assert.Nil(t, rec.CutoffValue)
	assert.Nil(t, rec.BealsCutoff)
	assert.Nil(t, rec.SpeciesPool)
	assert.Nil(t, rec.Accumulation)

	for _, m := range curve.Models {
		assert.Nil(t, rec.Curve(m), m)
	}
}

func TestEstimate_SubsamplesToTwiceMinPlots(t *testing.T) {
	t.Parallel()

	ds := buildDataset(t, lineSites(25, identicalSpecies, nil))
	params := testParams(100, 10)
	params.SpeciesPool = true

	rec := newEstimator(t, ds, params).Estimate(context.Background(), 0)

	assert.Equal(t, 25, rec.NeighborsRadius)
	assert.Equal(t, 25, rec.NeighborsFiltered)
	require.NotNil(t, rec.NeighborsSampled)
	assert.Equal(t, 20, *rec.NeighborsSampled)
	assert.Equal(t, 4, rec.ObservedRichness)

	require.NotNil(t, rec.Richness)
	assert.Equal(t, 20, rec.Richness.Plots)
	assert.Equal(t, 4, rec.Richness.Observed)

	// Identical plots give every species a Beals value of 1.
	require.NotNil(t, rec.BealsCutoff)
	assert.InDelta(t, 1.0, *rec.BealsCutoff, 1e-12)
	assert.Len(t, rec.SpeciesPool, 4)
}

func TestEstimate_InsufficientAreaKeepsRichness(t *testing.T) {
	t.Parallel()

	ds := buildDataset(t, lineSites(8, randomSpecies(3, 8), nil))

	tests := []struct {
		name   string
		policy pool.Policy
		cutoff bool
	}{
		{"ichao2_still_available", pool.PolicyIChao2, true},
		{"gompertz_unavailable", pool.PolicyGompertz, false},
		{"asymptotic_unavailable", pool.PolicyAsymptotic, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			params := testParams(100, 3)
			params.Bray = 1
			params.Policy = tt.policy

			rec := newEstimator(t, ds, params).Estimate(context.Background(), 0)

			assert.True(t, rec.HasOutcome(pool.OutcomeInsufficientAreaData))
			require.NotNil(t, rec.AreaPlots)
			assert.Equal(t, 0, *rec.AreaPlots)
			assert.Nil(t, rec.Accumulation)
			require.NotNil(t, rec.Richness)

			if !tt.cutoff {
				assert.True(t, rec.HasOutcome(pool.OutcomeCutoffUnavailable))
				assert.Nil(t, rec.BealsCutoff)

				return
			}

			if rec.Richness.IChao2 != nil {
				assert.NotNil(t, rec.BealsCutoff)
			}
		})
	}
}

func TestEstimate_CurveTimeoutIsolated(t *testing.T) {
	t.Parallel()

	ds := buildDataset(t, lineSites(12, randomSpecies(5, 10), growingArea))
	params := testParams(100, 3)
	params.Bray = 1
	params.CurveTimeout = time.Nanosecond

	rec := newEstimator(t, ds, params).Estimate(context.Background(), 0)

	assert.True(t, rec.HasOutcome(pool.OutcomeCurveTimeout))

	for _, m := range curve.Models {
		assert.Nil(t, rec.Curve(m), m)
		assert.True(t, rec.HasOutcome(pool.CurveUnavailable(m)), m)
	}

	assert.NotNil(t, rec.Richness)
	assert.NotEmpty(t, rec.Accumulation)
}

func TestEstimate_Reproducible(t *testing.T) {
	t.Parallel()

	ds := buildDataset(t, lineSites(30, randomSpecies(9, 12), growingArea))
	params := testParams(100, 4)
	params.Bray = 1
	params.SpeciesPool = true

	a := newEstimator(t, ds, params).Estimate(context.Background(), 7)
	b := newEstimator(t, ds, params).Estimate(context.Background(), 7)

	assert.Equal(t, a.NeighborsSampled, b.NeighborsSampled)
	assert.Equal(t, a.Richness, b.Richness)
	assert.Equal(t, a.Accumulation, b.Accumulation)
	assert.Equal(t, a.SpeciesPool, b.SpeciesPool)
}

// checkInvariants asserts the properties every record must satisfy.
func checkInvariants(t *testing.T, rec pool.Record, params pool.Params, total, universe int) {
	t.Helper()

	assert.GreaterOrEqual(t, rec.NeighborsFiltered, 0)
	assert.LessOrEqual(t, rec.NeighborsFiltered, rec.NeighborsRadius)
	assert.LessOrEqual(t, rec.NeighborsRadius, total)

	if rec.Richness == nil {
		assert.Nil(t, rec.NeighborsSampled)
		assert.Nil(t, rec.AreaPlots)

		return
	}

	require.NotNil(t, rec.NeighborsSampled)
	require.NotNil(t, rec.AreaPlots)
	assert.Equal(t, min(rec.NeighborsFiltered, 2*params.MinPlots), *rec.NeighborsSampled)
	assert.LessOrEqual(t, *rec.AreaPlots, *rec.NeighborsSampled)

	for _, m := range richness.Methods {
		if v := rec.Richness.Get(m); v != nil {
			assert.GreaterOrEqual(t, v.Mean, float64(rec.Richness.Observed), m)
		} else {
			assert.True(t, rec.HasOutcome(pool.RichnessUnavailable(m)), m)
		}
	}

	for _, m := range curve.Models {
		if *rec.AreaPlots < params.MinPlots {
			assert.Nil(t, rec.Curve(m), m)

			continue
		}

		if rec.Curve(m) == nil {
			assert.True(t, rec.HasOutcome(pool.CurveUnavailable(m)), m)
		}
	}

	if rec.BealsCutoff == nil {
		assert.Empty(t, rec.SpeciesPool)

		return
	}

	require.NotNil(t, rec.CutoffValue)

	rank, ok := pool.CutoffRank(*rec.CutoffValue, universe)
	require.True(t, ok)

	if params.SpeciesPool {
		require.Len(t, rec.SpeciesPool, rank)
		assert.InDelta(t, *rec.BealsCutoff, rec.SpeciesPool[rank-1].Beals, 1e-12)
	}
}
