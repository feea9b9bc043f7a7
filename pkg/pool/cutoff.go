package pool

import (
	"math"

	"github.com/Sumatoshi-tech/speciespool/pkg/alg/stats"
	"github.com/Sumatoshi-tech/speciespool/pkg/curve"
	"github.com/Sumatoshi-tech/speciespool/pkg/richness"
)

// CutoffValue returns the value selected by policy: the iChao2 mean, or the
// Asym parameter of the Gompertz or asymptotic fit. ok is false when the
// selected estimate is unavailable.
func CutoffValue(policy Policy, est *richness.Estimate, gompertz, asymptotic *curve.Fit) (float64, bool) {
	var (
		value float64
		ok    bool
	)

	switch policy {
	case PolicyIChao2:
		if est != nil && est.IChao2 != nil {
			value, ok = est.IChao2.Mean, true
		}
	case PolicyGompertz:
		if gompertz != nil {
			value, ok = gompertz.Param(curve.ParamAsym)
		}
	case PolicyAsymptotic:
		if asymptotic != nil {
			value, ok = asymptotic.Param(curve.ParamAsym)
		}
	}

	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}

	return value, true
}

// CutoffRank converts a cutoff value into a 1-based rank: round half to
// even, clamped to the universe size. ok is false when the value rounds
// below 1. The clamp happens before the integer conversion, so a diverging
// asymptote still selects the whole universe.
func CutoffRank(cutoff float64, universe int) (int, bool) {
	if universe < 1 || math.IsNaN(cutoff) {
		return 0, false
	}

	if cutoff >= float64(universe) {
		return universe, true
	}

	rank := stats.RoundHalfEven(cutoff)
	if rank < 1 {
		return 0, false
	}

	return min(rank, universe), true
}

// Threshold returns the Beals value at rank (1-based) of the target profile
// sorted descending. Ties keep the original species order.
func Threshold(profile []float64, rank int) float64 {
	order := stats.RankDescending(profile)

	return profile[order[rank-1]]
}

// SpeciesPool returns the first rank species of the target profile sorted
// descending by Beals value, ties in original species order.
func SpeciesPool(profile []float64, species []string, rank int) []PoolSpecies {
	order := stats.RankDescending(profile)
	out := make([]PoolSpecies, 0, rank)

	for _, col := range order[:rank] {
		out = append(out, PoolSpecies{SpeciesID: species[col], Beals: profile[col]})
	}

	return out
}
