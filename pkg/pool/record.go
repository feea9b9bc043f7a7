package pool

import (
	"slices"

	"github.com/Sumatoshi-tech/speciespool/pkg/curve"
	"github.com/Sumatoshi-tech/speciespool/pkg/richness"
)

// Outcome is a non-fatal per-target condition. Each leaves only the fields
// that depend on the failed stage unavailable.
type Outcome string

// Per-target outcomes.
const (
	OutcomeInsufficientNeighbors         Outcome = "insufficient_neighbors"
	OutcomeInsufficientFilteredNeighbors Outcome = "insufficient_filtered_neighbors"
	OutcomeCutoffUnavailable             Outcome = "cutoff_unavailable"
	OutcomeInsufficientAreaData          Outcome = "insufficient_area_data"
	OutcomeCurveTimeout                  Outcome = "curve_timeout"
	OutcomeInternalError                 Outcome = "internal_error"

	richnessUnavailablePrefix = "richness_unavailable:"
	curveUnavailablePrefix    = "curve_unavailable:"
)

// RichnessUnavailable is the outcome of an estimator that produced no value.
func RichnessUnavailable(m richness.Method) Outcome {
	return Outcome(richnessUnavailablePrefix + string(m))
}

// CurveUnavailable is the outcome of a model that could not be fitted.
func CurveUnavailable(m curve.Model) Outcome {
	return Outcome(curveUnavailablePrefix + string(m))
}

// PoolSpecies is one entry of the ranked species pool.
type PoolSpecies struct {
	SpeciesID string
	Beals     float64
}

// Record is the result for one target plot. Pointer and slice fields are nil
// when unavailable. A record is built by one worker and never modified after
// it is returned.
type Record struct {
	// Richness is the estimate over the sampled neighbourhood, nil if the
	// pipeline stopped before that stage.
	Richness *richness.Estimate

	// BealsCutoff is the inclusion threshold: the target's Beals value at the
	// cutoff rank.
	BealsCutoff *float64
	// CutoffValue is the policy-selected value the rank is derived from.
	CutoffValue *float64

	Arrhenius       *curve.Fit
	Gompertz        *curve.Fit
	MichaelisMenten *curve.Fit
	Asymptotic      *curve.Fit

	PlotID string

	// Accumulation is the averaged species-area curve the fits were made on.
	Accumulation []curve.Point
	SpeciesPool  []PoolSpecies
	Outcomes     []Outcome

	// ObservedRichness is the number of species recorded in the target plot.
	ObservedRichness int
	// NeighborsRadius counts plots within the radius, target included.
	NeighborsRadius int
	// NeighborsFiltered counts neighbours kept by the similarity filter.
	NeighborsFiltered int
	// NeighborsSampled counts plots after subsampling, nil if the pipeline
	// stopped before subsampling.
	NeighborsSampled *int
	// AreaPlots counts sampled plots with a known positive area, nil if the
	// pipeline stopped before the curve stage.
	AreaPlots *int
}

// Curve returns the fit of model m, or nil.
func (r *Record) Curve(m curve.Model) *curve.Fit {
	switch m {
	case curve.Arrhenius:
		return r.Arrhenius
	case curve.Gompertz:
		return r.Gompertz
	case curve.MichaelisMenten:
		return r.MichaelisMenten
	case curve.Asymptotic:
		return r.Asymptotic
	}

	return nil
}

// HasOutcome reports whether o was recorded.
func (r *Record) HasOutcome(o Outcome) bool {
	return slices.Contains(r.Outcomes, o)
}

func (r *Record) addOutcome(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

func count(n int) *int { return &n }
