// Package pool estimates the compatible regional species pool of survey
// plots.
//
// For one target plot the Estimator selects spatial neighbours, smooths their
// composition with Beals, keeps the floristically similar ones, subsamples
// them, extrapolates richness, fits species-area curves, and derives the Beals
// threshold and species list at the policy-selected cutoff. Every stage may
// fail for a target without affecting other stages it does not feed, and
// never affects other targets. Batch fans targets out over a bounded worker
// pool.
package pool

import (
	"context"
	"fmt"
	"math/rand/v2"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/speciespool/pkg/beals"
	"github.com/Sumatoshi-tech/speciespool/pkg/cooccurrence"
	"github.com/Sumatoshi-tech/speciespool/pkg/curve"
	"github.com/Sumatoshi-tech/speciespool/pkg/geometry"
	"github.com/Sumatoshi-tech/speciespool/pkg/observability"
	"github.com/Sumatoshi-tech/speciespool/pkg/releve"
	"github.com/Sumatoshi-tech/speciespool/pkg/richness"
)

// RandFactory returns the private random stream of one target.
type RandFactory func(target int) *rand.Rand

// SeededRand returns a factory of PCG streams keyed by (seed, target row).
// Streams are independent across targets and reproducible regardless of
// scheduling order.
func SeededRand(seed uint64) RandFactory {
	return func(target int) *rand.Rand {
		return rand.New(rand.NewPCG(seed, uint64(target)))
	}
}

// Estimator runs the per-target pipeline. It is safe for concurrent use:
// all of its state is read-only.
type Estimator struct {
	ds     *releve.Dataset
	source cooccurrence.Source
	geom   geometry.Provider
	rand   RandFactory
	params Params
}

// NewEstimator validates params, aligns ds to the co-occurrence universe and
// checks every plot location against the selected geometry.
func NewEstimator(ds *releve.Dataset, source cooccurrence.Source, params Params) (*Estimator, error) {
	err := params.Validate()
	if err != nil {
		return nil, err
	}

	params.Policy, _ = ParsePolicy(string(params.Policy))

	aligned, err := cooccurrence.Align(ds, source)
	if err != nil {
		return nil, err
	}

	geom := geometry.New(params.Geodesic)

	for _, p := range aligned.Plots() {
		locErr := geom.Validate(location(p))
		if locErr != nil {
			return nil, fmt.Errorf("plot %q: %w", p.ID, locErr)
		}
	}

	return &Estimator{
		ds:     aligned,
		source: source,
		geom:   geom,
		rand:   SeededRand(params.Seed),
		params: params,
	}, nil
}

// WithRand replaces the random stream factory.
func (e *Estimator) WithRand(f RandFactory) *Estimator {
	e.rand = f

	return e
}

// Dataset returns the dataset aligned to the co-occurrence universe.
func (e *Estimator) Dataset() *releve.Dataset { return e.ds }

// Params returns the validated parameters.
func (e *Estimator) Params() Params { return e.params }

// Targets resolves plot ids to rows. An empty list selects every plot.
func (e *Estimator) Targets(ids []string) ([]int, error) {
	if len(ids) == 0 {
		rows := make([]int, e.ds.NumPlots())
		for i := range rows {
			rows[i] = i
		}

		return rows, nil
	}

	rows := make([]int, len(ids))

	for i, id := range ids {
		row, ok := e.ds.PlotIndex(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, id)
		}

		rows[i] = row
	}

	return rows, nil
}

// Estimate runs the pipeline for the plot at row target.
func (e *Estimator) Estimate(ctx context.Context, target int) Record {
	rec := Record{
		PlotID:           e.ds.Plot(target).ID,
		ObservedRichness: e.ds.Richness(target),
	}

	minPlots := e.params.MinPlots

	neighbors := Neighbors(e.ds, e.geom, target, e.params.Radius)
	rec.NeighborsRadius = len(neighbors)

	if len(neighbors) < minPlots {
		rec.addOutcome(OutcomeInsufficientNeighbors)

		return rec
	}

	view := e.source.ForTarget(e.ds.Present(target))
	profiles := beals.Smooth(e.ds, neighbors, view)

	filtered := Filter(profiles, neighbors, e.params.Bray)
	rec.NeighborsFiltered = len(filtered)

	if len(filtered) < minPlots {
		rec.addOutcome(OutcomeInsufficientFilteredNeighbors)

		return rec
	}

	rng := e.rand(target)

	sampled := Subsample(filtered, minPlots, rng)
	rec.NeighborsSampled = count(len(sampled))

	est := richness.FromDataset(e.ds, sampled)
	rec.Richness = &est

	for _, m := range est.Unavailable() {
		rec.addOutcome(RichnessUnavailable(m))
	}

	e.curves(ctx, &rec, sampled, rng)

	// The target is the first row of the Beals matrix.
	e.cutoff(&rec, profiles.RawRowView(0))

	return rec
}

func (e *Estimator) curves(ctx context.Context, rec *Record, sampled []int, rng *rand.Rand) {
	var eligible []int

	for _, row := range sampled {
		if e.ds.Plot(row).HasArea() {
			eligible = append(eligible, row)
		}
	}

	rec.AreaPlots = count(len(eligible))

	if len(eligible) < e.params.MinPlots {
		rec.addOutcome(OutcomeInsufficientAreaData)

		return
	}

	if e.params.CurveTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.params.CurveTimeout)
		defer cancel()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, observability.SpanCurveFit,
		trace.WithAttributes(attribute.Int("curve.plots", len(eligible))))
	defer span.End()

	res := curve.Estimate(ctx, e.ds, eligible, e.params.Permutations, rng)

	span.SetAttributes(
		attribute.Int("curve.points", len(res.Accumulation)),
		attribute.Bool("curve.timed_out", res.TimedOut),
	)

	rec.Accumulation = res.Accumulation
	rec.Arrhenius = res.Arrhenius
	rec.Gompertz = res.Gompertz
	rec.MichaelisMenten = res.MichaelisMenten
	rec.Asymptotic = res.Asymptotic

	if res.TimedOut {
		rec.addOutcome(OutcomeCurveTimeout)
	}

	for _, m := range res.Failed {
		rec.addOutcome(CurveUnavailable(m))
	}
}

func (e *Estimator) cutoff(rec *Record, profile []float64) {
	value, ok := CutoffValue(e.params.Policy, rec.Richness, rec.Gompertz, rec.Asymptotic)
	if !ok {
		rec.addOutcome(OutcomeCutoffUnavailable)

		return
	}

	rank, ok := CutoffRank(value, len(profile))
	if !ok {
		rec.addOutcome(OutcomeCutoffUnavailable)

		return
	}

	threshold := Threshold(profile, rank)
	rec.CutoffValue = &value
	rec.BealsCutoff = &threshold

	if e.params.SpeciesPool {
		rec.SpeciesPool = SpeciesPool(profile, e.ds.Species(), rank)
	}
}
