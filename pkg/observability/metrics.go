package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricTargetsTotal    = "speciespool.targets.total"
	metricOutcomesTotal   = "speciespool.outcomes.total"
	metricTargetDuration  = "speciespool.target.duration.seconds"
	metricBatchDuration   = "speciespool.batch.duration.seconds"
	metricCurveFitsTotal  = "speciespool.curve.fits.total"
	metricInflightTargets = "speciespool.inflight.targets"

	attrStatus  = "status"
	attrOutcome = "outcome"
	attrModel   = "model"

	// StatusComplete marks a target whose every stage produced a value.
	StatusComplete = "complete"
	// StatusPartial marks a target with at least one outcome recorded.
	StatusPartial = "partial"

	fitConverged = "converged"
	fitFailed    = "failed"
)

// durationBucketBoundaries covers 1ms to 600s: a target without area data
// finishes in milliseconds, curve fitting on a large neighbourhood can take
// the full timeout.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// EstimationMetrics holds the OTel instruments of an estimation batch.
// Every method is safe to call on a nil receiver (no-op).
type EstimationMetrics struct {
	targetsTotal    metric.Int64Counter
	outcomesTotal   metric.Int64Counter
	targetDuration  metric.Float64Histogram
	batchDuration   metric.Float64Histogram
	curveFitsTotal  metric.Int64Counter
	inflightTargets metric.Int64UpDownCounter
}

// NewEstimationMetrics creates estimation instruments from the given meter.
// Creation errors of all instruments are joined.
func NewEstimationMetrics(mt metric.Meter) (*EstimationMetrics, error) {
	var errs []error

	collect := func(name string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("create %s: %w", name, err))
		}
	}

	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := mt.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		collect(name, err)

		return c
	}

	seconds := func(name, desc string) metric.Float64Histogram {
		h, err := mt.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(durationBucketBoundaries...))
		collect(name, err)

		return h
	}

	inflight, err := mt.Int64UpDownCounter(metricInflightTargets,
		metric.WithDescription("Targets being estimated"), metric.WithUnit("{target}"))
	collect(metricInflightTargets, err)

	em := &EstimationMetrics{
		targetsTotal:    counter(metricTargetsTotal, "Targets estimated by status", "{target}"),
		outcomesTotal:   counter(metricOutcomesTotal, "Per-target outcomes by kind", "{outcome}"),
		targetDuration:  seconds(metricTargetDuration, "Per-target estimation duration in seconds"),
		batchDuration:   seconds(metricBatchDuration, "Batch duration in seconds"),
		curveFitsTotal:  counter(metricCurveFitsTotal, "Species-area fits by model and status", "{fit}"),
		inflightTargets: inflight,
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return em, nil
}

// RecordTarget records one finished target with its outcomes.
func (em *EstimationMetrics) RecordTarget(ctx context.Context, duration time.Duration, outcomes []string) {
	if em == nil {
		return
	}

	status := StatusComplete
	if len(outcomes) > 0 {
		status = StatusPartial
	}

	em.targetsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
	em.targetDuration.Record(ctx, duration.Seconds())

	for _, o := range outcomes {
		em.outcomesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, o)))
	}
}

// RecordFit records the result of fitting one species-area model.
func (em *EstimationMetrics) RecordFit(ctx context.Context, model string, converged bool) {
	if em == nil {
		return
	}

	status := fitFailed
	if converged {
		status = fitConverged
	}

	em.curveFitsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrModel, model),
		attribute.String(attrStatus, status),
	))
}

// RecordBatch records the wall time of a finished batch.
func (em *EstimationMetrics) RecordBatch(ctx context.Context, duration time.Duration) {
	if em == nil {
		return
	}

	em.batchDuration.Record(ctx, duration.Seconds())
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
func (em *EstimationMetrics) TrackInflight(ctx context.Context) func() {
	if em == nil {
		return func() {}
	}

	em.inflightTargets.Add(ctx, 1)

	return func() {
		em.inflightTargets.Add(ctx, -1)
	}
}
