package pool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/speciespool/pkg/curve"
	"github.com/Sumatoshi-tech/speciespool/pkg/observability"
)

const tracerName = "speciespool"

// BatchConfig configures one batch run.
type BatchConfig struct {
	// Logger is the structured logger for the run.
	// When nil, a discard logger is used.
	Logger *slog.Logger

	// Metrics records estimation metrics. Nil disables recording.
	Metrics *observability.EstimationMetrics

	// Workers overrides Params.Workers when positive.
	Workers int

	// OnProgress, when set, is called after each target with the number of
	// finished targets. It runs on worker goroutines.
	OnProgress func(done, total int)
}

func (c BatchConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Batch fans targets out over a bounded worker pool. The pool lives only for
// the duration of one Run call.
type Batch struct {
	est    *Estimator
	config BatchConfig
}

// NewBatch creates a batch over est.
func NewBatch(est *Estimator, config BatchConfig) *Batch {
	return &Batch{est: est, config: config}
}

// Run estimates every target row and returns one record per target, in
// target order. A panic while estimating a target is recovered into
// OutcomeInternalError on that record. Cancelling ctx stops the batch and
// returns its error.
func (b *Batch) Run(ctx context.Context, targets []int) ([]Record, error) {
	workers := b.config.Workers
	if workers <= 0 {
		workers = b.est.params.workers()
	}

	runID := uuid.NewString()
	logger := b.config.logger()
	start := time.Now()
	ctx = observability.WithRun(ctx, runID)

	tr := otel.Tracer(tracerName)

	ctx, span := tr.Start(ctx, "speciespool.batch",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.Int("batch.targets", len(targets)),
			attribute.Int("batch.workers", workers),
			attribute.String("pool.policy", string(b.est.params.Policy)),
			attribute.Bool("pool.geodesic", b.est.params.Geodesic),
		))
	defer span.End()

	logger.InfoContext(ctx, "batch: starting",
		"targets", len(targets), "workers", workers,
		"plots", b.est.ds.NumPlots(), "species", b.est.ds.NumSpecies())

	records := make([]Record, len(targets))

	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, target := range targets {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			err := gctx.Err()
			if err != nil {
				return err
			}

			records[i] = b.estimate(gctx, logger, target)

			if b.config.OnProgress != nil {
				b.config.OnProgress(int(done.Add(1)), len(targets))
			}

			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	elapsed := time.Since(start)
	b.config.Metrics.RecordBatch(ctx, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch cancelled")
		logger.WarnContext(ctx, "batch: cancelled", "done", done.Load(), "error", err)

		return nil, fmt.Errorf("batch %s: %w", runID, err)
	}

	summary := summarize(records)
	span.SetAttributes(
		attribute.Int("batch.complete", summary.complete),
		attribute.Int("batch.with_cutoff", summary.withCutoff),
	)

	logger.InfoContext(ctx, "batch: finished",
		"targets", len(records),
		"complete", summary.complete,
		"with_cutoff", summary.withCutoff,
		"outcomes", summary.outcomes,
		"elapsed", elapsed)

	return records, nil
}

// estimate runs one target and never panics.
func (b *Batch) estimate(ctx context.Context, logger *slog.Logger, target int) (rec Record) {
	start := time.Now()
	done := b.config.Metrics.TrackInflight(ctx)
	plotID := b.est.ds.Plot(target).ID

	ctx, span := otel.Tracer(tracerName).Start(observability.WithTarget(ctx, plotID), observability.SpanTarget,
		trace.WithAttributes(attribute.String("target.plot_id", plotID)))

	defer func() {
		if r := recover(); r != nil {
			rec = Record{
				PlotID:           plotID,
				ObservedRichness: b.est.ds.Richness(target),
				Outcomes:         []Outcome{OutcomeInternalError},
			}

			span.SetStatus(codes.Error, "panic")
			logger.WarnContext(ctx, "batch: recovered panic",
				"panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}

		b.record(ctx, logger, &rec, time.Since(start))
		span.End()
		done()
	}()

	return b.est.Estimate(ctx, target)
}

func (b *Batch) record(ctx context.Context, logger *slog.Logger, rec *Record, elapsed time.Duration) {
	outcomes := make([]string, len(rec.Outcomes))
	for i, o := range rec.Outcomes {
		outcomes[i] = string(o)
	}

	b.config.Metrics.RecordTarget(ctx, elapsed, outcomes)

	for _, m := range curve.Models {
		switch {
		case rec.Curve(m) != nil:
			b.config.Metrics.RecordFit(ctx, string(m), true)
		case rec.HasOutcome(CurveUnavailable(m)):
			b.config.Metrics.RecordFit(ctx, string(m), false)
		}
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Int("pool.neighbors_radius", rec.NeighborsRadius),
		attribute.Int("pool.neighbors_filtered", rec.NeighborsFiltered),
		attribute.StringSlice("target.outcomes", outcomes),
	)

	if rec.NeighborsSampled != nil {
		span.SetAttributes(attribute.Int("pool.neighbors_sampled", *rec.NeighborsSampled))
	}

	logger.DebugContext(ctx, "batch: target done", "outcomes", outcomes, "elapsed", elapsed)
}

type batchSummary struct {
	outcomes   map[Outcome]int
	complete   int
	withCutoff int
}

func summarize(records []Record) batchSummary {
	s := batchSummary{outcomes: make(map[Outcome]int)}

	for i := range records {
		if len(records[i].Outcomes) == 0 {
			s.complete++
		}

		if records[i].BealsCutoff != nil {
			s.withCutoff++
		}

		for _, o := range records[i].Outcomes {
			s.outcomes[o]++
		}
	}

	return s
}
