package observability

import (
	"context"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func ProbeResource(cfg Config) (*resource.Resource, error) {
	return buildResource(context.Background(), cfg)
}

// ProbeRootSampled reports whether a root span is recorded by a provider
// using the sampler options of cfg.
func ProbeRootSampled(cfg Config) bool {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(append(samplerOptions(cfg), sdktrace.WithSyncer(exporter))...)

	_, span := tp.Tracer("probe").Start(context.Background(), "speciespool.batch")
	span.End()

	sampled := len(exporter.GetSpans()) == 1

	_ = tp.Shutdown(context.Background())

	return sampled
}
