package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrService = "service"
	attrVersion = "version"
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"

	// AttrRunID and AttrPlotID are the log keys of the batch run and the
	// target plot carried by the context.
	AttrRunID  = "run_id"
	AttrPlotID = "plot_id"
)

type (
	runKey    struct{}
	targetKey struct{}
)

// WithRun returns a context whose log records carry run_id.
func WithRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runKey{}, runID)
}

// WithTarget returns a context whose log records carry the target plot id.
func WithTarget(ctx context.Context, plotID string) context.Context {
	return context.WithValue(ctx, targetKey{}, plotID)
}

// RunID returns the run id stored by WithRun, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runKey{}).(string)

	return id
}

// ContextHandler is an [slog.Handler] that adds the run id, the target plot
// and the active span of the record's context. Service attributes are
// attached once at construction, so they stay at the top level under groups.
type ContextHandler struct {
	inner slog.Handler
}

// NewContextHandler wraps inner. An empty version is omitted.
func NewContextHandler(inner slog.Handler, service, version string) *ContextHandler {
	attrs := []slog.Attr{slog.String(attrService, service)}
	if version != "" {
		attrs = append(attrs, slog.String(attrVersion, version))
	}

	return &ContextHandler{inner: inner.WithAttrs(attrs)}
}

// Enabled delegates to the inner handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds the context attributes and delegates.
func (h *ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if id := RunID(ctx); id != "" {
		record.AddAttrs(slog.String(AttrRunID, id))
	}

	if plot, ok := ctx.Value(targetKey{}).(string); ok {
		record.AddAttrs(slog.String(AttrPlotID, plot))
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	err := h.inner.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("log handler: %w", err)
	}

	return nil
}

// WithAttrs wraps the inner handler's WithAttrs.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup wraps the inner handler's WithGroup.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}

// NewLogger builds the run logger from cfg.
func NewLogger(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var inner slog.Handler
	if cfg.LogJSON {
		inner = slog.NewJSONHandler(cfg.logOutput(), opts)
	} else {
		inner = slog.NewTextHandler(cfg.logOutput(), opts)
	}

	return slog.New(NewContextHandler(inner, cfg.ServiceName, cfg.ServiceVersion))
}
