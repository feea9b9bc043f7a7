package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// exportedNamespaces are the first segments of span attribute keys that may
// leave the process. Everything the estimator records lives under one of
// them.
var exportedNamespaces = map[string]bool{
	"batch":  true,
	"target": true,
	"pool":   true,
	"curve":  true,
	"http":   true,
	"error":  true,
}

// exportedKeys are bare keys allowed in addition to the namespaces.
var exportedKeys = map[string]bool{
	"run_id": true,
	"error":  true,
}

// maxSliceLen caps slice-valued attributes such as target.outcomes.
const maxSliceLen = 16

// attributeFilter is a SpanProcessor that exports only known attribute keys
// and trims long slices before handing spans to its delegate.
type attributeFilter struct {
	delegate sdktrace.SpanProcessor
	logger   *slog.Logger
	warned   sync.Map
}

// NewAttributeFilter wraps delegate. When logger is not nil every dropped
// key is reported once.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &attributeFilter{delegate: delegate, logger: logger}
}

func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.delegate.OnEnd(&filteredSpan{ReadOnlySpan: s, attrs: f.filter(s.Attributes())})
}

func (f *attributeFilter) Shutdown(ctx context.Context) error {
	err := f.delegate.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	err := f.delegate.ForceFlush(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter flush: %w", err)
	}

	return nil
}

func (f *attributeFilter) filter(attrs []attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))

	for _, kv := range attrs {
		key := string(kv.Key)

		if !exported(key) {
			f.drop(key)

			continue
		}

		out = append(out, trimSlice(kv))
	}

	return out
}

func exported(key string) bool {
	if exportedKeys[key] {
		return true
	}

	namespace, _, ok := strings.Cut(key, ".")

	return ok && exportedNamespaces[namespace]
}

func trimSlice(kv attribute.KeyValue) attribute.KeyValue {
	switch kv.Value.Type() {
	case attribute.STRINGSLICE:
		if s := kv.Value.AsStringSlice(); len(s) > maxSliceLen {
			return kv.Key.StringSlice(s[:maxSliceLen])
		}
	case attribute.INT64SLICE:
		if s := kv.Value.AsInt64Slice(); len(s) > maxSliceLen {
			return kv.Key.Int64Slice(s[:maxSliceLen])
		}
	case attribute.FLOAT64SLICE:
		if s := kv.Value.AsFloat64Slice(); len(s) > maxSliceLen {
			return kv.Key.Float64Slice(s[:maxSliceLen])
		}
	default:
	}

	return kv
}

func (f *attributeFilter) drop(key string) {
	if f.logger == nil {
		return
	}

	if _, seen := f.warned.LoadOrStore(key, struct{}{}); !seen {
		f.logger.Warn("span attribute dropped", "key", key)
	}
}

// filteredSpan overrides the attributes of a finished span.
type filteredSpan struct {
	sdktrace.ReadOnlySpan

	attrs []attribute.KeyValue
}

func (s *filteredSpan) Attributes() []attribute.KeyValue {
	return s.attrs
}
