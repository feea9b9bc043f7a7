package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/speciespool/pkg/observability"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	return record
}

func jsonLogger(buf *bytes.Buffer) *slog.Logger {
	inner := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	return slog.New(observability.NewContextHandler(inner, "speciespool", "1.0.0"))
}

func TestContextHandler_RunAndTarget(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := observability.WithTarget(observability.WithRun(context.Background(), "run-1"), "P7")
	jsonLogger(&buf).InfoContext(ctx, "target done")

	record := decodeRecord(t, &buf)
	assert.Equal(t, "run-1", record["run_id"])
	assert.Equal(t, "P7", record["plot_id"])
	assert.Equal(t, "speciespool", record["service"])
	assert.Equal(t, "1.0.0", record["version"])
	assert.NotContains(t, record, "trace_id")
	assert.Equal(t, "run-1", observability.RunID(ctx))
}

func TestContextHandler_InjectsSpan(t *testing.T) {
	t.Parallel()

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	var buf bytes.Buffer

	jsonLogger(&buf).InfoContext(ctx, "batch: starting")

	record := decodeRecord(t, &buf)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.NotContains(t, record, "run_id")
	assert.NotContains(t, record, "plot_id")
}

func TestContextHandler_GroupKeepsServiceOnTop(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	jsonLogger(&buf).WithGroup("curve").With("model", "gompertz").
		InfoContext(observability.WithRun(context.Background(), "r"), "fit failed")

	record := decodeRecord(t, &buf)
	assert.Equal(t, "speciespool", record["service"])

	group, ok := record["curve"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "gompertz", group["model"])
	assert.Equal(t, "r", group["run_id"])
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		json    bool
		level   slog.Level
		message string
		want    string
	}{
		{name: "json", json: true, level: slog.LevelInfo, message: "loaded", want: `"msg":"loaded"`},
		{name: "text", level: slog.LevelInfo, message: "loaded", want: "msg=loaded"},
		{name: "below_level", json: true, level: slog.LevelError, message: "loaded", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			cfg := observability.DefaultConfig()
			cfg.LogJSON = tt.json
			cfg.LogLevel = tt.level
			cfg.LogOutput = &buf

			observability.NewLogger(cfg).Info(tt.message)

			if tt.want == "" {
				assert.Empty(t, buf.String())

				return
			}

			assert.Contains(t, buf.String(), tt.want)
			assert.Contains(t, buf.String(), "speciespool")
		})
	}
}
