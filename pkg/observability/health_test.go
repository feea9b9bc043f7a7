package observability_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/speciespool/pkg/observability"
)

func serve(t *testing.T, handler http.Handler, path string) (int, string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	var body map[string]string

	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}

	return rec.Code, body["status"]
}

func TestHealthHandler_ReturnsOK(t *testing.T) {
	t.Parallel()

	code, status := serve(t, observability.HealthHandler(), "/healthz")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", status)
}

func TestReadyHandler(t *testing.T) {
	t.Parallel()

	pass := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("dataset not loaded") }

	tests := []struct {
		name   string
		checks []observability.ReadyCheck
		code   int
		status string
	}{
		{"no_checks", nil, http.StatusOK, "ok"},
		{"all_pass", []observability.ReadyCheck{pass, pass}, http.StatusOK, "ok"},
		{"one_fails", []observability.ReadyCheck{pass, fail}, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, status := serve(t, observability.ReadyHandler(tt.checks...), "/readyz")

			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestNewMetricsMux(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "text/plain")
		rw.WriteHeader(http.StatusOK)
	})

	mux := observability.NewMetricsMux(nooptrace.NewTracerProvider().Tracer("test"), metrics)

	code, _ := serve(t, mux, "/metrics")
	assert.Equal(t, http.StatusOK, code)

	code, status := serve(t, mux, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", status)

	code, _ = serve(t, mux, "/readyz")
	assert.Equal(t, http.StatusOK, code)
}

func TestNewMetricsMux_WithoutMetricsHandler(t *testing.T) {
	t.Parallel()

	mux := observability.NewMetricsMux(nooptrace.NewTracerProvider().Tracer("test"), nil)

	code, _ := serve(t, mux, "/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}
