package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/speciespool/pkg/observability"
)

func recordingTracer(t *testing.T) (trace.Tracer, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	return tp.Tracer("test"), exporter
}

func TestInstrumentRoute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		route      string
		path       string
		status     int
		wantName   string
		wantStatus codes.Code
	}{
		{
			name: "scrape", method: http.MethodGet, route: "/metrics", path: "/metrics",
			status: http.StatusOK, wantName: "GET /metrics", wantStatus: codes.Unset,
		},
		{
			name: "route_not_path", method: http.MethodGet, route: "/healthz", path: "/healthz?probe=1",
			status: http.StatusOK, wantName: "GET /healthz", wantStatus: codes.Unset,
		},
		{
			name: "not_ready", method: http.MethodGet, route: "/readyz", path: "/readyz",
			status: http.StatusServiceUnavailable, wantName: "GET /readyz", wantStatus: codes.Error,
		},
		{
			name: "implicit_ok", method: http.MethodHead, route: "/metrics", path: "/metrics",
			wantName: "HEAD /metrics", wantStatus: codes.Unset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tracer, exporter := recordingTracer(t)

			handler := http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
				assert.True(t, trace.SpanContextFromContext(req.Context()).IsValid())

				if tt.status != 0 {
					rw.WriteHeader(tt.status)
				}
			})

			rec := httptest.NewRecorder()
			observability.InstrumentRoute(tracer, tt.route, handler).
				ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, http.NoBody))

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.wantName, spans[0].Name)
			assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind)
			assert.Equal(t, tt.wantStatus, spans[0].Status.Code)

			attrs := spanAttrMap(spans[0])
			assert.Equal(t, tt.route, attrs["http.route"])

			wantCode := tt.status
			if wantCode == 0 {
				wantCode = http.StatusOK
			}

			assert.Equal(t, int64(wantCode), attrs["http.response.status_code"])
		})
	}
}

func TestInstrumentRoute_ExtractsTraceParent(t *testing.T) {
	t.Parallel()

	tracer, exporter := recordingTracer(t)

	handler := observability.InstrumentRoute(tracer, "/metrics", http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	req.Header.Set("Traceparent", "00-0af7651916cd43dd8448eb211c80319c-00f067aa0ba902b7-01")

	// The global propagator is installed by Init; use an explicit one here.
	ctx := propagation.TraceContext{}.Extract(context.Background(), propagation.HeaderCarrier(req.Header))
	require.True(t, trace.SpanContextFromContext(ctx).IsValid())

	handler.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", spans[0].SpanContext.TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent.SpanID().String())
}
