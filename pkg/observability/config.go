// Package observability wires OpenTelemetry tracing and metrics and the
// structured logger of a speciespool run. Without an OTLP endpoint and
// without the Prometheus endpoint every provider is a no-op.
package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

const (
	defaultServiceName     = "speciespool"
	defaultShutdownTimeout = 5 * time.Second

	envOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOTLPHeaders  = "OTEL_EXPORTER_OTLP_HEADERS"
	envOTLPInsecure = "OTEL_EXPORTER_OTLP_INSECURE"
)

// OTLP configures the gRPC push exporters. An empty Endpoint disables them.
type OTLP struct {
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

// Config holds all observability configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string

	OTLP OTLP

	// Prometheus attaches a pull exporter to the meter provider and exposes
	// it as Providers.MetricsHandler.
	Prometheus bool

	// SampleRatio is the root sampling ratio of batch traces. Zero leaves the
	// choice to OTEL_TRACES_SAMPLER.
	SampleRatio float64

	// TraceVerbose keeps the per-target and per-fit spans. Otherwise only the
	// batch span is exported.
	TraceVerbose bool

	LogLevel slog.Level
	LogJSON  bool

	// LogOutput receives log records. Nil means os.Stderr.
	LogOutput io.Writer

	// ShutdownTimeout bounds the final flush of exporters.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a zero-export configuration logging text at info.
func DefaultConfig() Config {
	return Config{
		ServiceName:     defaultServiceName,
		LogLevel:        slog.LevelInfo,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// OTLPFromEnv reads the standard OTEL_EXPORTER_OTLP_* variables.
func OTLPFromEnv() OTLP {
	return OTLP{
		Endpoint: os.Getenv(envOTLPEndpoint),
		Headers:  ParseOTLPHeaders(os.Getenv(envOTLPHeaders)),
		Insecure: strings.EqualFold(os.Getenv(envOTLPInsecure), "true"),
	}
}

// ParseOTLPHeaders parses "key=value,key=value". Pairs without "=" or with
// an empty key are skipped; nil is returned when nothing remains.
func ParseOTLPHeaders(raw string) map[string]string {
	var headers map[string]string

	for pair := range strings.SplitSeq(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)

		if !ok || key == "" {
			continue
		}

		if headers == nil {
			headers = make(map[string]string)
		}

		headers[key] = strings.TrimSpace(value)
	}

	return headers
}

func (c Config) logOutput() io.Writer {
	if c.LogOutput != nil {
		return c.LogOutput
	}

	return os.Stderr
}

func (c Config) shutdownTimeout() time.Duration {
	if c.ShutdownTimeout > 0 {
		return c.ShutdownTimeout
	}

	return defaultShutdownTimeout
}
