package commands

import (
	"github.com/Sumatoshi-tech/speciespool/pkg/config"
	"github.com/Sumatoshi-tech/speciespool/pkg/observability"
	"github.com/Sumatoshi-tech/speciespool/pkg/version"
)

// initObservability builds logging, tracing and metrics from the loaded
// configuration. The OTLP exporter follows the standard OTEL_* variables.
func initObservability(cfg *config.Config) (observability.Providers, error) {
	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return observability.Providers{}, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.OTLP = observability.OTLPFromEnv()
	obsCfg.Prometheus = cfg.Observability.MetricsAddr != ""
	obsCfg.SampleRatio = cfg.Observability.SampleRatio
	obsCfg.TraceVerbose = cfg.Observability.TraceVerbose
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.Format == config.LogFormatJSON

	return observability.Init(obsCfg)
}
