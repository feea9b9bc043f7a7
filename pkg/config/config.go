// Package config provides configuration loading and validation for speciespool.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/speciespool/pkg/output"
	"github.com/Sumatoshi-tech/speciespool/pkg/pool"
)

// Sentinel validation errors.
var (
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("invalid log format")
	ErrInvalidSampleRatio = errors.New("trace sample ratio must be within [0,1]")
	ErrMissingSpecies     = errors.New("species table is required")
	ErrMissingPlots       = errors.New("plot table is required")
)

// EnvPrefix prefixes every environment override, e.g. SPECIESPOOL_POOL_RADIUS.
const EnvPrefix = "SPECIESPOOL"

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds all configuration for speciespool.
type Config struct {
	Pool          PoolConfig          `mapstructure:"pool"`
	Estimation    EstimationConfig    `mapstructure:"estimation"`
	Input         InputConfig         `mapstructure:"input"`
	Output        OutputConfig        `mapstructure:"output"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// PoolConfig holds the ecological parameters of the estimate.
type PoolConfig struct {
	CutoffPolicy string  `mapstructure:"cutoff_policy"`
	Radius       float64 `mapstructure:"radius"`
	Bray         float64 `mapstructure:"bray"`
	MinPlots     int     `mapstructure:"min_plots"`
	SpeciesPool  bool    `mapstructure:"species_pool"`
	Geodesic     bool    `mapstructure:"geodesic"`
}

// EstimationConfig holds the execution parameters.
type EstimationConfig struct {
	CurveTimeout time.Duration `mapstructure:"curve_timeout"`
	Seed         uint64        `mapstructure:"seed"`
	Permutations int           `mapstructure:"permutations"`
	Workers      int           `mapstructure:"workers"`
}

// InputConfig names the input tables.
type InputConfig struct {
	Species      string   `mapstructure:"species"`
	Plots        string   `mapstructure:"plots"`
	Cooccurrence string   `mapstructure:"cooccurrence"`
	Targets      []string `mapstructure:"targets"`
}

// OutputConfig selects where and how results are written.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
	Report string `mapstructure:"report"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds metrics and tracing settings. The OTLP exporter
// itself is configured by the standard OTEL_EXPORTER_OTLP_* variables.
type ObservabilityConfig struct {
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	TraceVerbose bool    `mapstructure:"trace_verbose"`
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"radius":        "pool.radius",
	"bray":          "pool.bray",
	"min-plots":     "pool.min_plots",
	"cutoff-policy": "pool.cutoff_policy",
	"species-pool":  "pool.species_pool",
	"geodesic":      "pool.geodesic",
	"seed":          "estimation.seed",
	"permutations":  "estimation.permutations",
	"curve-timeout": "estimation.curve_timeout",
	"workers":       "estimation.workers",
	"species":       "input.species",
	"plots":         "input.plots",
	"cooccurrence":  "input.cooccurrence",
	"targets":       "input.targets",
	"format":        "output.format",
	"output":        "output.path",
	"report":        "output.report",
	"log-level":     "logging.level",
	"log-format":    "logging.format",
	"metrics-addr":  "observability.metrics_addr",
}

// LoadConfig loads configuration from defaults, a config file, environment
// variables and, when flags is not nil, the flags that were set on the
// command line, in increasing precedence.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("speciespool")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/speciespool")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flags != nil {
		bindErr := bindFlags(viperCfg, flags)
		if bindErr != nil {
			return nil, bindErr
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func bindFlags(viperCfg *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}

		err := viperCfg.BindPFlag(key, flag)
		if err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	return nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	defaults := pool.DefaultParams()

	viperCfg.SetDefault("pool.cutoff_policy", string(defaults.Policy))
	viperCfg.SetDefault("pool.radius", 0.0)
	viperCfg.SetDefault("pool.bray", defaults.Bray)
	viperCfg.SetDefault("pool.min_plots", defaults.MinPlots)
	viperCfg.SetDefault("pool.species_pool", false)
	viperCfg.SetDefault("pool.geodesic", false)

	viperCfg.SetDefault("estimation.curve_timeout", defaults.CurveTimeout.String())
	viperCfg.SetDefault("estimation.seed", 0)
	viperCfg.SetDefault("estimation.permutations", defaults.Permutations)
	viperCfg.SetDefault("estimation.workers", 0)

	viperCfg.SetDefault("input.species", "")
	viperCfg.SetDefault("input.plots", "")
	viperCfg.SetDefault("input.cooccurrence", "")
	viperCfg.SetDefault("input.targets", []string{})

	viperCfg.SetDefault("output.format", output.FormatTable)
	viperCfg.SetDefault("output.path", "")
	viperCfg.SetDefault("output.report", "")

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", LogFormatText)

	viperCfg.SetDefault("observability.metrics_addr", "")
	viperCfg.SetDefault("observability.sample_ratio", 1.0)
	viperCfg.SetDefault("observability.trace_verbose", false)
}

// validateConfig checks the settings that do not depend on the command.
// Pool parameters are checked by Params.
func validateConfig(config *Config) error {
	_, err := ParseLevel(config.Logging.Level)
	if err != nil {
		return err
	}

	switch config.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	format, err := output.ValidateFormat(config.Output.Format)
	if err != nil {
		return err
	}

	config.Output.Format = format

	ratio := config.Observability.SampleRatio
	if ratio < 0 || ratio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, ratio)
	}

	return nil
}

// ParseLevel maps a level name onto slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(name))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, name)
	}

	return level, nil
}

// Params converts the pool and estimation sections into validated
// estimation parameters.
func (c *Config) Params() (pool.Params, error) {
	params := pool.DefaultParams()

	policy, err := pool.ParsePolicy(c.Pool.CutoffPolicy)
	if err != nil {
		return pool.Params{}, err
	}

	params.Policy = policy
	params.Radius = c.Pool.Radius
	params.Bray = c.Pool.Bray
	params.MinPlots = c.Pool.MinPlots
	params.SpeciesPool = c.Pool.SpeciesPool
	params.Geodesic = c.Pool.Geodesic
	params.Targets = c.Input.Targets
	params.Seed = c.Estimation.Seed
	params.CurveTimeout = c.Estimation.CurveTimeout

	if c.Estimation.Permutations > 0 {
		params.Permutations = c.Estimation.Permutations
	}

	params.Workers = c.Estimation.Workers

	err = params.Validate()
	if err != nil {
		return pool.Params{}, err
	}

	return params, nil
}

// CheckInput reports a missing input table.
func (c *Config) CheckInput() error {
	if c.Input.Species == "" {
		return ErrMissingSpecies
	}

	if c.Input.Plots == "" {
		return ErrMissingPlots
	}

	return nil
}
