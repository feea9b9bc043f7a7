package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/speciespool/pkg/config"
	"github.com/Sumatoshi-tech/speciespool/pkg/geometry"
	"github.com/Sumatoshi-tech/speciespool/pkg/output"
	"github.com/Sumatoshi-tech/speciespool/pkg/pool"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "speciespool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""), nil)
	require.NoError(t, err)

	assert.Equal(t, "iChao2", cfg.Pool.CutoffPolicy)
	assert.InDelta(t, pool.DefaultBray, cfg.Pool.Bray, 1e-12)
	assert.Equal(t, pool.DefaultMinPlots, cfg.Pool.MinPlots)
	assert.Equal(t, pool.DefaultCurveTimeout, cfg.Estimation.CurveTimeout)
	assert.Equal(t, output.FormatTable, cfg.Output.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, config.LogFormatText, cfg.Logging.Format)
	assert.InDelta(t, 1.0, cfg.Observability.SampleRatio, 1e-12)
	assert.Empty(t, cfg.Input.Targets)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
pool:
  radius: 2500
  bray: 0.35
  min_plots: 15
  cutoff_policy: gompertz
  species_pool: true
estimation:
  seed: 7
  curve_timeout: 5s
  workers: 3
input:
  species: species.csv
  plots: plots.csv
  targets: [a, b]
output:
  format: yml
logging:
  format: json
  level: debug
`)

	cfg, err := config.LoadConfig(path, nil)
	require.NoError(t, err)

	assert.InDelta(t, 2500.0, cfg.Pool.Radius, 1e-12)
	assert.Equal(t, 15, cfg.Pool.MinPlots)
	assert.True(t, cfg.Pool.SpeciesPool)
	assert.Equal(t, uint64(7), cfg.Estimation.Seed)
	assert.Equal(t, 5*time.Second, cfg.Estimation.CurveTimeout)
	assert.Equal(t, []string{"a", "b"}, cfg.Input.Targets)
	assert.Equal(t, output.FormatYAML, cfg.Output.Format)
	require.NoError(t, cfg.CheckInput())

	params, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, pool.PolicyGompertz, params.Policy)
	assert.Equal(t, 3, params.Workers)
	assert.InDelta(t, 0.35, params.Bray, 1e-12)
	assert.Equal(t, []string{"a", "b"}, params.Targets)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "pool:\n  radius: 100\n  bray: 0.3\n")

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.Float64("radius", 0, "")
	flags.Float64("bray", 0, "")
	flags.String("format", "", "")
	require.NoError(t, flags.Parse([]string{"--radius", "750", "--format", "csv"}))

	cfg, err := config.LoadConfig(path, flags)
	require.NoError(t, err)

	assert.InDelta(t, 750.0, cfg.Pool.Radius, 1e-12)
	// Unset flags do not shadow the file.
	assert.InDelta(t, 0.3, cfg.Pool.Bray, 1e-12)
	assert.Equal(t, output.FormatCSV, cfg.Output.Format)
}

//nolint:paralleltest // t.Setenv is incompatible with t.Parallel.
func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("SPECIESPOOL_POOL_RADIUS", "42")
	t.Setenv("SPECIESPOOL_POOL_GEODESIC", "true")

	cfg, err := config.LoadConfig(writeConfig(t, "pool:\n  radius: 1\n"), nil)
	require.NoError(t, err)

	assert.InDelta(t, 42.0, cfg.Pool.Radius, 1e-12)
	assert.True(t, cfg.Pool.Geodesic)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "log_level", content: "logging:\n  level: loud\n", wantErr: config.ErrInvalidLogLevel},
		{name: "log_format", content: "logging:\n  format: xml\n", wantErr: config.ErrInvalidLogFormat},
		{name: "output_format", content: "output:\n  format: parquet\n", wantErr: output.ErrUnsupportedFormat},
		{name: "sample_ratio", content: "observability:\n  sample_ratio: 2\n", wantErr: config.ErrInvalidSampleRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content), nil)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestParams_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr error
	}{
		{name: "radius", mutate: func(c *config.Config) { c.Pool.Radius = 0 }, wantErr: geometry.ErrInvalidRadius},
		{name: "bray", mutate: func(c *config.Config) { c.Pool.Bray = 1.5 }, wantErr: pool.ErrInvalidBray},
		{name: "min_plots", mutate: func(c *config.Config) { c.Pool.MinPlots = 0 }, wantErr: pool.ErrInvalidMinPlots},
		{name: "policy", mutate: func(c *config.Config) { c.Pool.CutoffPolicy = "chao1" }, wantErr: pool.ErrUnsupportedPolicy},
		{name: "workers", mutate: func(c *config.Config) { c.Estimation.Workers = -1 }, wantErr: pool.ErrInvalidWorkers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.LoadConfig(writeConfig(t, "pool:\n  radius: 10\n"), nil)
			require.NoError(t, err)

			tt.mutate(cfg)

			_, err = cfg.Params()
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheckInput(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	require.ErrorIs(t, cfg.CheckInput(), config.ErrMissingSpecies)

	cfg.Input.Species = "species.csv"
	require.ErrorIs(t, cfg.CheckInput(), config.ErrMissingPlots)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	level, err := config.ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, "WARN", level.String())
}
