package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/speciespool/pkg/config"
	"github.com/Sumatoshi-tech/speciespool/pkg/cooccurrence"
	"github.com/Sumatoshi-tech/speciespool/pkg/observability"
	"github.com/Sumatoshi-tech/speciespool/pkg/output"
	"github.com/Sumatoshi-tech/speciespool/pkg/pool"
	"github.com/Sumatoshi-tech/speciespool/pkg/releve"
	"github.com/Sumatoshi-tech/speciespool/pkg/report"
	"github.com/Sumatoshi-tech/speciespool/pkg/version"
)

const (
	toolName          = "speciespool"
	outputFilePerm    = 0o644
	metricsReadHeader = 5 * time.Second
)

// NewRunCommand creates the run subcommand.
func NewRunCommand() *cobra.Command {
	var (
		configPath string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Estimate the species pool of every target plot",
		Long: `Estimate the compatible regional species pool of each target plot.

Settings are read from speciespool.yaml (., ./config, /etc/speciespool or
--config), SPECIESPOOL_* environment variables and flags, in increasing
precedence.

Examples:
  speciespool run --species species.csv --plots plots.csv --radius 5000
  speciespool run --species species.csv --plots plots.csv --radius 5000 \
      --cutoff-policy Gompertz --species-pool --format json --output pool.json`,
		Args: cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath, cobraCmd.Flags())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cobraCmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var summary io.Writer
			if !quiet {
				summary = cobraCmd.ErrOrStderr()
			}

			return runEstimate(ctx, cfg, cobraCmd.OutOrStdout(), summary)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to a speciespool.yaml config file")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress the run summary")

	flags.String("species", "", "species table CSV (plot_id,species_id,abundance)")
	flags.String("plots", "", "plot table CSV (plot_id,x,y[,area])")
	flags.String("cooccurrence", "", "co-occurrence matrix CSV or cache from 'cooccur build'")
	flags.StringSlice("targets", nil, "comma-separated target plot ids (default all)")

	flags.Float64("radius", 0, "neighbourhood radius in CRS units, metres with --geodesic")
	flags.Float64("bray", pool.DefaultBray, "Bray-Curtis dissimilarity threshold in [0,1]")
	flags.Int("min-plots", pool.DefaultMinPlots, "minimum neighbourhood size")
	flags.String("cutoff-policy", string(pool.PolicyIChao2), "cutoff policy: iChao2, Gompertz or Asymptotic")
	flags.Bool("species-pool", false, "include the ranked species list in each record")
	flags.Bool("geodesic", false, "treat x,y as longitude,latitude and measure on the sphere")

	flags.Uint64("seed", 0, "seed of the per-target random streams")
	flags.Int("permutations", 0, "accumulation curve permutations (default 99)")
	flags.Duration("curve-timeout", pool.DefaultCurveTimeout, "curve fitting bound per target, 0 disables")
	flags.Int("workers", 0, "concurrent targets (default number of CPUs)")

	flags.String("format", output.FormatTable, "output format: "+strings.Join(output.Formats(), ", "))
	flags.StringP("output", "o", "", "output file (default stdout)")
	flags.String("report", "", "write an HTML species-area report to this file")

	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", config.LogFormatText, "log format: text or json")
	flags.String("metrics-addr", "", "serve /metrics, /healthz and /readyz on this address during the run")

	return cmd
}

// runEstimate writes the result table to stdout and, when summary is not
// nil, a short run summary.
func runEstimate(ctx context.Context, cfg *config.Config, stdout, summary io.Writer) error {
	err := cfg.CheckInput()
	if err != nil {
		return err
	}

	params, err := cfg.Params()
	if err != nil {
		return err
	}

	providers, err := initObservability(cfg)
	if err != nil {
		return err
	}

	logger := providers.Logger

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	est, err := loadEstimator(cfg, params)
	if err != nil {
		return err
	}

	if cfg.Observability.MetricsAddr != "" {
		_, stopServer, serveErr := serveMetrics(cfg.Observability.MetricsAddr, providers, logger)
		if serveErr != nil {
			return serveErr
		}

		defer stopServer()
	}

	targets, err := est.Targets(params.Targets)
	if err != nil {
		return err
	}

	metrics, err := observability.NewEstimationMetrics(providers.Meter)
	if err != nil {
		return err
	}

	start := time.Now()

	records, err := pool.NewBatch(est, pool.BatchConfig{Logger: logger, Metrics: metrics}).Run(ctx, targets)
	if err != nil {
		return err
	}

	doc := output.NewDocument(output.MetaFromParams(toolName, version.Version, est.Params()), records)

	err = writeDocument(cfg.Output, doc, stdout)
	if err != nil {
		return err
	}

	if summary != nil {
		printSummary(summary, doc, time.Since(start))
	}

	return nil
}

func loadEstimator(cfg *config.Config, params pool.Params) (*pool.Estimator, error) {
	ds, err := releve.LoadDataset(cfg.Input.Plots, cfg.Input.Species)
	if err != nil {
		return nil, err
	}

	if cfg.Input.Cooccurrence == "" {
		return pool.NewEstimator(ds, cooccurrence.Build(ds), params)
	}

	source, err := cooccurrence.Load(cfg.Input.Cooccurrence)
	if err != nil {
		return nil, err
	}

	return pool.NewEstimator(ds, source, params)
}

func writeDocument(cfg config.OutputConfig, doc output.Document, stdout io.Writer) error {
	if cfg.Path == "" {
		err := output.Write(stdout, cfg.Format, doc)
		if err != nil {
			return err
		}
	} else {
		err := writeFile(cfg.Path, func(w io.Writer) error { return output.Write(w, cfg.Format, doc) })
		if err != nil {
			return err
		}
	}

	if cfg.Report == "" {
		return nil
	}

	return writeFile(cfg.Report, func(w io.Writer) error {
		return report.Write(w, doc, report.Config{Title: "Species pool"})
	})
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, outputFilePerm)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	writeErr := write(file)
	closeErr := file.Close()

	if writeErr != nil {
		return fmt.Errorf("write %s: %w", path, writeErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close %s: %w", path, closeErr)
	}

	return nil
}

// serveMetrics exposes the Prometheus endpoint for the duration of the run.
// It returns the bound address and a stop function.
func serveMetrics(addr string, providers observability.Providers, logger *slog.Logger) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           observability.NewMetricsMux(providers.Tracer, providers.MetricsHandler),
		ReadHeaderTimeout: metricsReadHeader,
	}

	go func() {
		serveErr := server.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", serveErr)
		}
	}()

	bound := listener.Addr().String()
	logger.Info("metrics: serving", "addr", bound)

	return bound, func() {
		shutdownErr := server.Shutdown(context.Background())
		if shutdownErr != nil {
			logger.Warn("metrics server shutdown failed", "error", shutdownErr)
		}
	}, nil
}

func printSummary(w io.Writer, doc output.Document, elapsed time.Duration) {
	withCutoff := 0
	complete := 0

	for i := range doc.Records {
		if doc.Records[i].BealsCutoff != nil {
			withCutoff++
		}

		if len(doc.Records[i].Outcomes) == 0 {
			complete++
		}
	}

	total := len(doc.Records)

	fmt.Fprintf(w, "Estimated %s targets in %s\n", humanize.Comma(int64(total)), elapsed.Round(time.Millisecond))

	verdict := color.New(color.FgGreen)
	if withCutoff < total {
		verdict = color.New(color.FgYellow)
	}

	verdict.Fprintf(w, "  with cutoff: %s (%s)\n", humanize.Comma(int64(withCutoff)), percent(withCutoff, total))
	fmt.Fprintf(w, "  complete:    %s (%s)\n", humanize.Comma(int64(complete)), percent(complete, total))
}

func percent(part, total int) string {
	if total == 0 {
		return "n/a"
	}

	return humanize.FormatFloat("#.#", float64(part)*100/float64(total)) + "%"
}
