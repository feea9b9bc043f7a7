package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/speciespool/pkg/config"
	"github.com/Sumatoshi-tech/speciespool/pkg/cooccurrence"
	"github.com/Sumatoshi-tech/speciespool/pkg/releve"
)

// ErrNoCooccurOutput is returned when the --output flag is not set.
var ErrNoCooccurOutput = errors.New("output file is required (use --output)")

// NewCooccurCommand creates the cooccur command group.
func NewCooccurCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cooccur",
		Short: "Co-occurrence matrix utilities",
	}

	cmd.AddCommand(buildCooccurBuildCommand())

	return cmd
}

func buildCooccurBuildCommand() *cobra.Command {
	var speciesPath, plotsPath, outputPath string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Count species co-occurrences and cache them for later runs",
		Long: `Count joint occurrences over every plot of the species table.

A .csv output holds the conditional probability matrix. Any other extension
holds the raw counts, which keep leave-one-out exclusion of the target plot
available; ".lz4" compresses them.

Examples:
  speciespool cooccur build --species species.csv --output cooccurrence.lz4
  speciespool cooccur build --species species.csv --output matrix.csv`,
		Args: cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			if speciesPath == "" {
				return fmt.Errorf("%w (use --species)", config.ErrMissingSpecies)
			}

			if outputPath == "" {
				return ErrNoCooccurOutput
			}

			return runCooccurBuild(speciesPath, plotsPath, outputPath, cobraCmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&speciesPath, "species", "", "species table CSV (plot_id,species_id,abundance)")
	cmd.Flags().StringVar(&plotsPath, "plots", "", "optional plot table CSV, validated against the species table")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (.lz4, .json, .gob or .csv)")

	return cmd
}

func runCooccurBuild(speciesPath, plotsPath, outputPath string, summary io.Writer) error {
	var (
		ds  *releve.Dataset
		err error
	)

	if plotsPath != "" {
		ds, err = releve.LoadDataset(plotsPath, speciesPath)
	} else {
		ds, err = releve.LoadSpecies(speciesPath)
	}

	if err != nil {
		return err
	}

	counts := cooccurrence.Build(ds)

	if strings.EqualFold(filepath.Ext(outputPath), ".csv") {
		err = writeFile(outputPath, func(w io.Writer) error {
			return cooccurrence.WriteCSV(w, counts.Probabilities())
		})
	} else {
		err = cooccurrence.Save(outputPath, counts)
	}

	if err != nil {
		return err
	}

	fmt.Fprintf(summary, "Counted %s species over %s plots into %s\n",
		humanize.Comma(int64(ds.NumSpecies())), humanize.Comma(int64(counts.Plots())), outputPath)

	return nil
}
