package commands

import (
	"bytes"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/speciespool/pkg/output"
	"github.com/Sumatoshi-tech/speciespool/pkg/report"
)

// ErrNoReportOutput is returned when the --output flag is not set.
var ErrNoReportOutput = errors.New("output file is required (use --output)")

// NewRenderCommand creates the render subcommand.
func NewRenderCommand() *cobra.Command {
	var (
		outputPath string
		title      string
		maxTargets int
	)

	cmd := &cobra.Command{
		Use:   "render <result.json|->",
		Short: "Render a JSON result table as an HTML species-area report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			if outputPath == "" {
				return ErrNoReportOutput
			}

			data, _, err := readInput(args[0], cobraCmd.InOrStdin())
			if err != nil {
				return err
			}

			doc, err := output.ReadJSON(bytes.NewReader(data))
			if err != nil {
				return err
			}

			return writeFile(outputPath, func(w io.Writer) error {
				return report.Write(w, doc, report.Config{Title: title, MaxTargets: maxTargets})
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output HTML file")
	cmd.Flags().StringVar(&title, "title", "Species pool", "page title")
	cmd.Flags().IntVar(&maxTargets, "max-targets", report.DefaultMaxTargets, "maximum number of per-target charts")

	return cmd
}
