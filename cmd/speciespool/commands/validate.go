package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/speciespool/pkg/schema"
)

// maxShownViolations caps the violations printed by validate.
const maxShownViolations = 20

// ErrNoValidateInput is returned when validate gets no file argument.
var ErrNoValidateInput = errors.New("input file is required (use - for stdin)")

// NewValidateCommand creates the validate subcommand.
func NewValidateCommand() *cobra.Command {
	var (
		colorize, nocolor bool
		printSchema       bool
	)

	cmd := &cobra.Command{
		Use:   "validate <result.json|->",
		Short: "Validate a JSON result table against the result schema",
		Long: `Validate a JSON result table written by 'speciespool run --format json'.

Examples:
  speciespool validate pool.json
  speciespool validate - < pool.json
  speciespool validate --print-schema`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			setColor(colorize, nocolor)

			if printSchema {
				return writeSchema(cobraCmd.OutOrStdout())
			}

			if len(args) == 0 {
				return ErrNoValidateInput
			}

			return runValidate(args[0], cobraCmd.InOrStdin(), cobraCmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&colorize, "color", false, "force colored output")
	cmd.Flags().BoolVar(&nocolor, "no-color", false, "disable colored output")
	cmd.Flags().BoolVar(&printSchema, "print-schema", false, "print the result schema and exit")

	return cmd
}

func setColor(colorize, nocolor bool) {
	if nocolor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	} else if colorize {
		color.NoColor = false //nolint:reassign // intentional override of library global
	}
}

func writeSchema(w io.Writer) error {
	data, err := schema.ResultJSON()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(data))
	if err != nil {
		return fmt.Errorf("write schema: %w", err)
	}

	return nil
}

func runValidate(inputPath string, stdin io.Reader, stdout io.Writer) error {
	data, label, err := readInput(inputPath, stdin)
	if err != nil {
		return err
	}

	violations, err := schema.Validate(data)
	if err == nil {
		color.New(color.FgGreen).Fprintf(stdout, "Result table is valid (%s)\n", label)

		return nil
	}

	if !errors.Is(err, schema.ErrInvalidDocument) {
		return fmt.Errorf("%s: %w", label, err)
	}

	color.New(color.FgRed).Fprintf(stdout, "Result table is invalid (%s)\n", label)
	fmt.Fprintf(stdout, "\nErrors:\n")

	for i, v := range violations {
		if i == maxShownViolations {
			color.New(color.FgYellow).Fprintf(stdout, "  ... and %d more\n", len(violations)-maxShownViolations)

			break
		}

		color.New(color.FgRed).Fprintf(stdout, "  - %s: %s\n", v.Field, v.Description)
	}

	return fmt.Errorf("%s: %w", label, err)
}

//nolint:nonamedreturns // named returns document the label.
func readInput(inputPath string, stdin io.Reader) (data []byte, label string, err error) {
	if inputPath == "-" {
		data, err = io.ReadAll(stdin)
		if err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}

		return data, "stdin", nil
	}

	data, err = os.ReadFile(inputPath)
	if err != nil {
		return nil, "", fmt.Errorf("read input: %w", err)
	}

	return data, inputPath, nil
}
