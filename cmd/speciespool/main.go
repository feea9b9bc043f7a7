// Package main provides the entry point for the speciespool CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/speciespool/cmd/speciespool/commands"
	"github.com/Sumatoshi-tech/speciespool/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "speciespool",
		Short: "Regional species pool estimation for vegetation plots",
		Long: `speciespool estimates, for each survey plot, the compatible regional
species pool from its spatial and floristic neighbourhood.

Commands:
  run       Estimate species pools for a plot and species table
  cooccur   Build and cache the co-occurrence matrix
  validate  Check a JSON result table against the result schema
  render    Render an HTML report of species-area curves`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewCooccurCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewRenderCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(os.Stdout, version.String())
		},
	}
}
