package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "autoanalysis",
	Short: "Watch sequencing run directories and drive analysis pipelines",
	Long: `Autoanalysis watches the configured run directories for newly uploaded
sequencing runs, links their libraries into a year-partitioned working tree,
and drives the staged analysis pipelines over them.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Best effort; a missing .env is the normal case.
	_ = godotenv.Load()
	rootCmd.Version = Version
}
