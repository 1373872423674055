package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/phl-lab/autoanalysis/internal/config"
	"github.com/phl-lab/autoanalysis/internal/daemon"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the analysis daemon",
	Long:  `Run starts the watch/publish/dispatch engine and blocks until interrupted.`,
	RunE:  runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("config", "c", "", "config file (required)")
	runCmd.MarkFlagRequired("config")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if _, err := os.Stat(configPath); err != nil {
		return fmt.Errorf("config file %s: %w", configPath, err)
	}

	store, err := config.NewStore(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	d := daemon.New(store)
	d.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	d.Stop()
	return nil
}
