package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpattn/vizflow/internal/config"
	"github.com/rpattn/vizflow/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "vizflow: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vizflow",
		Short: "VizFlow ingestion CLI",
		Long: `VizFlow CLI runs database migrations, processes single files through the
same processors as the server, and writes filtered exports to disk.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("VIZFLOW_CONFIG_PATH"), "Directory containing config.yaml")
	cmd.AddCommand(
		newMigrateCmd(),
		newProcessCmd(),
		newExportCmd(),
	)
	return cmd
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	// Logs go to stderr so command output stays parseable.
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	return cfg, logger, nil
}
