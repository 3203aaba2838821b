package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/semmidev/custos/internal/app"
	"github.com/semmidev/custos/internal/config"
)

var (
	// Version is set at build time.
	Version = "dev"

	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "custos",
	Short: "Cross-engine backup orchestrator",
	Long: `custos schedules and runs backups of PostgreSQL, Redis and Kuzu,
records every execution, validates the produced artifacts and enforces
per-engine retention.`,
	Version:      Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(executionsCmd)
	rootCmd.AddCommand(gdriveAuthCmd)
}

// openApp loads config, builds the application and loads its jobs.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize app: %w", err)
	}

	if err := application.Open(ctx); err != nil {
		application.Shutdown()
		return nil, err
	}
	return application, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
