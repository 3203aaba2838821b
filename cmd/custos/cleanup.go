package main

import (
	"context"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete backups older than each engine's retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		application, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer application.Shutdown()

		removed, cleanupErr := application.Orchestrator().Cleanup(ctx)
		if err := printJSON(removed); err != nil {
			return err
		}
		return cleanupErr
	},
}
