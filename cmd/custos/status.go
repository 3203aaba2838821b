package main

import (
	"context"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print jobs, recent executions and collaborator presence as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		application, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer application.Shutdown()

		report, err := application.Orchestrator().Status(ctx)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}
