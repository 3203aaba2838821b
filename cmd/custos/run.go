package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/semmidev/custos/internal/domain"
)

var runCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Execute a job now, even if it is disabled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		application, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer application.Shutdown()

		exec, err := application.Orchestrator().ExecuteJob(ctx, args[0])
		if exec != nil {
			if perr := printJSON(exec); perr != nil {
				return perr
			}
		}
		if err != nil {
			return fmt.Errorf("execute %s: %w", args[0], err)
		}
		if exec.Status == domain.ExecutionFailed {
			return fmt.Errorf("execution %s failed: %s", exec.ID, exec.ErrorMessage)
		}
		return nil
	},
}
