package main

import (
	"context"

	"github.com/spf13/cobra"
)

var executionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "Inspect recorded executions",
}

var executionsShowCmd = &cobra.Command{
	Use:   "show <execution-id>",
	Short: "Print one execution record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		application, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer application.Shutdown()

		exec, err := application.Orchestrator().Execution(args[0])
		if err != nil {
			return err
		}
		return printJSON(exec)
	},
}

func init() {
	executionsCmd.AddCommand(executionsShowCmd)
}
