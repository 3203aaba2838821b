package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semmidev/custos/internal/domain"
)

var (
	addID            string
	addName          string
	addDescription   string
	addStrategy      string
	addPriority      string
	addDatabases     []string
	addSchedule      string
	addRetentionDays int
	addDisabled      bool

	historyLimit int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage backup jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		application, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer application.Shutdown()

		jobs := application.Orchestrator().Jobs()
		if len(jobs) == 0 {
			fmt.Println("No jobs defined.")
			return nil
		}

		fmt.Printf("%-20s %-8s %-13s %-20s %-22s %s\n", "ID", "ENABLED", "STRATEGY", "SCHEDULE", "LAST RUN", "DATABASES")
		for _, job := range jobs {
			fmt.Printf("%-20s %-8t %-13s %-20s %-22s %s\n",
				job.ID, job.Enabled, job.Strategy, job.Schedule, formatTime(job.LastRun), strings.Join(job.Databases, ","))
		}
		return nil
	},
}

var jobsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a job",
	Long: `Create a backup job.

Examples:
  custos jobs add --id nightly --databases postgres,redis,kuzu --schedule "0 2 * * *"
  custos jobs add --id hourly-redis --databases redis --schedule "@hourly" --strategy incremental`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		strategy, err := domain.ParseStrategy(addStrategy)
		if err != nil {
			return err
		}
		priority, err := domain.ParsePriority(addPriority)
		if err != nil {
			return err
		}

		application, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer application.Shutdown()

		name := addName
		if name == "" {
			name = addID
		}

		job, err := application.Orchestrator().CreateJob(ctx, domain.BackupJob{
			ID:            addID,
			Name:          name,
			Description:   addDescription,
			Strategy:      strategy,
			Priority:      priority,
			Databases:     addDatabases,
			Schedule:      addSchedule,
			RetentionDays: addRetentionDays,
			Enabled:       !addDisabled,
		})
		if err != nil {
			return err
		}
		return printJSON(job)
	},
}

var jobsEnableCmd = &cobra.Command{
	Use:   "enable <job-id>",
	Short: "Enable a job so it is scheduled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		application, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer application.Shutdown()

		job, err := application.Orchestrator().EnableJob(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Job %s enabled, next run %s\n", job.ID, formatTime(job.NextRun))
		return nil
	},
}

var jobsDisableCmd = &cobra.Command{
	Use:   "disable <job-id>",
	Short: "Disable a job; it can still be run manually",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		application, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer application.Shutdown()

		job, err := application.Orchestrator().DisableJob(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Job %s disabled\n", job.ID)
		return nil
	},
}

var jobsHistoryCmd = &cobra.Command{
	Use:   "history <job-id>",
	Short: "List recent executions of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		application, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer application.Shutdown()

		history, err := application.Orchestrator().JobHistory(args[0], historyLimit)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Printf("No executions recorded for %s.\n", args[0])
			return nil
		}

		fmt.Printf("%-40s %-16s %-20s %10s %14s %s\n", "EXECUTION", "STATUS", "STARTED", "DURATION", "SIZE", "DATABASES")
		for _, exec := range history {
			fmt.Printf("%-40s %-16s %-20s %9.1fs %14d %s\n",
				exec.ID, exec.Status, formatTime(&exec.StartedAt), exec.DurationSeconds, exec.TotalSizeBytes, strings.Join(exec.DatabasesBackedUp, ","))
		}
		return nil
	},
}

func init() {
	jobsAddCmd.Flags().StringVar(&addID, "id", "", "job id (required)")
	jobsAddCmd.Flags().StringVar(&addName, "name", "", "display name, defaults to the id")
	jobsAddCmd.Flags().StringVar(&addDescription, "description", "", "free-form description")
	jobsAddCmd.Flags().StringVar(&addStrategy, "strategy", "full", "full, incremental or differential")
	jobsAddCmd.Flags().StringVar(&addPriority, "priority", "medium", "low, medium, high or critical")
	jobsAddCmd.Flags().StringSliceVar(&addDatabases, "databases", nil, "engines to back up: postgres, redis, kuzu")
	jobsAddCmd.Flags().StringVar(&addSchedule, "schedule", "", "cron expression, five or six fields, or a descriptor")
	jobsAddCmd.Flags().IntVar(&addRetentionDays, "retention-days", 7, "retention recorded on the job")
	jobsAddCmd.Flags().BoolVar(&addDisabled, "disabled", false, "create the job disabled")
	_ = jobsAddCmd.MarkFlagRequired("id")
	_ = jobsAddCmd.MarkFlagRequired("databases")
	_ = jobsAddCmd.MarkFlagRequired("schedule")

	jobsHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of executions, 0 for all")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsAddCmd)
	jobsCmd.AddCommand(jobsEnableCmd)
	jobsCmd.AddCommand(jobsDisableCmd)
	jobsCmd.AddCommand(jobsHistoryCmd)
}
