package domain

import "time"

type JobSummary struct {
	Name     string     `json:"name"`
	Enabled  bool       `json:"enabled"`
	LastRun  *time.Time `json:"last_run"`
	NextRun  *time.Time `json:"next_run"`
	Schedule string     `json:"schedule"`
}

type ActiveExecutionSummary struct {
	JobID     string          `json:"job_id"`
	StartedAt time.Time       `json:"started_at"`
	Status    ExecutionStatus `json:"status"`
	Databases []string        `json:"databases"`
}

// StatusReport is the orchestrator's point-in-time view.
type StatusReport struct {
	Jobs             map[string]JobSummary             `json:"jobs"`
	ActiveExecutions map[string]ActiveExecutionSummary `json:"active_executions"`
	RecentExecutions []BackupExecution                 `json:"recent_executions"`
	Collaborators    map[string]bool                   `json:"collaborators"`
	SchedulerRunning bool                              `json:"scheduler_running"`
}
