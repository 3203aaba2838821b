package domain

import (
	"maps"
	"time"
)

type ExecutionStatus string

const (
	ExecutionRunning        ExecutionStatus = "running"
	ExecutionSuccess        ExecutionStatus = "success"
	ExecutionPartialSuccess ExecutionStatus = "partial_success"
	ExecutionFailed         ExecutionStatus = "failed"
)

// Succeeded reports whether at least one engine produced a backup.
func (s ExecutionStatus) Succeeded() bool {
	return s == ExecutionSuccess || s == ExecutionPartialSuccess
}

// BackupExecution records one run of one job. It is immutable once persisted.
type BackupExecution struct {
	ID                string                    `json:"execution_id"`
	JobID             string                    `json:"job_id"`
	StartedAt         time.Time                 `json:"started_at"`
	CompletedAt       *time.Time                `json:"completed_at"`
	DurationSeconds   float64                   `json:"duration_seconds"`
	Status            ExecutionStatus           `json:"status"`
	DatabasesBackedUp []string                  `json:"databases_backed_up"`
	BackupIDs         map[string]string         `json:"backup_ids"`
	TotalSizeBytes    int64                     `json:"total_size_bytes"`
	ErrorMessage      string                    `json:"error_message,omitempty"`
	ValidationResults map[string]map[string]any `json:"validation_results,omitempty"`
}

func (e BackupExecution) Clone() BackupExecution {
	c := e
	c.DatabasesBackedUp = append([]string(nil), e.DatabasesBackedUp...)
	c.BackupIDs = maps.Clone(e.BackupIDs)
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}
	if e.ValidationResults != nil {
		c.ValidationResults = make(map[string]map[string]any, len(e.ValidationResults))
		for k, v := range e.ValidationResults {
			c.ValidationResults[k] = maps.Clone(v)
		}
	}
	return c
}
