package domain

import "context"

// Engine is the backup capability of one storage engine. Implementations own
// their timeouts and their retention window.
type Engine interface {
	Name() string
	CreateBackup(ctx context.Context, name string, strategy Strategy) (backupID string, sizeBytes int64, err error)
	ValidateBackup(ctx context.Context, backupID string) (map[string]any, error)
	CleanupOldBackups(ctx context.Context) ([]string, error)
}

// MetricsSink receives job lifecycle events.
type MetricsSink interface {
	RecordJobStarted(jobID, strategy string)
	RecordJobCompleted(jobID string, durationSeconds float64, totalBytes int64)
	RecordJobFailed(jobID, errorMessage string)
}
