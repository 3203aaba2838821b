package usecase

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/semmidev/custos/internal/domain"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// ExecutionLog is where terminal execution records are written.
type ExecutionLog interface {
	Append(exec domain.BackupExecution) error
	Recent(limit int) ([]domain.BackupExecution, error)
}

// ExecutionHistory adds lookups by id and by job to an ExecutionLog.
type ExecutionHistory interface {
	ExecutionLog
	Get(id string) (domain.BackupExecution, error)
	ForJob(jobID string, limit int) ([]domain.BackupExecution, error)
}

// RunRecorder stamps a job's last_run once an execution has finished.
type RunRecorder interface {
	RecordRun(jobID string, startedAt time.Time) error
}

const timestampLayout = "20060102_150405"

// Executor runs one job across its engines and records the outcome.
type Executor struct {
	engines   map[string]domain.Engine
	validator *Validator
	log       ExecutionLog
	runs      RunRecorder
	metrics   domain.MetricsSink
	logger    Logger

	now   func() time.Time
	newID func(jobID string, startedAt time.Time) string

	mu     sync.Mutex
	active map[string]domain.BackupExecution
}

func NewExecutor(
	engines map[string]domain.Engine,
	log ExecutionLog,
	runs RunRecorder,
	metrics domain.MetricsSink,
	logger Logger,
) *Executor {
	if metrics == nil {
		metrics = NopSink{}
	}
	return &Executor{
		engines:   engines,
		validator: NewValidator(engines, logger),
		log:       log,
		runs:      runs,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		newID:     newExecutionID,
		active:    make(map[string]domain.BackupExecution),
	}
}

// newExecutionID is job id, start second and a random suffix so two runs
// started in the same second never share an id.
func newExecutionID(jobID string, startedAt time.Time) string {
	u := uuid.New()
	return fmt.Sprintf("%s_%s_%s", jobID, startedAt.Format(timestampLayout), hex.EncodeToString(u[:4]))
}

// Execute runs job to a terminal state. Engine failures are recorded on the
// execution, not returned. The error is non-nil when the run was aborted by a
// panic (wrapping domain.ErrExecutionAborted) or when the outcome could not
// be persisted; the terminal record is returned in both cases.
func (uc *Executor) Execute(ctx context.Context, job domain.BackupJob) (*domain.BackupExecution, error) {
	startedAt := uc.now().UTC()
	exec := &domain.BackupExecution{
		ID:                uc.newID(job.ID, startedAt),
		JobID:             job.ID,
		StartedAt:         startedAt,
		Status:            domain.ExecutionRunning,
		DatabasesBackedUp: []string{},
		BackupIDs:         make(map[string]string),
	}

	uc.publish(exec)
	uc.metrics.RecordJobStarted(job.ID, string(job.Strategy))
	uc.logger.Infof("[%s] Starting execution %s: %s", job.ID, exec.ID, strings.Join(job.Databases, ", "))

	abortErr := uc.run(ctx, job, exec)
	if abortErr != nil {
		uc.logger.Errorf("[%s] Execution %s aborted: %v", job.ID, exec.ID, abortErr)
		exec.Status = domain.ExecutionFailed
		exec.ValidationResults = nil
		appendError(exec, abortErr.Error())
	}

	completedAt := uc.now().UTC()
	exec.CompletedAt = &completedAt
	exec.DurationSeconds = completedAt.Sub(startedAt).Seconds()

	var persistErr error
	if err := uc.runs.RecordRun(job.ID, startedAt); err != nil {
		uc.logger.Errorf("[%s] Failed to record last run: %v", job.ID, err)
		persistErr = multierr.Append(persistErr, fmt.Errorf("record last run: %w", err))
	}
	if err := uc.log.Append(exec.Clone()); err != nil {
		uc.logger.Errorf("[%s] Failed to persist execution %s: %v", job.ID, exec.ID, err)
		persistErr = multierr.Append(persistErr, fmt.Errorf("persist execution: %w", err))
	}

	if exec.Status.Succeeded() {
		uc.metrics.RecordJobCompleted(job.ID, exec.DurationSeconds, exec.TotalSizeBytes)
	} else {
		uc.metrics.RecordJobFailed(job.ID, exec.ErrorMessage)
	}

	uc.retire(exec.ID)

	uc.logger.Infof("[%s] Execution %s finished in %.1fs: %s, %.2f MB",
		job.ID, exec.ID, exec.DurationSeconds, exec.Status, float64(exec.TotalSizeBytes)/(1024*1024))

	return exec, multierr.Append(abortErr, persistErr)
}

// run performs the backup, aggregation and validation steps. A panic in any
// of them is returned as an error.
func (uc *Executor) run(ctx context.Context, job domain.BackupJob, exec *domain.BackupExecution) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", domain.ErrExecutionAborted, r)
		}
	}()

	failures := 0
	for _, name := range job.Databases {
		engine, ok := uc.engines[name]
		if !ok {
			uc.logger.Warnf("[%s] Engine %s is not configured, skipping", job.ID, name)
			continue
		}

		backupName := fmt.Sprintf("%s_%s_%s", job.ID, name, exec.StartedAt.Format(timestampLayout))
		uc.logger.Infof("[%s] Backing up %s as %s", job.ID, name, backupName)

		backupID, size, err := engine.CreateBackup(ctx, backupName, job.Strategy)
		if err != nil {
			uc.logger.Errorf("[%s] %s backup failed: %v", job.ID, name, err)
			appendError(exec, fmt.Sprintf("%s backup failed: %v", name, err))
			failures++
			uc.publish(exec)
			continue
		}

		exec.BackupIDs[name] = backupID
		exec.TotalSizeBytes += size
		exec.DatabasesBackedUp = append(exec.DatabasesBackedUp, name)
		uc.publish(exec)
	}

	exec.Status = aggregateStatus(len(exec.DatabasesBackedUp), failures)

	if exec.Status.Succeeded() {
		exec.ValidationResults = uc.validator.Validate(ctx, exec.BackupIDs)
	}
	return nil
}

func aggregateStatus(succeeded, failed int) domain.ExecutionStatus {
	switch {
	case succeeded == 0:
		return domain.ExecutionFailed
	case failed > 0:
		return domain.ExecutionPartialSuccess
	default:
		return domain.ExecutionSuccess
	}
}

func appendError(exec *domain.BackupExecution, fragment string) {
	if exec.ErrorMessage == "" {
		exec.ErrorMessage = fragment
		return
	}
	exec.ErrorMessage += "; " + fragment
}

func (uc *Executor) publish(exec *domain.BackupExecution) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.active[exec.ID] = exec.Clone()
}

func (uc *Executor) retire(id string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	delete(uc.active, id)
}

// Active returns the running executions ordered by start time.
func (uc *Executor) Active() []domain.BackupExecution {
	uc.mu.Lock()
	list := make([]domain.BackupExecution, 0, len(uc.active))
	for _, exec := range uc.active {
		list = append(list, exec.Clone())
	}
	uc.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].StartedAt.Before(list[j].StartedAt)
	})
	return list
}
