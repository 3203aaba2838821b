package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/semmidev/custos/internal/domain"
)

// JobStore is the durable job map.
type JobStore interface {
	Load() error
	Create(job domain.BackupJob) (bool, error)
	Get(id string) (domain.BackupJob, bool)
	List() []domain.BackupJob
	Update(id string, fn func(*domain.BackupJob)) (domain.BackupJob, error)
}

// Scheduler owns the cron triggers, one per enabled job.
type Scheduler interface {
	ValidateSpec(spec string) error
	Schedule(jobID, spec string, fire func()) (time.Time, error)
	Unschedule(jobID string)
	Next(jobID string) (time.Time, bool)
	AddFunc(spec string, fn func()) error
	Start()
	Stop()
	Running() bool
}

const recentExecutionsLimit = 10

type OrchestratorOptions struct {
	Engines    []domain.Engine
	Jobs       JobStore
	Executions ExecutionHistory
	Scheduler  Scheduler
	// Metrics is optional.
	Metrics domain.MetricsSink
	// CleanupSchedule registers a retention sweep on Initialize when set.
	CleanupSchedule string
	Logger          Logger
}

// Orchestrator is the public surface of the backup core: job management,
// manual and scheduled execution, retention and status.
type Orchestrator struct {
	jobs            JobStore
	executions      ExecutionHistory
	scheduler       Scheduler
	engines         map[string]domain.Engine
	metrics         domain.MetricsSink
	executor        *Executor
	cleanup         *Cleanup
	cleanupSchedule string
	logger          Logger
	now             func() time.Time
}

func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	engines := make(map[string]domain.Engine, len(opts.Engines))
	for _, e := range opts.Engines {
		engines[e.Name()] = e
	}

	o := &Orchestrator{
		jobs:            opts.Jobs,
		executions:      opts.Executions,
		scheduler:       opts.Scheduler,
		engines:         engines,
		metrics:         opts.Metrics,
		cleanup:         NewCleanup(engines, opts.Logger),
		cleanupSchedule: opts.CleanupSchedule,
		logger:          opts.Logger,
		now:             time.Now,
	}
	o.executor = NewExecutor(engines, opts.Executions, o, opts.Metrics, opts.Logger)
	return o
}

// LoadJobs reads the job document without scheduling anything.
func (o *Orchestrator) LoadJobs() error {
	if err := o.jobs.Load(); err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}
	return nil
}

// Initialize loads jobs, schedules the enabled ones, persists their next
// run times and starts the scheduler. A malformed cron expression is fatal.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	if err := o.LoadJobs(); err != nil {
		return err
	}

	scheduled := 0
	for _, job := range o.jobs.List() {
		if !job.Enabled {
			if job.NextRun != nil {
				if _, err := o.jobs.Update(job.ID, func(j *domain.BackupJob) { j.NextRun = nil }); err != nil {
					return err
				}
			}
			continue
		}
		if _, err := o.schedule(job); err != nil {
			return err
		}
		scheduled++
	}

	if o.cleanupSchedule != "" {
		if err := o.scheduler.AddFunc(o.cleanupSchedule, o.runCleanup); err != nil {
			return fmt.Errorf("schedule cleanup: %w", err)
		}
	}

	o.scheduler.Start()
	o.logger.Infof("Orchestrator started: %d job(s) scheduled, engines: %v", scheduled, o.engineNames())
	return nil
}

// Shutdown stops new scheduled fires. Running executions complete.
func (o *Orchestrator) Shutdown() {
	o.logger.Infof("Stopping scheduler...")
	o.scheduler.Stop()
	o.logger.Infof("Scheduler stopped")
}

// CreateJob validates and stores job, scheduling it when enabled.
func (o *Orchestrator) CreateJob(ctx context.Context, job domain.BackupJob) (domain.BackupJob, error) {
	if err := job.Validate(); err != nil {
		return domain.BackupJob{}, err
	}
	if err := o.scheduler.ValidateSpec(job.Schedule); err != nil {
		return domain.BackupJob{}, fmt.Errorf("%w: %v", domain.ErrInvalidJob, err)
	}

	job = job.Clone()
	job.CreatedAt = o.now().UTC()
	job.LastRun = nil
	job.NextRun = nil

	created, saveErr := o.jobs.Create(job)
	if !created {
		return domain.BackupJob{}, fmt.Errorf("%w: %s", domain.ErrJobExists, job.ID)
	}
	if saveErr != nil {
		o.logger.Errorf("[%s] Failed to persist new job: %v", job.ID, saveErr)
		saveErr = fmt.Errorf("save job %s: %w", job.ID, saveErr)
	}

	o.logger.Infof("[%s] Job created: %s", job.ID, job.Name)

	if !job.Enabled {
		return job, saveErr
	}
	scheduled, err := o.schedule(job)
	return scheduled, multierr.Append(saveErr, err)
}

// EnableJob schedules a paused job. A job whose cron expression cannot be
// scheduled stays disabled.
func (o *Orchestrator) EnableJob(ctx context.Context, jobID string) (domain.BackupJob, error) {
	current, ok := o.jobs.Get(jobID)
	if !ok {
		return domain.BackupJob{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	if err := o.scheduler.ValidateSpec(current.Schedule); err != nil {
		return current, fmt.Errorf("%w: %v", domain.ErrInvalidJob, err)
	}

	job, err := o.jobs.Update(jobID, func(j *domain.BackupJob) { j.Enabled = true })
	if errors.Is(err, domain.ErrJobNotFound) {
		return domain.BackupJob{}, err
	}
	if err != nil {
		o.logger.Errorf("[%s] Failed to persist enable: %v", jobID, err)
	}

	scheduled, serr := o.schedule(job)
	if serr != nil {
		return job, serr
	}
	o.logger.Infof("[%s] Job enabled", jobID)
	return scheduled, err
}

func (o *Orchestrator) DisableJob(ctx context.Context, jobID string) (domain.BackupJob, error) {
	if _, ok := o.jobs.Get(jobID); !ok {
		return domain.BackupJob{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}

	o.scheduler.Unschedule(jobID)
	job, err := o.jobs.Update(jobID, func(j *domain.BackupJob) {
		j.Enabled = false
		j.NextRun = nil
	})
	if err != nil {
		return job, err
	}
	o.logger.Infof("[%s] Job disabled", jobID)
	return job, nil
}

// schedule registers the trigger and stores the next run time.
func (o *Orchestrator) schedule(job domain.BackupJob) (domain.BackupJob, error) {
	jobID := job.ID
	next, err := o.scheduler.Schedule(jobID, job.Schedule, func() { o.runScheduled(jobID) })
	if err != nil {
		return job, fmt.Errorf("schedule job %s: %w", jobID, err)
	}

	updated, err := o.jobs.Update(jobID, func(j *domain.BackupJob) { j.NextRun = &next })
	if err != nil {
		return updated, err
	}
	o.logger.Infof("[%s] Scheduled %q, next run %s", jobID, job.Schedule, next.Format(time.RFC3339))
	return updated, nil
}

// ExecuteJob runs a job now, whether or not it is enabled.
func (o *Orchestrator) ExecuteJob(ctx context.Context, jobID string) (*domain.BackupExecution, error) {
	job, ok := o.jobs.Get(jobID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	return o.executor.Execute(ctx, job)
}

// runScheduled is the cron entry point. Errors are logged only.
func (o *Orchestrator) runScheduled(jobID string) {
	exec, err := o.ExecuteJob(context.Background(), jobID)
	if err != nil {
		o.logger.Errorf("[%s] Scheduled execution failed: %v", jobID, err)
		return
	}
	o.logger.Infof("[%s] Scheduled execution %s: %s", jobID, exec.ID, exec.Status)
}

// RecordRun sets last_run and refreshes next_run from the live trigger.
func (o *Orchestrator) RecordRun(jobID string, startedAt time.Time) error {
	next, scheduled := o.scheduler.Next(jobID)
	_, err := o.jobs.Update(jobID, func(j *domain.BackupJob) {
		t := startedAt
		j.LastRun = &t
		if scheduled {
			j.NextRun = &next
		}
	})
	return err
}

func (o *Orchestrator) Cleanup(ctx context.Context) (map[string][]string, error) {
	return o.cleanup.Execute(ctx)
}

func (o *Orchestrator) runCleanup() {
	if _, err := o.Cleanup(context.Background()); err != nil {
		o.logger.Errorf("Scheduled cleanup finished with errors: %v", err)
	}
}

// Executions returns up to limit recent execution records, newest first.
func (o *Orchestrator) Executions(limit int) ([]domain.BackupExecution, error) {
	return o.executions.Recent(limit)
}

// Execution returns one persisted execution record.
func (o *Orchestrator) Execution(id string) (domain.BackupExecution, error) {
	return o.executions.Get(id)
}

// JobHistory returns up to limit executions of jobID, newest first.
func (o *Orchestrator) JobHistory(jobID string, limit int) ([]domain.BackupExecution, error) {
	if _, ok := o.jobs.Get(jobID); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	return o.executions.ForJob(jobID, limit)
}

func (o *Orchestrator) Jobs() []domain.BackupJob {
	return o.jobs.List()
}

func (o *Orchestrator) Status(ctx context.Context) (domain.StatusReport, error) {
	report := domain.StatusReport{
		Jobs:             make(map[string]domain.JobSummary),
		ActiveExecutions: make(map[string]domain.ActiveExecutionSummary),
		RecentExecutions: []domain.BackupExecution{},
		Collaborators:    make(map[string]bool, len(domain.KnownEngines)+1),
		SchedulerRunning: o.scheduler.Running(),
	}

	for _, job := range o.jobs.List() {
		report.Jobs[job.ID] = domain.JobSummary{
			Name:     job.Name,
			Enabled:  job.Enabled,
			LastRun:  job.LastRun,
			NextRun:  job.NextRun,
			Schedule: job.Schedule,
		}
	}

	for _, exec := range o.executor.Active() {
		report.ActiveExecutions[exec.ID] = domain.ActiveExecutionSummary{
			JobID:     exec.JobID,
			StartedAt: exec.StartedAt,
			Status:    exec.Status,
			Databases: exec.DatabasesBackedUp,
		}
	}

	for _, name := range domain.KnownEngines {
		_, ok := o.engines[name]
		report.Collaborators[name] = ok
	}
	report.Collaborators["metrics"] = o.metrics != nil

	recent, err := o.executions.Recent(recentExecutionsLimit)
	if err != nil {
		return report, fmt.Errorf("load recent executions: %w", err)
	}
	report.RecentExecutions = append(report.RecentExecutions, recent...)
	return report, nil
}

func (o *Orchestrator) engineNames() []string {
	var names []string
	for _, name := range domain.KnownEngines {
		if _, ok := o.engines[name]; ok {
			names = append(names, name)
		}
	}
	return names
}
