package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/semmidev/custos/internal/domain"
)

type fakeEngine struct {
	name     string
	create   func(ctx context.Context, name string) (string, int64, error)
	validate func(ctx context.Context, id string) (map[string]any, error)
	cleanup  func(ctx context.Context) ([]string, error)

	mu        sync.Mutex
	names     []string
	validated []string
}

func okEngine(name, id string, size int64) *fakeEngine {
	return &fakeEngine{
		name: name,
		create: func(context.Context, string) (string, int64, error) {
			return id, size, nil
		},
	}
}

func failingEngine(name, msg string) *fakeEngine {
	return &fakeEngine{
		name: name,
		create: func(context.Context, string) (string, int64, error) {
			return "", 0, errors.New(msg)
		},
	}
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) CreateBackup(ctx context.Context, name string, strategy domain.Strategy) (string, int64, error) {
	f.mu.Lock()
	f.names = append(f.names, name)
	f.mu.Unlock()
	return f.create(ctx, name)
}

func (f *fakeEngine) ValidateBackup(ctx context.Context, id string) (map[string]any, error) {
	f.mu.Lock()
	f.validated = append(f.validated, id)
	f.mu.Unlock()
	if f.validate != nil {
		return f.validate(ctx, id)
	}
	return map[string]any{"valid": true, "backup_id": id}, nil
}

func (f *fakeEngine) CleanupOldBackups(ctx context.Context) ([]string, error) {
	if f.cleanup != nil {
		return f.cleanup(ctx)
	}
	return []string{}, nil
}

func engineMap(engines ...*fakeEngine) map[string]domain.Engine {
	m := make(map[string]domain.Engine, len(engines))
	for _, e := range engines {
		m[e.name] = e
	}
	return m
}

type event struct {
	kind   string
	jobID  string
	detail string
}

type fakeSink struct {
	mu     sync.Mutex
	events []event
}

func (f *fakeSink) RecordJobStarted(jobID, strategy string) {
	f.record(event{"started", jobID, strategy})
}

func (f *fakeSink) RecordJobCompleted(jobID string, durationSeconds float64, totalBytes int64) {
	f.record(event{"completed", jobID, fmt.Sprint(totalBytes)})
}

func (f *fakeSink) RecordJobFailed(jobID, errorMessage string) {
	f.record(event{"failed", jobID, errorMessage})
}

func (f *fakeSink) record(e event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeSink) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kinds []string
	for _, e := range f.events {
		kinds = append(kinds, e.kind)
	}
	return kinds
}

type memoryLog struct {
	mu      sync.Mutex
	records []domain.BackupExecution
	err     error
}

func (m *memoryLog) Append(exec domain.BackupExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, exec)
	return nil
}

func (m *memoryLog) Recent(limit int) ([]domain.BackupExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BackupExecution(nil), m.records...), nil
}

func (m *memoryLog) Get(id string) (domain.BackupExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.BackupExecution{}, domain.ErrExecutionNotFound
}

func (m *memoryLog) ForJob(jobID string, limit int) ([]domain.BackupExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BackupExecution
	for _, r := range m.records {
		if r.JobID == jobID {
			out = append(out, r)
		}
	}
	return out, nil
}

type runRecord struct {
	jobID     string
	startedAt time.Time
}

type fakeRuns struct {
	mu   sync.Mutex
	runs []runRecord
	err  error
}

func (f *fakeRuns) RecordRun(jobID string, startedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, runRecord{jobID, startedAt})
	return f.err
}

// stepClock advances one second on every call.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock(start time.Time) *stepClock {
	return &stepClock{t: start.Add(-time.Second)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}

func testJob(id string, databases ...string) domain.BackupJob {
	return domain.BackupJob{
		ID:        id,
		Name:      "Job " + id,
		Strategy:  domain.StrategyFull,
		Priority:  domain.PriorityHigh,
		Databases: databases,
		Schedule:  "0 2 * * *",
		Enabled:   true,
	}
}
