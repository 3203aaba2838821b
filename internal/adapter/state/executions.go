package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/semmidev/custos/internal/domain"
)

// Logger is used to report unreadable records while listing.
type Logger interface {
	Warnf(template string, args ...interface{})
}

// ExecutionLog stores one JSON file per finished execution, named by its id.
type ExecutionLog struct {
	dir    string
	logger Logger
}

func NewExecutionLog(dir string, logger Logger) (*ExecutionLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create executions directory: %w", err)
	}
	return &ExecutionLog{dir: dir, logger: logger}, nil
}

func (l *ExecutionLog) path(id string) string {
	return filepath.Join(l.dir, id+".json")
}

// Append writes exec once. Records are never overwritten.
func (l *ExecutionLog) Append(exec domain.BackupExecution) error {
	if exec.ID == "" || strings.ContainsAny(exec.ID, `/\`) {
		return fmt.Errorf("invalid execution id %q", exec.ID)
	}
	if exec.Status == domain.ExecutionRunning {
		return fmt.Errorf("execution %s is still running", exec.ID)
	}

	if _, err := os.Stat(l.path(exec.ID)); err == nil {
		return fmt.Errorf("execution %s already recorded", exec.ID)
	}

	if err := writeJSONAtomic(l.path(exec.ID), exec); err != nil {
		return fmt.Errorf("write execution %s: %w", exec.ID, err)
	}
	return nil
}

func (l *ExecutionLog) Get(id string) (domain.BackupExecution, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return domain.BackupExecution{}, fmt.Errorf("invalid execution id %q", id)
	}
	return l.read(l.path(id))
}

// Recent returns up to limit executions, newest first. limit <= 0 means all.
func (l *ExecutionLog) Recent(limit int) ([]domain.BackupExecution, error) {
	return l.list(limit, func(domain.BackupExecution) bool { return true })
}

// ForJob returns up to limit executions of jobID, newest first.
func (l *ExecutionLog) ForJob(jobID string, limit int) ([]domain.BackupExecution, error) {
	return l.list(limit, func(e domain.BackupExecution) bool { return e.JobID == jobID })
}

func (l *ExecutionLog) list(limit int, keep func(domain.BackupExecution) bool) ([]domain.BackupExecution, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read executions directory: %w", err)
	}

	var out []domain.BackupExecution
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		exec, err := l.read(filepath.Join(l.dir, name))
		if err != nil {
			if l.logger != nil {
				l.logger.Warnf("Skipping unreadable execution record %s: %v", name, err)
			}
			continue
		}
		if keep(exec) {
			out = append(out, exec)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *ExecutionLog) read(path string) (domain.BackupExecution, error) {
	var exec domain.BackupExecution

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return exec, fmt.Errorf("%w: %s", domain.ErrExecutionNotFound, strings.TrimSuffix(filepath.Base(path), ".json"))
	}
	if err != nil {
		return exec, fmt.Errorf("read execution record: %w", err)
	}
	if err := json.Unmarshal(data, &exec); err != nil {
		return exec, fmt.Errorf("parse execution record: %w", err)
	}
	return exec, nil
}
