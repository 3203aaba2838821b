package domain

import (
	"fmt"
	"strings"
	"time"
)

// Engine names understood by the orchestrator.
const (
	EnginePostgres = "postgres"
	EngineRedis    = "redis"
	EngineKuzu     = "kuzu"
)

// KnownEngines lists every engine a job may reference.
var KnownEngines = []string{EnginePostgres, EngineRedis, EngineKuzu}

// IsKnownEngine reports whether name is one of KnownEngines.
func IsKnownEngine(name string) bool {
	for _, e := range KnownEngines {
		if e == name {
			return true
		}
	}
	return false
}

type Strategy string

const (
	StrategyFull         Strategy = "full"
	StrategyIncremental  Strategy = "incremental"
	StrategyDifferential Strategy = "differential"
)

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyFull, StrategyIncremental, StrategyDifferential:
		return st, nil
	default:
		return "", fmt.Errorf("unknown backup strategy %q", s)
	}
}

func (s Strategy) MarshalText() ([]byte, error) {
	if _, err := ParseStrategy(string(s)); err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return p, nil
	default:
		return "", fmt.Errorf("unknown job priority %q", s)
	}
}

func (p Priority) MarshalText() ([]byte, error) {
	if _, err := ParsePriority(string(p)); err != nil {
		return nil, err
	}
	return []byte(p), nil
}

func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// BackupJob is a persistent backup policy covering one or more engines.
type BackupJob struct {
	ID            string     `json:"job_id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Strategy      Strategy   `json:"strategy"`
	Priority      Priority   `json:"priority"`
	Databases     []string   `json:"databases"`
	Schedule      string     `json:"schedule_cron"`
	RetentionDays int        `json:"retention_days"`
	Enabled       bool       `json:"enabled"`
	CreatedAt     time.Time  `json:"created_at"`
	LastRun       *time.Time `json:"last_run"`
	NextRun       *time.Time `json:"next_run"`
}

// Validate checks the fields a caller controls. The cron expression is
// checked by the scheduler when the job is registered.
func (j BackupJob) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return fmt.Errorf("%w: job_id is required", ErrInvalidJob)
	}
	if strings.ContainsAny(j.ID, `/\`) {
		return fmt.Errorf("%w: job_id %q must not contain path separators", ErrInvalidJob, j.ID)
	}
	if _, err := ParseStrategy(string(j.Strategy)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if _, err := ParsePriority(string(j.Priority)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if len(j.Databases) == 0 {
		return fmt.Errorf("%w: at least one database is required", ErrInvalidJob)
	}
	seen := make(map[string]bool, len(j.Databases))
	for _, db := range j.Databases {
		if !IsKnownEngine(db) {
			return fmt.Errorf("%w: %q", ErrUnknownEngine, db)
		}
		if seen[db] {
			return fmt.Errorf("%w: database %q listed twice", ErrInvalidJob, db)
		}
		seen[db] = true
	}
	if strings.TrimSpace(j.Schedule) == "" {
		return fmt.Errorf("%w: schedule_cron is required", ErrInvalidJob)
	}
	if j.RetentionDays < 0 {
		return fmt.Errorf("%w: retention_days must be >= 0", ErrInvalidJob)
	}
	return nil
}

// Clone returns a deep copy so callers never share slices or timestamps with the store.
func (j BackupJob) Clone() BackupJob {
	c := j
	c.Databases = append([]string(nil), j.Databases...)
	if j.LastRun != nil {
		t := *j.LastRun
		c.LastRun = &t
	}
	if j.NextRun != nil {
		t := *j.NextRun
		c.NextRun = &t
	}
	return c
}
