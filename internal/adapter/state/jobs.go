package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/semmidev/custos/internal/domain"
)

// JobStore keeps every BackupJob in memory and rewrites the whole JSON
// document on each mutation.
type JobStore struct {
	path string

	// saveMu orders snapshots with writes so the newest state lands last.
	saveMu sync.Mutex
	mu     sync.RWMutex
	jobs map[string]domain.BackupJob
}

func NewJobStore(path string) *JobStore {
	return &JobStore{
		path: path,
		jobs: make(map[string]domain.BackupJob),
	}
}

// Load replaces the in-memory jobs with the document on disk. A missing file
// means no jobs yet; anything unparseable is an error.
func (s *JobStore) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		s.jobs = make(map[string]domain.BackupJob)
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read job document: %w", err)
	}

	var list []domain.BackupJob
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse job document %s: %w", s.path, err)
	}

	jobs := make(map[string]domain.BackupJob, len(list))
	for i, job := range list {
		if job.ID == "" {
			return fmt.Errorf("parse job document %s: job[%d] has no job_id", s.path, i)
		}
		if _, dup := jobs[job.ID]; dup {
			return fmt.Errorf("parse job document %s: duplicate job_id %q", s.path, job.ID)
		}
		jobs[job.ID] = job
	}

	s.mu.Lock()
	s.jobs = jobs
	s.mu.Unlock()
	return nil
}

// Save rewrites the job document.
func (s *JobStore) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	list := s.sortedLocked()
	s.mu.RUnlock()

	return writeJSONAtomic(s.path, list)
}

// Create inserts job and saves. It returns false if the id is taken.
func (s *JobStore) Create(job domain.BackupJob) (bool, error) {
	s.mu.Lock()
	if _, exists := s.jobs[job.ID]; exists {
		s.mu.Unlock()
		return false, nil
	}
	s.jobs[job.ID] = job.Clone()
	s.mu.Unlock()

	return true, s.Save()
}

func (s *JobStore) Get(id string) (domain.BackupJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.BackupJob{}, false
	}
	return job.Clone(), true
}

// List returns a copy of every job ordered by id.
func (s *JobStore) List() []domain.BackupJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

// Update applies fn to the stored job and saves. When saving fails the
// in-memory change is kept and the error is returned.
func (s *JobStore) Update(id string, fn func(*domain.BackupJob)) (domain.BackupJob, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return domain.BackupJob{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	job = job.Clone()
	fn(&job)
	job.ID = id
	s.jobs[id] = job
	s.mu.Unlock()

	if err := s.Save(); err != nil {
		return job.Clone(), fmt.Errorf("save job %s: %w", id, err)
	}
	return job.Clone(), nil
}

func (s *JobStore) sortedLocked() []domain.BackupJob {
	list := make([]domain.BackupJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		list = append(list, job.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
