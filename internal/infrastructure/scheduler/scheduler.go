package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Logger is the subset of the sugared zap logger the scheduler needs.
type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

// Scheduler owns one cron entry per job id. Entries for the same job may
// overlap: a trigger fires even if the previous run is still going.
type Scheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
	running bool
}

// Parser accepts five-field and six-field (seconds first) expressions and descriptors.
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSpec validates a cron expression.
func ParseSpec(spec string) (cron.Schedule, error) {
	sched, err := Parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return sched, nil
}

func New(logger Logger) *Scheduler {
	cl := cronLogger{log: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		entries: make(map[string]cron.EntryID),
	}
}

// Schedule registers fire under jobID, replacing any earlier entry, and
// returns the next time it will fire.
func (s *Scheduler) Schedule(jobID, spec string, fire func()) (time.Time, error) {
	sched, err := ParseSpec(spec)
	if err != nil {
		return time.Time{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.entries[jobID]; ok {
		s.cron.Remove(prev)
	}
	s.entries[jobID] = s.cron.Schedule(sched, cron.FuncJob(fire))

	return sched.Next(time.Now()), nil
}

// Unschedule removes the entry for jobID. Unknown ids are ignored.
func (s *Scheduler) Unschedule(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[jobID]; ok {
		s.cron.Remove(id)
		delete(s.entries, jobID)
	}
}

// ValidateSpec reports whether spec would be accepted by Schedule.
func (s *Scheduler) ValidateSpec(spec string) error {
	_, err := ParseSpec(spec)
	return err
}

// AddFunc registers an unkeyed task such as the retention sweep.
func (s *Scheduler) AddFunc(spec string, fn func()) error {
	sched, err := ParseSpec(spec)
	if err != nil {
		return err
	}
	s.cron.Schedule(sched, cron.FuncJob(fn))
	return nil
}

// Next returns the next fire time of jobID, if it is scheduled.
func (s *Scheduler) Next(jobID string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[jobID]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return time.Time{}, false
	}
	if entry.Next.IsZero() {
		return entry.Schedule.Next(time.Now()), true
	}
	return entry.Next, true
}

// Scheduled returns the number of keyed entries.
func (s *Scheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
}

// Stop prevents new fires and waits for running callbacks to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	log Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	// cron logs every wake-up at info; keep those out of the main log.
	if msg == "wake" {
		return
	}
	l.log.Infow("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
