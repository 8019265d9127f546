// Package scheduler fires workflows on cron expressions. Schedules live in
// an in-process registry; each due schedule is handed to a Runner, which
// queues the actual run elsewhere.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/awa-io/awa/pkg/schema"
)

// DefaultTickInterval is how often the registry is checked for due
// schedules.
const DefaultTickInterval = 30 * time.Second

// Schedule is a registered cron entry: the workflow document to run and
// the data every firing starts with.
type Schedule struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	CronExpr    string          `json:"cron_expr"`
	Workflow    schema.Workflow `json:"workflow"`
	InitialData map[string]any  `json:"initial_data,omitempty"`
	NextRun     time.Time       `json:"next_run"`
	LastRun     *time.Time      `json:"last_run,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`

	timetable cron.Schedule // parsed CronExpr, set by Add
}

// Runner accepts due schedules for execution. Implemented by the service
// layer; declared here so the scheduler carries no dependency on it.
type Runner interface {
	SubmitScheduled(ctx context.Context, sched Schedule) error
}

// Scheduler owns the schedule registry and the tick loop.
type Scheduler struct {
	runner   Runner
	parser   cron.Parser
	interval time.Duration
	log      *slog.Logger

	mu        sync.Mutex
	schedules map[string]*Schedule
	cancel    context.CancelFunc
	done      chan struct{}

	fires sync.WaitGroup // outstanding submissions

	inflightMu sync.Mutex
	inflight   map[string]struct{} // schedule IDs mid-submission (dedup)
}

// New creates a scheduler that fires due schedules through runner every
// interval. A non-positive interval selects DefaultTickInterval.
func New(runner Runner, interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		runner:    runner,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		interval:  interval,
		log:       log,
		schedules: make(map[string]*Schedule),
		inflight:  make(map[string]struct{}),
	}
}

// Add registers a schedule. The cron expression is validated against the
// standard 5-field format and the first firing time is computed from now.
func (s *Scheduler) Add(name, cronExpr string, workflow schema.Workflow, initialData map[string]any) (Schedule, error) {
	timetable, err := s.parser.Parse(cronExpr)
	if err != nil {
		return Schedule{}, schema.NewErrorf(schema.ErrCodeValidation,
			"parse cron expression %q", cronExpr).WithCause(err)
	}

	now := time.Now().UTC()
	sched := &Schedule{
		ID:          uuid.NewString(),
		Name:        name,
		CronExpr:    cronExpr,
		Workflow:    workflow,
		InitialData: initialData,
		NextRun:     timetable.Next(now),
		CreatedAt:   now,
		timetable:   timetable,
	}

	s.mu.Lock()
	s.schedules[sched.ID] = sched
	s.mu.Unlock()

	s.log.Info("schedule added",
		"schedule_id", sched.ID,
		"name", name,
		"cron", cronExpr,
		"next_run", sched.NextRun)
	return *sched, nil
}

// Remove deletes a schedule by id.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "schedule %s not found", id)
	}
	delete(s.schedules, id)
	return nil
}

// Get returns a schedule by id.
func (s *Scheduler) Get(id string) (Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[id]
	if !ok {
		return Schedule{}, schema.NewErrorf(schema.ErrCodeNotFound, "schedule %s not found", id)
	}
	return *sched, nil
}

// List returns all schedules in creation order.
func (s *Scheduler) List() []Schedule {
	s.mu.Lock()
	out := make([]Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, *sched)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Start launches the tick loop. It fails if the scheduler is already
// running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return schema.NewError(schema.ErrCodeConflict, "scheduler already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(loopCtx)
	s.log.Info("scheduler started", "interval", s.interval)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// First check immediately; schedules added before Start should not
	// wait a full interval.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick fires every due schedule. Submissions run off the tick goroutine so
// a saturated worker pool delays only the schedules behind it, and a
// schedule whose previous firing is still being submitted is skipped.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()
	for _, sched := range s.collectDue(now) {
		if !s.tryAcquire(sched.ID) {
			continue
		}
		s.fires.Add(1)
		go func(sched Schedule) {
			defer s.fires.Done()
			defer s.release(sched.ID)
			if err := s.runner.SubmitScheduled(ctx, sched); err != nil {
				s.log.ErrorContext(ctx, "submit scheduled run",
					"schedule_id", sched.ID,
					"schedule_name", sched.Name,
					"error", err)
			}
		}(sched)
	}
}

// collectDue snapshots the due schedules and advances their bookkeeping in
// one pass, so a schedule is due at most once per cron firing no matter
// how often ticks happen.
func (s *Scheduler) collectDue(now time.Time) []Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Schedule
	for _, sched := range s.schedules {
		if sched.NextRun.After(now) {
			continue
		}
		due = append(due, *sched)
		fired := now
		sched.LastRun = &fired
		sched.NextRun = sched.timetable.Next(now)
	}
	return due
}

// tryAcquire marks a schedule as mid-submission. Returns false when it
// already is.
func (s *Scheduler) tryAcquire(id string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[id]; ok {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, id)
}

// Stop halts the tick loop and waits for it and any outstanding
// submissions to finish. Runs already accepted by the worker pool are not
// waited for; they drain with the pool.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.fires.Wait()
	s.log.Info("scheduler stopped")
}
