// Package service coordinates workflow runs above the engine. It launches
// runs, archives their results, keeps engines reachable while they wait on
// human tasks, routes task completions back into the suspended run, and
// accepts scheduled submissions through a bounded worker pool.
package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/awa-io/awa/internal/actors"
	"github.com/awa-io/awa/internal/engine"
	"github.com/awa-io/awa/internal/scheduler"
	"github.com/awa-io/awa/internal/store"
	"github.com/awa-io/awa/internal/streaming"
	"github.com/awa-io/awa/internal/tasks"
	"github.com/awa-io/awa/internal/validation"
	"github.com/awa-io/awa/pkg/schema"
)

// DefaultPoolSize bounds concurrent scheduled runs.
const DefaultPoolSize = 10

type config struct {
	queue     tasks.Queue
	archive   *store.LibSQLStore
	hub       streaming.EventHub
	registry  *actors.Registry
	validator *validation.WorkflowValidator
	log       *slog.Logger
	poolSize  int
}

// Option configures a Service.
type Option func(*config)

// WithQueue sets the human task queue shared by every run.
func WithQueue(q tasks.Queue) Option {
	return func(c *config) { c.queue = q }
}

// WithArchive sets the durable store for run records. When no queue is
// configured the archive doubles as the task queue, so tasks and runs land
// in the same database.
func WithArchive(st *store.LibSQLStore) Option {
	return func(c *config) { c.archive = st }
}

// WithHub sets the event hub runs publish to.
func WithHub(h streaming.EventHub) Option {
	return func(c *config) { c.hub = h }
}

// WithRegistry sets the actor registry used by every run.
func WithRegistry(r *actors.Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithValidator sets the workflow validator.
func WithValidator(v *validation.WorkflowValidator) Option {
	return func(c *config) { c.validator = v }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithPoolSize bounds the scheduled-run worker pool.
func WithPoolSize(n int) Option {
	return func(c *config) { c.poolSize = n }
}

// Service owns the long-lived collaborators shared by every run: the task
// queue, the run archive, the event hub, the actor registry, and the
// validator. Runs suspended on human tasks stay registered so a later task
// completion can find and resume them.
type Service struct {
	queue     tasks.Queue
	archive   *store.LibSQLStore
	hub       streaming.EventHub
	registry  *actors.Registry
	validator *validation.WorkflowValidator
	log       *slog.Logger
	pool      *WorkerPool

	mu   sync.Mutex
	live map[string]*engine.Engine // run_id -> engine waiting on human tasks
}

// New builds a Service. Collaborators not supplied through options fall
// back to in-memory implementations, which is enough for a single-process
// deployment without persistence.
func New(opts ...Option) (*Service, error) {
	cfg := config{poolSize: DefaultPoolSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = slog.Default()
	}
	if cfg.queue == nil {
		if cfg.archive != nil {
			cfg.queue = cfg.archive
		} else {
			cfg.queue = tasks.NewMemoryQueue()
		}
	}
	if cfg.hub == nil {
		cfg.hub = streaming.NewMemoryHub()
	}
	if cfg.registry == nil {
		reg, err := actors.DefaultRegistry(cfg.queue, cfg.log)
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeConfiguration, "build default actor registry").WithCause(err)
		}
		cfg.registry = reg
	}
	if cfg.validator == nil {
		v, err := validation.New()
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeConfiguration, "compile workflow schema").WithCause(err)
		}
		cfg.validator = v
	}

	return &Service{
		queue:     cfg.queue,
		archive:   cfg.archive,
		hub:       cfg.hub,
		registry:  cfg.registry,
		validator: cfg.validator,
		log:       cfg.log,
		pool:      NewWorkerPool(cfg.poolSize),
		live:      make(map[string]*engine.Engine),
	}, nil
}

// Hub exposes the event hub for subscribers such as the websocket handler.
func (s *Service) Hub() streaming.EventHub { return s.hub }

// ValidateWorkflow checks a workflow document without executing anything.
func (s *Service) ValidateWorkflow(workflow schema.Workflow) *schema.ValidationResult {
	return s.validator.Validate(workflow)
}

// RunWorkflow validates and runs a workflow until it settles. A run that
// suspends on human tasks stays registered here so CompleteTask can resume
// it; everything else is archived and forgotten.
func (s *Service) RunWorkflow(ctx context.Context, workflow schema.Workflow, initialData map[string]any) (*schema.RunResult, error) {
	eng, err := engine.New(workflow,
		engine.WithQueue(s.queue),
		engine.WithRegistry(s.registry),
		engine.WithHub(s.hub),
		engine.WithLogger(s.log),
		engine.WithValidator(s.validator),
	)
	if err != nil {
		return nil, err
	}

	result, runErr := eng.Run(ctx, initialData)
	s.settle(ctx, eng)
	return result, runErr
}

// RunWorkflowDoc parses a JSON or YAML workflow document and runs it.
func (s *Service) RunWorkflowDoc(ctx context.Context, doc []byte, initialData map[string]any) (*schema.RunResult, error) {
	workflow, err := schema.ParseWorkflow(doc)
	if err != nil {
		return nil, err
	}
	return s.RunWorkflow(ctx, workflow, initialData)
}

// settle records the engine's current snapshot and updates the live
// registry. Archive failures are logged, not propagated; the in-process
// result is already in the caller's hands.
func (s *Service) settle(ctx context.Context, eng *engine.Engine) {
	result := eng.Result()

	s.mu.Lock()
	if result.Status == schema.EngineWaitingHuman {
		s.live[eng.RunID()] = eng
	} else {
		delete(s.live, eng.RunID())
	}
	s.mu.Unlock()

	if s.archive == nil {
		return
	}
	if err := s.archive.SaveRun(ctx, store.NewRunRecord(eng.Workflow().Name, result)); err != nil {
		s.log.ErrorContext(ctx, "archive run",
			"run_id", result.RunID,
			"error", err)
	}
}

// GetRun returns the freshest snapshot of a run: the live engine if it is
// still waiting on tasks, otherwise the archived record.
func (s *Service) GetRun(ctx context.Context, runID string) (*store.RunRecord, error) {
	s.mu.Lock()
	eng, ok := s.live[runID]
	s.mu.Unlock()
	if ok {
		return store.NewRunRecord(eng.Workflow().Name, eng.Result()), nil
	}

	if s.archive == nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "run %s not found", runID)
	}
	return s.archive.GetRun(ctx, runID)
}

// ListRuns returns run records, newest first. With an archive configured
// the archive is authoritative; waiting runs are archived every time they
// settle, so they appear there too. Without one the listing covers only
// runs currently waiting on human tasks.
func (s *Service) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.RunRecord, error) {
	if s.archive != nil {
		return s.archive.ListRuns(ctx, filter)
	}

	s.mu.Lock()
	records := make([]*store.RunRecord, 0, len(s.live))
	for _, eng := range s.live {
		rec := store.NewRunRecord(eng.Workflow().Name, eng.Result())
		if filter.WorkflowID != "" && rec.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.Status != "" && string(rec.Status) != filter.Status {
			continue
		}
		records = append(records, rec)
	}
	s.mu.Unlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(records) {
			return []*store.RunRecord{}, nil
		}
		records = records[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(records) {
		records = records[:filter.Limit]
	}
	return records, nil
}

// RunContexts returns the shared context snapshots of a run. Live runs are
// read straight from their context manager; settled runs fall back to the
// contexts captured in the archived result.
func (s *Service) RunContexts(ctx context.Context, runID string) (map[string]map[string]any, error) {
	s.mu.Lock()
	eng, ok := s.live[runID]
	s.mu.Unlock()
	if ok {
		return eng.Contexts(), nil
	}

	rec, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if rec.Result == nil {
		return map[string]map[string]any{}, nil
	}
	return rec.Result.Contexts, nil
}

// ListTasks returns pending human tasks, optionally narrowed to one
// assignee. The queue itself partitions by status; assignee filtering
// happens here.
func (s *Service) ListTasks(ctx context.Context, assigneeID string) ([]schema.HumanTask, error) {
	pending, err := s.queue.List(ctx, schema.TaskStatusPending)
	if err != nil {
		return nil, err
	}
	if assigneeID == "" {
		return pending, nil
	}

	filtered := make([]schema.HumanTask, 0, len(pending))
	for _, task := range pending {
		if task.AssigneeID == assigneeID {
			filtered = append(filtered, task)
		}
	}
	return filtered, nil
}

// GetTask returns a task by id.
func (s *Service) GetTask(ctx context.Context, taskID string) (schema.HumanTask, error) {
	return s.queue.Get(ctx, taskID)
}

// CompleteTask records a task result and pushes it back into the run
// waiting on it: the linked token resumes with the result merged in and
// the run continues until it settles again. The queue completion stands
// even when the owning run is no longer live; the result is then simply
// recorded for the audit trail.
func (s *Service) CompleteTask(ctx context.Context, taskID string, result map[string]any) (schema.HumanTask, *schema.RunResult, error) {
	task, err := s.queue.Complete(ctx, taskID, result)
	if err != nil {
		return schema.HumanTask{}, nil, err
	}

	eng, ok := s.findLive(task.TokenID)
	if !ok {
		s.log.InfoContext(ctx, "task completed for settled run",
			"task_id", task.ID,
			"token_id", task.TokenID)
		return task, nil, nil
	}

	if !eng.ResumeToken(ctx, task.TokenID, result) {
		s.log.WarnContext(ctx, "completed task token was not resumable",
			"task_id", task.ID,
			"token_id", task.TokenID,
			"run_id", eng.RunID())
		return task, eng.Result(), nil
	}

	runResult, contErr := eng.Continue(ctx)
	s.settle(ctx, eng)
	return task, runResult, contErr
}

// findLive locates the waiting engine that owns the given token.
func (s *Service) findLive(tokenID string) (*engine.Engine, bool) {
	if tokenID == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, eng := range s.live {
		if _, ok := eng.Token(tokenID); ok {
			return eng, true
		}
	}
	return nil, false
}

// SubmitScheduled hands a cron-triggered run to the worker pool. It
// returns once a pool slot is acquired; the run executes in the
// background and lands in the archive like any other.
func (s *Service) SubmitScheduled(ctx context.Context, sched scheduler.Schedule) error {
	return s.pool.Submit(ctx, func(ctx context.Context) error {
		result, err := s.RunWorkflow(ctx, sched.Workflow, sched.InitialData)
		if err != nil {
			s.log.ErrorContext(ctx, "scheduled run failed",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err)
			return err
		}
		s.log.InfoContext(ctx, "scheduled run settled",
			"schedule_id", sched.ID,
			"run_id", result.RunID,
			"status", result.Status)
		return nil
	})
}

// PoolMetrics reports the scheduled-run pool counters.
func (s *Service) PoolMetrics() PoolMetrics { return s.pool.Metrics() }

// Shutdown drains the scheduled-run pool. Live engines are left as they
// are; their state is already archived at every settle point.
func (s *Service) Shutdown() {
	s.pool.Shutdown()
}
