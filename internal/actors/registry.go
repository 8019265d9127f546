package actors

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/awa-io/awa/internal/tasks"
	"github.com/awa-io/awa/pkg/schema"
)

// Registry maps actor kinds to implementations. It is safe for concurrent
// use; engines share one registry so a kind resolves identically across
// runs.
type Registry struct {
	mu     sync.RWMutex
	actors map[schema.ActorKind]Actor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{actors: make(map[schema.ActorKind]Actor)}
}

// Register adds an actor. Returns an error on nil actors, empty kinds, and
// duplicate registrations.
func (r *Registry) Register(actor Actor) error {
	if actor == nil {
		return schema.NewError(schema.ErrCodeValidation, "actor is nil")
	}
	kind := actor.Kind()
	if kind == "" {
		return schema.NewError(schema.ErrCodeValidation, "actor kind is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actors[kind]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "actor kind %q already registered", kind)
	}

	r.actors[kind] = actor
	return nil
}

// Get retrieves the actor for a kind. The second return is false when the
// kind has no registered implementation; callers decide what an unhandled
// kind means.
func (r *Registry) Get(kind schema.ActorKind) (Actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	actor, ok := r.actors[kind]
	return actor, ok
}

// Has checks whether a kind is registered.
func (r *Registry) Has(kind schema.ActorKind) bool {
	_, ok := r.Get(kind)
	return ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []schema.ActorKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]schema.ActorKind, 0, len(r.actors))
	for kind := range r.actors {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// DefaultRegistry builds a registry with all four built-in actors. The AI
// actor runs simulated until a Generator is supplied via WithGenerator.
func DefaultRegistry(queue tasks.Queue, log *slog.Logger, opts ...Option) (*Registry, error) {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := NewRegistry()
	for _, actor := range []Actor{
		NewSoftwareActor(log),
		NewAIActor(cfg.generator, log),
		NewHumanActor(queue, log),
		NewRobotActor(),
	} {
		if err := r.Register(actor); err != nil {
			return nil, err
		}
	}
	return r, nil
}

type options struct {
	generator Generator
}

// Option configures DefaultRegistry.
type Option func(*options)

// WithGenerator supplies the generative backend for the AI actor.
func WithGenerator(gen Generator) Option {
	return func(o *options) { o.generator = gen }
}
