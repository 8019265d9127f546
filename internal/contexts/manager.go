// Package contexts holds the shared data regions a workflow's activities
// read and write during a run. One Manager exists per engine instance; its
// data is never shared across engines.
package contexts

import (
	"context"
	"sync"

	"github.com/awa-io/awa/internal/expressions"
	"github.com/awa-io/awa/pkg/schema"
)

// Manager owns one data map per declared context. Maps start empty; any
// initial_value on the definition is seed metadata for consumers, not an
// engine-managed default. All operations are safe for concurrent use so
// boundary readers (REST, MCP) can observe contexts while a run mutates
// them; each operation is atomic, preserving last-writer-wins.
type Manager struct {
	mu   sync.RWMutex
	defs map[string]schema.Context
	data map[string]map[string]any

	jq *expressions.GoJQEngine
}

// NewManager creates a Manager for the given context definitions.
func NewManager(defs []schema.Context) *Manager {
	m := &Manager{
		defs: make(map[string]schema.Context, len(defs)),
		data: make(map[string]map[string]any, len(defs)),
		jq:   expressions.NewGoJQEngine(),
	}
	for _, def := range defs {
		m.defs[def.ID] = def
		m.data[def.ID] = map[string]any{}
	}
	return m
}

// Definition returns the context definition, or false if undeclared.
func (m *Manager) Definition(contextID string) (schema.Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, ok := m.defs[contextID]
	return def, ok
}

// Read returns a shallow copy of the context's data map. Unknown ids yield
// an empty map, not an error.
func (m *Manager) Read(contextID string) map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyMap(m.data[contextID])
}

// ReadValue returns a single value from the context, nil if absent.
func (m *Manager) ReadValue(contextID, key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[contextID][key]
}

// Write sets one key in the context, creating the context map lazily.
func (m *Manager) Write(contextID, key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[contextID] == nil {
		m.data[contextID] = map[string]any{}
	}
	m.data[contextID][key] = value
}

// Merge writes every key of data into the context, last writer wins.
func (m *Manager) Merge(contextID string, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[contextID] == nil {
		m.data[contextID] = map[string]any{}
	}
	for k, v := range data {
		m.data[contextID][k] = v
	}
}

// Clear empties the context's data map.
func (m *Manager) Clear(contextID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[contextID] = map[string]any{}
}

// CheckAccess reports whether a grant on the context binds roleID with a
// mode compatible with the request: READ is satisfied by READ or READ_WRITE
// grants, WRITE by WRITE or READ_WRITE, READ_WRITE only by READ_WRITE.
// Unknown contexts and unmatched roles are false. No side effects.
func (m *Manager) CheckAccess(contextID, roleID string, mode schema.AccessMode) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	def, ok := m.defs[contextID]
	if !ok {
		return false
	}

	for _, grant := range def.Grants {
		if grant.RoleID != roleID {
			continue
		}
		switch mode {
		case schema.AccessRead:
			return grant.AccessMode == schema.AccessRead || grant.AccessMode == schema.AccessReadWrite
		case schema.AccessWrite:
			return grant.AccessMode == schema.AccessWrite || grant.AccessMode == schema.AccessReadWrite
		case schema.AccessReadWrite:
			return grant.AccessMode == schema.AccessReadWrite
		}
	}
	return false
}

// Snapshot returns a copy of every context's current data, keyed by
// context id.
func (m *Manager) Snapshot() map[string]map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]map[string]any, len(m.data))
	for id, data := range m.data {
		out[id] = copyMap(data)
	}
	return out
}

// ReadFor resolves a binding's view of its context: the context data with
// the binding's on_read transform applied. A transform must produce an
// object; anything else is an error surfaced to the caller.
func (m *Manager) ReadFor(ctx context.Context, binding schema.ContextBinding) (map[string]any, error) {
	view := m.Read(binding.ContextID)

	if binding.Transforms == nil || binding.Transforms.OnRead == "" {
		return view, nil
	}

	out, err := m.jq.Evaluate(ctx, binding.Transforms.OnRead, view)
	if err != nil {
		return nil, err
	}
	obj, ok := out.(map[string]any)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"on_read transform for context %s produced %T, want object", binding.ContextID, out)
	}
	return obj, nil
}

// WriteFor merges data into the binding's context, passing it through the
// binding's on_write transform first.
func (m *Manager) WriteFor(ctx context.Context, binding schema.ContextBinding, data map[string]any) error {
	payload := data

	if binding.Transforms != nil && binding.Transforms.OnWrite != "" {
		out, err := m.jq.Evaluate(ctx, binding.Transforms.OnWrite, data)
		if err != nil {
			return err
		}
		obj, ok := out.(map[string]any)
		if !ok {
			return schema.NewErrorf(schema.ErrCodeExecution,
				"on_write transform for context %s produced %T, want object", binding.ContextID, out)
		}
		payload = obj
	}

	m.Merge(binding.ContextID, payload)
	return nil
}

func copyMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
