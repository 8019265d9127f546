package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/awa-io/awa/pkg/schema"
)

// Token is the unit of execution state moving through a workflow graph.
// It records where it is, what it carries, and everything that ever
// happened to it. History is append-only; no operation removes or rewrites
// entries. Tokens are not safe for concurrent use on their own; the engine
// serializes all access.
type Token struct {
	id         string
	workflowID string
	parentID   string
	nodeID     string
	status     schema.TokenStatus
	data       map[string]any
	history    []schema.HistoryEntry
	createdAt  time.Time
	updatedAt  time.Time
}

// NewToken creates an ACTIVE token at nodeID with initialData merged into
// its private data and a single "created" history entry.
func NewToken(workflowID, nodeID string, initialData map[string]any) *Token {
	now := time.Now().UTC()
	t := &Token{
		id:         uuid.NewString(),
		workflowID: workflowID,
		nodeID:     nodeID,
		status:     schema.TokenActive,
		data:       make(map[string]any, len(initialData)),
		createdAt:  now,
		updatedAt:  now,
	}
	for k, v := range initialData {
		t.data[k] = v
	}
	t.append(nodeID, schema.HistoryCreated, nil)
	return t
}

// ID returns the token id.
func (t *Token) ID() string { return t.id }

// WorkflowID returns the owning workflow id.
func (t *Token) WorkflowID() string { return t.workflowID }

// NodeID returns the node the token currently sits on.
func (t *Token) NodeID() string { return t.nodeID }

// Status returns the current status.
func (t *Token) Status() schema.TokenStatus { return t.status }

// Move advances the token to nextNodeID, appending an "exited" entry
// carrying analytics for the node being left, then an "entered" entry for
// the new node. The token's status is untouched.
func (t *Token) Move(nextNodeID string, analytics *schema.Analytics) {
	t.append(t.nodeID, schema.HistoryExited, analytics)
	t.nodeID = nextNodeID
	t.append(nextNodeID, schema.HistoryEntered, nil)
}

// UpdateStatus sets the status and appends a status_change entry at the
// current node. The token accepts any transition; legality is the
// engine's concern.
func (t *Token) UpdateStatus(status schema.TokenStatus, analytics *schema.Analytics) {
	t.status = status
	t.append(t.nodeID, schema.HistoryStatusChange(status), analytics)
}

// SetData writes one key into the private data map.
func (t *Token) SetData(key string, value any) {
	t.data[key] = value
	t.updatedAt = time.Now().UTC()
}

// GetData reads one key from the private data map.
func (t *Token) GetData(key string) (any, bool) {
	v, ok := t.data[key]
	return v, ok
}

// MergeData overwrites the private data map with every key of data,
// last writer wins. Values are never validated against any schema.
func (t *Token) MergeData(data map[string]any) {
	for k, v := range data {
		t.data[k] = v
	}
	t.updatedAt = time.Now().UTC()
}

// Data returns a shallow copy of the private data map.
func (t *Token) Data() map[string]any {
	out := make(map[string]any, len(t.data))
	for k, v := range t.data {
		out[k] = v
	}
	return out
}

// History returns a copy of the history entries.
func (t *Token) History() []schema.HistoryEntry {
	out := make([]schema.HistoryEntry, len(t.history))
	copy(out, t.history)
	return out
}

// Snapshot serializes the token.
func (t *Token) Snapshot() schema.TokenSnapshot {
	return schema.TokenSnapshot{
		ID:            t.id,
		ActivityID:    t.nodeID,
		Status:        t.status,
		ContextData:   t.Data(),
		History:       t.History(),
		ParentTokenID: t.parentID,
		WorkflowID:    t.workflowID,
		CreatedAt:     t.createdAt,
		UpdatedAt:     t.updatedAt,
	}
}

// append adds a history entry. Timestamps are nudged forward when the
// clock has not advanced since the previous entry, keeping history
// strictly increasing.
func (t *Token) append(nodeID, action string, analytics *schema.Analytics) {
	ts := time.Now().UTC()
	if n := len(t.history); n > 0 {
		if last := t.history[n-1].Timestamp; !ts.After(last) {
			ts = last.Add(time.Nanosecond)
		}
	}
	t.history = append(t.history, schema.HistoryEntry{
		NodeID:    nodeID,
		Timestamp: ts,
		Action:    action,
		Analytics: analytics,
	})
	t.updatedAt = ts
}
