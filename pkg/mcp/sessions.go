package mcp

import "sync"

// SessionRegistry maps task assignees to MCP session IDs. Populated when
// an agent lists tasks for an assignee; consulted when pushing new-task
// notifications.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]string // assigneeID → sessionID
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]string)}
}

// Register associates an assignee with a session ID. A reconnecting agent
// overwrites its previous session.
func (r *SessionRegistry) Register(assigneeID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[assigneeID] = sessionID
}

// SessionFor returns the session ID watching the given assignee, if any.
func (r *SessionRegistry) SessionFor(assigneeID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.sessions[assigneeID]
	return sid, ok
}

// Remove deletes every assignee mapping for the given session ID. Called
// when a session disconnects.
func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for aid, sid := range r.sessions {
		if sid == sessionID {
			delete(r.sessions, aid)
		}
	}
}
