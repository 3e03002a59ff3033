package mcp

import "sync"

// SessionRegistry maps selection session IDs to the MCP client session that
// drives them. Populated whenever a client calls a selection tool.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]string // selection session → MCP client session
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]string)}
}

// Register associates a selection session with an MCP client session.
// A selection taken over by another client is re-pointed at it.
func (r *SessionRegistry) Register(selectionID, clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[selectionID] = clientID
}

// ClientFor returns the MCP client session driving selectionID, if any.
func (r *SessionRegistry) ClientFor(selectionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cid, ok := r.sessions[selectionID]
	return cid, ok
}

// Remove deletes every mapping that points at clientID.
// Called when the client disconnects.
func (r *SessionRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, cid := range r.sessions {
		if cid == clientID {
			delete(r.sessions, sid)
		}
	}
}

// Len returns the number of mapped selection sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
