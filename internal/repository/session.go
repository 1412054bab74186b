package repository

import (
	"sync"

	"github.com/chesslink/relay-backend/internal/entity"
)

// SessionRegistry owns the connection-to-room bindings. Pure bookkeeping,
// no game semantics: a connection binds to at most one room, and rebinding
// silently replaces the previous binding.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]entity.Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]entity.Session),
	}
}

func (that *SessionRegistry) Bind(connectionID, roomID, identity string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sessions[connectionID] = entity.Session{
		ConnectionID: connectionID,
		RoomID:       roomID,
		Identity:     identity,
	}
}

func (that *SessionRegistry) Lookup(connectionID string) (entity.Session, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	session, ok := that.sessions[connectionID]

	return session, ok
}

func (that *SessionRegistry) Unbind(connectionID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, connectionID)
}
