package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultMaxSessions caps concurrent connections. The WebSocket layer turns
// [ErrTooManySessions] into close code 1013 (try again later).
const DefaultMaxSessions = 32

// ErrTooManySessions is returned by [Manager.Add] at the connection cap.
var ErrTooManySessions = errors.New("session: too many concurrent sessions")

// Info holds metadata about an active session.
type Info struct {
	// SessionID is the unique identifier for this session.
	SessionID string

	// RemoteAddr is the client address, for logging only.
	RemoteAddr string

	// StartedAt is when the connection was accepted.
	StartedAt time.Time
}

// Manager tracks active sessions and enforces the connection cap.
// All exported methods are safe for concurrent use.
type Manager struct {
	max int

	mu       sync.Mutex
	sessions map[string]Info
}

// NewManager creates a Manager allowing at most max concurrent sessions;
// max <= 0 selects [DefaultMaxSessions].
func NewManager(max int) *Manager {
	if max <= 0 {
		max = DefaultMaxSessions
	}
	return &Manager{
		max:      max,
		sessions: make(map[string]Info),
	}
}

// Add registers a new session, failing with [ErrTooManySessions] at the cap.
func (m *Manager) Add(info Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) >= m.max {
		return ErrTooManySessions
	}
	m.sessions[info.SessionID] = info
	slog.Info("session registered",
		"session_id", info.SessionID,
		"remote_addr", info.RemoteAddr,
		"active", len(m.sessions),
	)
	return nil
}

// Remove unregisters a session. Removing an unknown ID is a no-op.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return
	}
	delete(m.sessions, sessionID)
	slog.Info("session unregistered", "session_id", sessionID, "active", len(m.sessions))
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// List returns a snapshot of active session metadata.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, 0, len(m.sessions))
	for _, info := range m.sessions {
		out = append(out, info)
	}
	return out
}
