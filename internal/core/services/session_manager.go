package services

import (
	"sort"
	"sync"

	"camlink/internal/core/domain"
	"camlink/internal/core/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session couples one stream's controller with a stable identifier the
// control API can address.
type Session struct {
	ID         string
	StreamID   domain.StreamID
	Controller ports.ConnectionController
}

// SessionManager tracks the viewer's open stream sessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *zap.SugaredLogger
}

func NewSessionManager(logger *zap.SugaredLogger) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Open registers a session for the given stream and returns it.
func (m *SessionManager) Open(streamID domain.StreamID, ctrl ports.ConnectionController) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		StreamID:   streamID,
		Controller: ctrl,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Infow("session opened", "session_id", s.ID, "stream_id", streamID)
	return s
}

func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns sessions ordered by stream ID for stable API output.
func (m *SessionManager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StreamID != out[j].StreamID {
			return out[i].StreamID < out[j].StreamID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Close stops the session's controller and removes it.
func (m *SessionManager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Controller.Stop()
	m.logger.Infow("session closed", "session_id", id, "stream_id", s.StreamID)
	return true
}

// CloseAll stops every controller, used on shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Controller.Stop()
	}
}
