package editor

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Manager holds open sessions by document id. Sessions idle for longer
// than the TTL, or pushed out when the registry is full, are closed.
type Manager struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *Session]
	logger   *zap.SugaredLogger
}

func NewManager(size int, ttl time.Duration, logger *zap.SugaredLogger) *Manager {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	onEvict := func(id string, s *Session) {
		logger.Debugw("session evicted", "document_id", id)
		s.Close()
	}
	return &Manager{
		sessions: expirable.NewLRU[string, *Session](size, onEvict, ttl),
		logger:   logger,
	}
}

// Open returns the session for id, creating it with create when none is
// open. create runs without the registry lock held; when two callers race
// on the same id the later session is closed and the first one returned.
// created reports whether the returned session came from this call.
func (m *Manager) Open(id string, create func() (*Session, error)) (s *Session, created bool, err error) {
	if s, ok := m.Get(id); ok {
		return s, false, nil
	}

	fresh, err := create()
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions.Get(id); ok {
		m.sessions.Add(id, s)
		fresh.Close()
		return s, false, nil
	}
	m.sessions.Add(id, fresh)
	m.logger.Infow("session opened", "document_id", id, "open_sessions", m.sessions.Len())
	return fresh, true, nil
}

// Get returns the open session for id and renews its idle timer.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions.Get(id)
	if ok {
		m.sessions.Add(id, s)
	}
	return s, ok
}

// Close closes and forgets the session for id.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions.Remove(id)
}

func (m *Manager) Len() int {
	return m.sessions.Len()
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.Purge()
}
