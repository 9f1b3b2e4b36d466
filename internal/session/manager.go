package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joinhub/console/internal/models"
	"github.com/joinhub/console/internal/wizard"
	"go.uber.org/zap"
)

// MaxSessions limits concurrent wizards to bound staged uploads
const MaxSessions = 50

// SessionMaxAge is how long an idle wizard is kept before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow protects wizards that were touched recently
const SessionKeepAliveWindow = 5 * time.Minute

var (
	ErrNotFound = errors.New("session not found")
	ErrTooMany  = errors.New("too many open wizard sessions")
)

// Manager tracks open wizard sessions.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex

	backend     wizard.Backend
	release     func([]models.UploadedFile)
	logger      *zap.Logger
	maxSessions int
	now         func() time.Time
}

// SessionState holds one wizard and its bookkeeping.
type SessionState struct {
	ID           string
	Wizard       *wizard.Controller
	CreatedAt    time.Time
	LastAccessed time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxSessions overrides MaxSessions.
func WithMaxSessions(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// WithRelease sets the hook that frees staged files when a wizard drops them.
func WithRelease(fn func([]models.UploadedFile)) Option {
	return func(m *Manager) {
		m.release = fn
	}
}

// WithLogger sets the manager logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a session manager whose wizards talk to backend.
func NewManager(backend wizard.Backend, opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[string]*SessionState),
		backend:     backend,
		release:     func([]models.UploadedFile) {},
		logger:      zap.NewNop(),
		maxSessions: MaxSessions,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create opens a new wizard at step 1.
func (m *Manager) Create() (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxSessions {
		m.evictOldestLocked()
	}
	if len(m.sessions) >= m.maxSessions {
		return nil, ErrTooMany
	}

	id := uuid.New().String()
	now := m.now()
	state := &SessionState{
		ID: id,
		Wizard: wizard.NewController(m.backend,
			wizard.WithLogger(m.logger.With(zap.String("session", id[:8]))),
			wizard.WithRelease(m.release),
		),
		CreatedAt:    now,
		LastAccessed: now,
	}
	m.sessions[id] = state
	m.logger.Debug("wizard session opened", zap.String("session", id))
	return state, nil
}

// Get returns a session and marks it as accessed.
func (m *Manager) Get(id string) (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	state.LastAccessed = m.now()
	return state, nil
}

// Delete closes a session, resetting its wizard so staged files are released.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	state, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	state.Wizard.Reset()
	return nil
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupExpired closes sessions idle for longer than maxAge and returns how
// many were closed. Sessions touched within SessionKeepAliveWindow survive.
func (m *Manager) CleanupExpired(maxAge time.Duration) int {
	now := m.now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	m.mu.Lock()
	var expired []*SessionState
	for id, state := range m.sessions {
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			expired = append(expired, state)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, state := range expired {
		state.Wizard.Reset()
		m.logger.Info("cleaned up idle wizard session",
			zap.String("session", state.ID),
			zap.Duration("idle", now.Sub(state.LastAccessed).Round(time.Second)))
	}
	return len(expired)
}

// evictOldestLocked drops the least recently used idle session. Wizards with a
// request in flight are never evicted.
func (m *Manager) evictOldestLocked() {
	var oldest *SessionState
	for _, state := range m.sessions {
		s := state.Wizard.State()
		if s.Finding || s.Submitting {
			continue
		}
		if oldest == nil || state.LastAccessed.Before(oldest.LastAccessed) {
			oldest = state
		}
	}
	if oldest == nil {
		return
	}
	delete(m.sessions, oldest.ID)
	oldest.Wizard.Reset()
	m.logger.Info("evicted wizard session to stay under the limit", zap.String("session", oldest.ID))
}
