package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/bull/finchat/internal/metrics"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// Manager owns the open sessions. Sessions live until closed; there is no eviction.
type Manager struct {
	deps *Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager. Pipeline and both answer engines are required.
func NewManager(deps Deps) (*Manager, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &Manager{deps: &deps, sessions: make(map[string]*Session)}, nil
}

// Create opens a new session with a random id.
func (m *Manager) Create() *Session {
	s, _ := m.GetOrCreate(uuid.NewString())
	return s
}

// GetOrCreate returns the session with id, creating it if needed. The boolean
// reports whether the session was created.
func (m *Manager) GetOrCreate(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, false
	}
	s := newSession(id, m.deps)
	m.sessions[id] = s
	metrics.SessionOpened()
	return s, true
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// List returns every session, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	infos := make([]Info, len(sessions))
	for i, s := range sessions {
		infos[i] = s.Info()
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Created.Equal(infos[j].Created) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].Created.Before(infos[j].Created)
	})
	return infos
}

// Close removes a session and drops its stored index.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	metrics.SessionClosed()
	if err := m.deps.Backend.Drop(ctx, id); err != nil {
		return fmt.Errorf("drop session %s: %w", id, err)
	}
	return nil
}
