package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/starford/flashdeck/internal/apperr"
)

// Store persists sessions between requests. Implementations must be safe for
// concurrent use and must hand out copies, never shared pointers.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Verify implementations satisfy Store at compile time.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// MemoryStore keeps sessions in process memory. Sessions idle for longer than
// ttl are dropped on access; a zero ttl keeps them forever.
type MemoryStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Get returns a copy of the session with the given id.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: session %s", apperr.ErrNotFound, id)
	}
	if m.expired(s) {
		_ = m.Delete(context.Background(), id)
		return nil, fmt.Errorf("%w: session %s", apperr.ErrNotFound, id)
	}
	return s.Clone(), nil
}

// Save stores a copy of s.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

// Delete removes the session with the given id.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Sweep drops every expired session and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

func (m *MemoryStore) expired(s *Session) bool {
	return m.ttl > 0 && time.Since(s.UpdatedAt) > m.ttl
}
