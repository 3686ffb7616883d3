package auth

import (
	"context"
	"sync"
	"time"
)

// SessionTTL is fixed; sessions are never renewed.
const SessionTTL = 24 * time.Hour

// Session maps an opaque identifier to exactly one user until it expires.
type Session struct {
	ID        string    `json:"-"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore persists sessions. Expiry is passive: Get reports
// ErrSessionExpired for identifiers that were never issued or have lapsed.
type SessionStore interface {
	Put(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
}

var _ SessionStore = (*MemorySessions)(nil)

// MemorySessions keeps sessions in process memory. Expired entries are
// dropped when they are read.
type MemorySessions struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]Session
}

func NewMemorySessions(now func() time.Time) *MemorySessions {
	if now == nil {
		now = time.Now
	}
	return &MemorySessions{now: now, items: make(map[string]Session)}
}

func (m *MemorySessions) Put(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.ID] = s
	return nil
}

func (m *MemorySessions) Get(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok {
		return Session{}, ErrSessionExpired
	}
	if !m.now().Before(s.ExpiresAt) {
		delete(m.items, id)
		return Session{}, ErrSessionExpired
	}
	return s, nil
}

// Len reports the number of sessions held, including lapsed ones not yet read.
func (m *MemorySessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
