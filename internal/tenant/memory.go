package tenant

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"jsonwidget.org/internal/ids"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps tenants in process memory. Used for local development
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	clients map[string]Client
	widgets map[string]Widget
	users   map[string]User
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:     time.Now,
		clients: make(map[string]Client),
		widgets: make(map[string]Widget),
		users:   make(map[string]User),
	}
}

func (s *MemoryStore) Clients(context.Context) ClientStore { return memClients{s} }
func (s *MemoryStore) Widgets(context.Context) WidgetStore { return memWidgets{s} }
func (s *MemoryStore) Users(context.Context) UserStore     { return memUsers{s} }

type memClients struct{ s *MemoryStore }

func (m memClients) Create(_ context.Context, c *Client) error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrInvalidInput
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c.ID == "" {
		c.ID = ids.New()
	}
	if _, ok := m.s.clients[c.ID]; ok {
		return ErrAlreadyExists
	}
	now := m.s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	m.s.clients[c.ID] = *c
	return nil
}

func (m memClients) Find(_ context.Context, id string) (*Client, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	c, ok := m.s.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m memClients) SetEnabled(_ context.Context, id string, enabled bool) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.clients[id]
	if !ok {
		return ErrNotFound
	}
	c.Enabled = enabled
	c.UpdatedAt = m.s.now().UTC()
	m.s.clients[id] = c
	return nil
}

type memWidgets struct{ s *MemoryStore }

func (m memWidgets) Create(_ context.Context, w *Widget) error {
	if w.ClientID == "" || w.Secret == "" {
		return ErrInvalidInput
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	client, ok := m.s.clients[w.ClientID]
	if !ok {
		return ErrNotFound
	}
	if w.ID == "" {
		w.ID = ids.NewWidgetID()
	}
	if _, ok := m.s.widgets[w.ID]; ok {
		return ErrAlreadyExists
	}
	now := m.s.now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now
	w.ClientEnabled = client.Enabled
	m.s.widgets[w.ID] = *w
	return nil
}

func (m memWidgets) Find(_ context.Context, id string) (*Widget, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	w, ok := m.s.widgets[id]
	if !ok {
		return nil, ErrNotFound
	}
	w.ClientEnabled = m.s.clients[w.ClientID].Enabled
	return &w, nil
}

func (m memWidgets) ListByClient(_ context.Context, clientID string) ([]*Widget, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var out []*Widget
	for _, w := range m.s.widgets {
		if w.ClientID != clientID {
			continue
		}
		w := w
		w.ClientEnabled = m.s.clients[w.ClientID].Enabled
		out = append(out, &w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m memWidgets) RotateSecret(_ context.Context, id, secret string) error {
	if secret == "" {
		return ErrInvalidInput
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	w, ok := m.s.widgets[id]
	if !ok {
		return ErrNotFound
	}
	w.Secret = secret
	w.UpdatedAt = m.s.now().UTC()
	m.s.widgets[id] = w
	return nil
}

func (m memWidgets) SetEnabled(_ context.Context, id string, enabled bool) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	w, ok := m.s.widgets[id]
	if !ok {
		return ErrNotFound
	}
	w.Enabled = enabled
	w.UpdatedAt = m.s.now().UTC()
	m.s.widgets[id] = w
	return nil
}

type memUsers struct{ s *MemoryStore }

func (m memUsers) Create(_ context.Context, u *User) error {
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	if u.WidgetID == "" || u.Email == "" {
		return ErrInvalidInput
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.widgets[u.WidgetID]; !ok {
		return ErrNotFound
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	if _, ok := m.s.users[u.ID]; ok {
		return ErrAlreadyExists
	}
	for _, existing := range m.s.users {
		if existing.Email == u.Email {
			return ErrAlreadyExists
		}
	}
	now := m.s.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	m.s.users[u.ID] = *u
	return nil
}

func (m memUsers) Find(_ context.Context, id string) (*User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	u, ok := m.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, u := range m.s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m memUsers) SetEnabled(_ context.Context, id string, enabled bool) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Enabled = enabled
	u.UpdatedAt = m.s.now().UTC()
	m.s.users[id] = u
	return nil
}
