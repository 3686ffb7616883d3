package documents

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
)

// Service defines the per-user document operations. Every call is scoped
// to userID; there is no cross-user access path.
type Service interface {
	Save(ctx context.Context, userID, title string, data, schema json.RawMessage) error
	Get(ctx context.Context, userID, title string) (Document, error)
	List(ctx context.Context, userID string) ([]Summary, error)
	Rename(ctx context.Context, userID, oldTitle, newTitle string) error
	// Delete reports whether a document was removed. Deleting an absent
	// title is not an error.
	Delete(ctx context.Context, userID, title string) (bool, error)
}

type docKey struct {
	user  string
	title string
}

type memDoc struct {
	Document
	rev uint64
}

// InMemory implements Service in process memory.
type InMemory struct {
	mu   sync.RWMutex
	now  func() time.Time
	rev  uint64
	docs map[docKey]*memDoc
}

// NewInMemory creates an empty document store. now may be nil.
func NewInMemory(now func() time.Time) *InMemory {
	if now == nil {
		now = time.Now
	}
	return &InMemory{now: now, docs: make(map[docKey]*memDoc)}
}

func (s *InMemory) Save(_ context.Context, userID, title string, data, schema json.RawMessage) error {
	if err := ValidateSave(title, data, schema); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	s.rev++
	key := docKey{userID, title}
	if doc, ok := s.docs[key]; ok {
		doc.Data = Compact(data)
		doc.Schema = Compact(schema)
		doc.UpdatedAt = now
		doc.rev = s.rev
		return nil
	}
	s.docs[key] = &memDoc{
		Document: Document{
			Title:     title,
			Data:      Compact(data),
			Schema:    Compact(schema),
			CreatedAt: now,
			UpdatedAt: now,
		},
		rev: s.rev,
	}
	return nil
}

func (s *InMemory) Get(_ context.Context, userID, title string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docKey{userID, title}]
	if !ok {
		return Document{}, ErrNotFound
	}
	out := doc.Document
	out.Data = append(json.RawMessage(nil), doc.Data...)
	out.Schema = append(json.RawMessage(nil), doc.Schema...)
	return out, nil
}

func (s *InMemory) List(_ context.Context, userID string) ([]Summary, error) {
	type entry struct {
		Summary
		rev uint64
	}
	// Copy under the lock; Save and Rename mutate docs in place.
	s.mu.RLock()
	var entries []entry
	for key, doc := range s.docs {
		if key.user == userID {
			entries = append(entries, entry{Summary{Title: doc.Title, UpdatedAt: doc.UpdatedAt}, doc.rev})
		}
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].UpdatedAt.Equal(entries[j].UpdatedAt) {
			return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
		}
		return entries[i].rev > entries[j].rev
	})
	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Summary)
	}
	return out, nil
}

func (s *InMemory) Rename(_ context.Context, userID, oldTitle, newTitle string) error {
	if err := ValidateRename(oldTitle, newTitle); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	from := docKey{userID, oldTitle}
	doc, ok := s.docs[from]
	if !ok {
		return ErrNotFound
	}
	if oldTitle == newTitle {
		return nil
	}
	to := docKey{userID, newTitle}
	if _, taken := s.docs[to]; taken {
		return ErrTitleConflict
	}
	s.rev++
	doc.Title = newTitle
	doc.UpdatedAt = s.now().UTC()
	doc.rev = s.rev
	delete(s.docs, from)
	s.docs[to] = doc
	return nil
}

func (s *InMemory) Delete(_ context.Context, userID, title string) (bool, error) {
	if strings.TrimSpace(title) == "" {
		return false, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := docKey{userID, title}
	if _, ok := s.docs[key]; !ok {
		return false, nil
	}
	// Document and schema live in one entry, so removal is atomic.
	delete(s.docs, key)
	return true, nil
}
