package stream

import (
	"context"
	"sync"

	"jsonwidget.org/internal/documents"
)

const subscriberBuffer = 16

type subscriber struct {
	user string
	ch   chan documents.Event
}

// Stream fans document events out to the subscribers of the same user (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

var _ documents.Publisher = (*Stream)(nil)

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber for userID's events. The channel is
// closed when ctx ends.
func (s *Stream) Subscribe(ctx context.Context, userID string) <-chan documents.Event {
	ch := make(chan documents.Event, subscriberBuffer)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = subscriber{user: userID, ch: ch}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish delivers evt to every subscriber of userID.
func (s *Stream) Publish(userID string, evt documents.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.user != userID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Subscribers reports the number of active subscribers.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
