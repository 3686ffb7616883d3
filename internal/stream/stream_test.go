package stream

import (
	"context"
	"testing"
	"time"

	"jsonwidget.org/internal/documents"
)

func TestPublishIsScopedToUser(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine := s.Subscribe(ctx, "u1")
	theirs := s.Subscribe(ctx, "u2")

	s.Publish("u1", documents.Event{Type: documents.EventSaved, Title: "doc"})

	select {
	case evt := <-mine:
		if evt.Title != "doc" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event for u1")
	}
	select {
	case evt := <-theirs:
		t.Fatalf("u2 must not receive u1 events: %+v", evt)
	default:
	}
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx, "u1")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if n := s.Subscribers(); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Subscribe(ctx, "u1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			s.Publish("u1", documents.Event{Type: documents.EventSaved})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}
