package documents

import (
	"context"
	"encoding/json"
	"time"

	"jsonwidget.org/internal/obs"
)

// EventType names a document change.
type EventType string

const (
	EventSaved   EventType = "saved"
	EventRenamed EventType = "renamed"
	EventDeleted EventType = "deleted"
)

// Event describes a change to one of a user's documents.
type Event struct {
	Type     EventType `json:"type"`
	Title    string    `json:"title"`
	NewTitle string    `json:"newTitle,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher receives document changes for a user.
type Publisher interface {
	Publish(userID string, evt Event)
}

// Observed wraps a Service, recording operation metrics and publishing
// change events after successful writes.
type Observed struct {
	next Service
	pub  Publisher
	now  func() time.Time
}

var _ Service = (*Observed)(nil)

// NewObserved wraps next. pub may be nil.
func NewObserved(next Service, pub Publisher) *Observed {
	return &Observed{next: next, pub: pub, now: time.Now}
}

func (o *Observed) Save(ctx context.Context, userID, title string, data, schema json.RawMessage) error {
	err := o.next.Save(ctx, userID, title, data, schema)
	obs.ObserveDocumentOp("save", err)
	if err == nil {
		o.publish(userID, Event{Type: EventSaved, Title: title})
	}
	return err
}

func (o *Observed) Get(ctx context.Context, userID, title string) (Document, error) {
	doc, err := o.next.Get(ctx, userID, title)
	obs.ObserveDocumentOp("get", err)
	return doc, err
}

func (o *Observed) List(ctx context.Context, userID string) ([]Summary, error) {
	list, err := o.next.List(ctx, userID)
	obs.ObserveDocumentOp("list", err)
	return list, err
}

func (o *Observed) Rename(ctx context.Context, userID, oldTitle, newTitle string) error {
	err := o.next.Rename(ctx, userID, oldTitle, newTitle)
	obs.ObserveDocumentOp("rename", err)
	if err == nil && oldTitle != newTitle {
		o.publish(userID, Event{Type: EventRenamed, Title: oldTitle, NewTitle: newTitle})
	}
	return err
}

func (o *Observed) Delete(ctx context.Context, userID, title string) (bool, error) {
	removed, err := o.next.Delete(ctx, userID, title)
	obs.ObserveDocumentOp("delete", err)
	if err == nil && removed {
		o.publish(userID, Event{Type: EventDeleted, Title: title})
	}
	return removed, err
}

func (o *Observed) publish(userID string, evt Event) {
	if o.pub == nil {
		return
	}
	evt.At = o.now().UTC()
	o.pub.Publish(userID, evt)
}
