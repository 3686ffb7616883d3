package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jsonwidget.org/internal/ids"
	"jsonwidget.org/internal/tenant"
)

// Step names a stage of the token exchange:
// received → widget-resolved → token-verified → user-resolved → session-issued.
type Step string

const (
	StepReceived       Step = "received"
	StepWidgetResolved Step = "widget-resolved"
	StepTokenVerified  Step = "token-verified"
	StepUserResolved   Step = "user-resolved"
	StepSessionIssued  Step = "session-issued"
)

// sessionIDBytes gives 256 bits of entropy per session identifier.
const sessionIDBytes = 32

// UserFinder loads widget users.
type UserFinder interface {
	Find(ctx context.Context, id string) (*tenant.User, error)
}

// Service exchanges integrator-signed user tokens for opaque sessions and
// resolves sessions back to users.
type Service struct {
	widgets  tenant.WidgetFinder
	users    UserFinder
	sessions SessionStore
	now      func() time.Time
	newID    func() (string, error)
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithSessionIDs overrides session identifier generation.
func WithSessionIDs(fn func() (string, error)) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService constructs a Service. widgets must read the authoritative
// store, not a cache, so that secret rotation applies immediately.
func NewService(widgets tenant.WidgetFinder, users UserFinder, sessions SessionStore, opts ...ServiceOption) *Service {
	svc := &Service{
		widgets:  widgets,
		users:    users,
		sessions: sessions,
		now:      time.Now,
		newID:    func() (string, error) { return ids.Opaque(sessionIDBytes) },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Authenticate verifies token against the secret of widgetID, confirms the
// token's user belongs to that widget and issues a session.
func (s *Service) Authenticate(ctx context.Context, token, widgetID string) (Session, error) {
	token = strings.TrimSpace(token)
	widgetID = strings.TrimSpace(widgetID)
	if token == "" || widgetID == "" {
		return Session{}, reject(StepReceived, ErrInvalidInput)
	}

	widget, err := s.widgets.Find(ctx, widgetID)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return Session{}, reject(StepReceived, ErrUnknownWidget)
		}
		return Session{}, fmt.Errorf("auth: load widget: %w", err)
	}
	if !widget.Active() {
		return Session{}, reject(StepReceived, ErrUnknownWidget)
	}

	userID, err := VerifyUserToken(token, []byte(widget.Secret), s.now)
	if err != nil {
		return Session{}, reject(StepWidgetResolved, err)
	}

	user, err := s.users.Find(ctx, userID)
	if err != nil && !errors.Is(err, tenant.ErrNotFound) {
		return Session{}, fmt.Errorf("auth: load user: %w", err)
	}
	if err != nil || !user.LinkedTo(widget.ID) {
		return Session{}, reject(StepTokenVerified, ErrUserNotLinked)
	}

	id, err := s.newID()
	if err != nil {
		return Session{}, fmt.Errorf("auth: session id: %w", err)
	}
	session := Session{
		ID:        id,
		UserID:    user.ID,
		ExpiresAt: s.now().Add(SessionTTL).UTC(),
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return Session{}, fmt.Errorf("auth: persist session: %w", err)
	}
	return session, nil
}

// Resolve maps a session identifier back to its user.
func (s *Service) Resolve(ctx context.Context, sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", ErrSessionMissing
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !s.now().Before(session.ExpiresAt) {
		return "", ErrSessionExpired
	}
	return session.UserID, nil
}
