package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"jsonwidget.org/internal/tenant"
)

type fixture struct {
	store    *tenant.MemoryStore
	sessions *MemorySessions
	svc      *Service
	now      time.Time
	w1, w2   *tenant.Widget
	u1, u2   *tenant.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: tenant.NewMemoryStore(), now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	c := &tenant.Client{Name: "Acme", Enabled: true}
	if err := f.store.Clients(ctx).Create(ctx, c); err != nil {
		t.Fatalf("create client: %v", err)
	}
	f.w1 = &tenant.Widget{ClientID: c.ID, Secret: "secret-w1", Enabled: true}
	f.w2 = &tenant.Widget{ClientID: c.ID, Secret: "secret-w2", Enabled: true}
	for _, w := range []*tenant.Widget{f.w1, f.w2} {
		if err := f.store.Widgets(ctx).Create(ctx, w); err != nil {
			t.Fatalf("create widget: %v", err)
		}
	}
	f.u1 = &tenant.User{ID: "u1", WidgetID: f.w1.ID, Email: "u1@example.com", Enabled: true}
	f.u2 = &tenant.User{ID: "u2", WidgetID: f.w2.ID, Email: "u2@example.com", Enabled: true}
	for _, u := range []*tenant.User{f.u1, f.u2} {
		if err := f.store.Users(ctx).Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	f.sessions = NewMemorySessions(clock)
	f.svc = NewService(f.store.Widgets(ctx), f.store.Users(ctx), f.sessions, WithClock(clock))
	return f
}

func (f *fixture) token(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestAuthenticateIssuesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Authenticate(ctx, f.token(t, f.w1.Secret, jwt.MapClaims{"id": "u1"}), f.w1.ID)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if len(session.ID) < 22 {
		t.Fatalf("session id too short: %q", session.ID)
	}
	if !session.ExpiresAt.Equal(f.now.Add(24 * time.Hour)) {
		t.Fatalf("unexpected expiry: %v", session.ExpiresAt)
	}

	userID, err := f.svc.Resolve(ctx, session.ID)
	if err != nil || userID != "u1" {
		t.Fatalf("Resolve: %q %v", userID, err)
	}
}

func TestAuthenticateAcceptsSubClaim(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Authenticate(context.Background(), f.token(t, f.w1.Secret, jwt.MapClaims{"sub": "u1"}), f.w1.ID)
	if err != nil {
		t.Fatalf("Authenticate with sub claim: %v", err)
	}
}

func TestAuthenticateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		token    string
		widgetID string
		want     error
		step     Step
	}{
		{"missing fields", "", f.w1.ID, ErrInvalidInput, StepReceived},
		{"unknown widget", f.token(t, f.w1.Secret, jwt.MapClaims{"id": "u1"}), "3f1d2c4b-0000-4000-8000-000000000000", ErrInvalidToken, StepReceived},
		{"cross widget secret", f.token(t, f.w2.Secret, jwt.MapClaims{"id": "u1"}), f.w1.ID, ErrInvalidToken, StepWidgetResolved},
		{"garbage token", "not-a-jwt", f.w1.ID, ErrInvalidToken, StepWidgetResolved},
		{"expired token", f.token(t, f.w1.Secret, jwt.MapClaims{"id": "u1", "exp": f.now.Add(-time.Hour).Unix()}), f.w1.ID, ErrInvalidToken, StepWidgetResolved},
		{"no subject", f.token(t, f.w1.Secret, jwt.MapClaims{"name": "x"}), f.w1.ID, ErrInvalidToken, StepWidgetResolved},
		{"user of other widget", f.token(t, f.w1.Secret, jwt.MapClaims{"id": "u2"}), f.w1.ID, ErrUserNotLinked, StepTokenVerified},
		{"unknown user", f.token(t, f.w1.Secret, jwt.MapClaims{"id": "ghost"}), f.w1.ID, ErrUserNotLinked, StepTokenVerified},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Authenticate(ctx, tc.token, tc.widgetID)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var rej *Rejection
			if !errors.As(err, &rej) || rej.Step != tc.step {
				t.Fatalf("expected rejection at %s, got %v", tc.step, err)
			}
		})
	}
	if f.sessions.Len() != 0 {
		t.Fatalf("rejected exchanges must not create sessions, have %d", f.sessions.Len())
	}
}

func TestAuthenticateRejectsNoneAlgorithm(t *testing.T) {
	f := newFixture(t)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := f.svc.Authenticate(context.Background(), unsigned, f.w1.ID); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticateDisabledTenants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.token(t, f.w1.Secret, jwt.MapClaims{"id": "u1"})

	if err := f.store.Users(ctx).SetEnabled(ctx, "u1", false); err != nil {
		t.Fatalf("disable user: %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, tok, f.w1.ID); !errors.Is(err, ErrUserNotLinked) {
		t.Fatalf("disabled user: expected ErrUserNotLinked, got %v", err)
	}

	if err := f.store.Widgets(ctx).SetEnabled(ctx, f.w1.ID, false); err != nil {
		t.Fatalf("disable widget: %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, tok, f.w1.ID); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("disabled widget: expected ErrInvalidToken, got %v", err)
	}
}

func TestSecretRotationInvalidatesTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.token(t, f.w1.Secret, jwt.MapClaims{"id": "u1"})
	if err := f.store.Widgets(ctx).RotateSecret(ctx, f.w1.ID, "rotated"); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, tok, f.w1.ID); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected old token rejected, got %v", err)
	}
}

func TestResolveExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session, err := f.svc.Authenticate(ctx, f.token(t, f.w1.Secret, jwt.MapClaims{"id": "u1"}), f.w1.ID)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if _, err := f.svc.Resolve(ctx, ""); !errors.Is(err, ErrSessionMissing) {
		t.Fatalf("expected ErrSessionMissing, got %v", err)
	}
	if _, err := f.svc.Resolve(ctx, "never-issued"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	f.now = f.now.Add(24*time.Hour - time.Second)
	if _, err := f.svc.Resolve(ctx, session.ID); err != nil {
		t.Fatalf("session should still be valid: %v", err)
	}
	f.now = f.now.Add(time.Second)
	if _, err := f.svc.Resolve(ctx, session.ID); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after TTL, got %v", err)
	}
}
