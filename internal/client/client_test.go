package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jsonwidget.org/internal/auth"
	"jsonwidget.org/internal/documents"
	"jsonwidget.org/internal/httpapi"
	"jsonwidget.org/internal/stream"
	"jsonwidget.org/internal/tenant"
	"jsonwidget.org/internal/widget"
)

type server struct {
	*httptest.Server
	widget *tenant.Widget
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()

	store := tenant.NewMemoryStore()
	cl := &tenant.Client{Name: "Acme", Enabled: true}
	if err := store.Clients(ctx).Create(ctx, cl); err != nil {
		t.Fatalf("create client: %v", err)
	}
	w := &tenant.Widget{ClientID: cl.ID, Secret: "secret", Locale: "en", Enabled: true}
	if err := store.Widgets(ctx).Create(ctx, w); err != nil {
		t.Fatalf("create widget: %v", err)
	}
	if err := store.Users(ctx).Create(ctx, &tenant.User{ID: "u1", WidgetID: w.ID, Email: "u1@example.com", Enabled: true}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	base := "http://" + lis.Addr().String()

	locales := []string{"en"}
	renderer, err := widget.NewRenderer(widget.RendererConfig{FallbackBase: base, Locales: locales})
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	st := stream.New()
	handler := httpapi.New(httpapi.Deps{
		Resolver: widget.NewResolver(store.Widgets(ctx), widget.ResolverConfig{
			BaseURL:       base,
			BuildNumber:   "7",
			DefaultLocale: "en",
			Locales:       locales,
		}),
		Renderer:  renderer,
		Auth:      auth.NewService(store.Widgets(ctx), store.Users(ctx), auth.NewMemorySessions(time.Now)),
		Documents: documents.NewObserved(documents.NewInMemory(nil), st),
		Stream:    st,
	}, httpapi.Options{}).Handler()

	srv := httptest.NewUnstartedServer(handler)
	_ = srv.Listener.Close()
	srv.Listener = lis
	srv.Start()
	t.Cleanup(srv.Close)

	return &server{Server: srv, widget: w}
}

func (s *server) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.MintUserToken(s.widget.Secret, userID, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return tok
}

func TestBootstrap(t *testing.T) {
	srv := newServer(t)
	c := New("https://fallback.invalid")

	booted, err := c.Bootstrap(context.Background(), srv.URL+"/"+srv.widget.ID)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if booted.WidgetID != srv.widget.ID || booted.Origin != srv.URL {
		t.Fatalf("unexpected bootstrap result: %+v", booted)
	}
	if booted.Config.Locale != "en" || booted.Config.BuildNumber != "7" || booted.BundleSize == 0 {
		t.Fatalf("unexpected config: %+v", booted)
	}
	if c.BaseURL() != srv.URL {
		t.Fatalf("base not switched to derived origin: %s", c.BaseURL())
	}
}

func TestBootstrapErrors(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL)

	if _, err := c.Bootstrap(context.Background(), srv.URL+"/loader.js"); !errors.Is(err, widget.ErrNoWidgetID) {
		t.Fatalf("expected ErrNoWidgetID, got %v", err)
	}
	_, err := c.Bootstrap(context.Background(), srv.URL+"/3b0c8f5e-9d2a-4f4b-8e21-7c6a5d4e3f21")
	if !errors.Is(err, widget.ErrNotFound) {
		t.Fatalf("expected widget.ErrNotFound, got %v", err)
	}
}

func TestAuthenticatedRoundTrip(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := New(srv.URL)

	s, err := c.Authenticate(ctx, srv.token(t, "u1"), srv.widget.ID)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if s.ID == "" || c.SessionID() != s.ID || !s.ExpiresAt.After(time.Now()) {
		t.Fatalf("unexpected session: %+v", s)
	}

	if err := c.Save(ctx, "doc", json.RawMessage(`{"a":1}`), json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	doc, err := c.Get(ctx, "doc")
	if err != nil || string(doc.Data) != `{"a":1}` {
		t.Fatalf("Get: %s %v", doc.Data, err)
	}
	if err := c.Rename(ctx, "doc", "renamed"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	list, err := c.List(ctx)
	if err != nil || len(list) != 1 || list[0].Title != "renamed" {
		t.Fatalf("List: %+v %v", list, err)
	}
	if err := c.Delete(ctx, "renamed"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "renamed"); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	local, _ := c.Registry().List(ctx, localUser)
	if len(local) != 0 {
		t.Fatalf("registry should be untouched, got %+v", local)
	}
}

func TestAuthenticateErrors(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL)

	if _, err := c.Authenticate(context.Background(), "garbage", srv.widget.ID); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := c.Authenticate(context.Background(), srv.token(t, "ghost"), srv.widget.ID); !errors.Is(err, auth.ErrUserNotLinked) {
		t.Fatalf("expected ErrUserNotLinked, got %v", err)
	}
	if c.SessionID() != "" {
		t.Fatal("failed exchange must not set a session")
	}
}

func TestWithoutSessionUsesRegistry(t *testing.T) {
	ctx := context.Background()
	c := New("http://127.0.0.1:1")

	if err := c.Save(ctx, "draft", json.RawMessage(`[1]`), json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	doc, err := c.Get(ctx, "draft")
	if err != nil || string(doc.Data) != `[1]` {
		t.Fatalf("Get: %s %v", doc.Data, err)
	}
}

func TestUnauthenticatedFallsBack(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := New(srv.URL)
	c.SetSession("revoked")

	if err := c.Save(ctx, "offline", json.RawMessage(`{"b":2}`), json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	local, err := c.Registry().Get(ctx, localUser, "offline")
	if err != nil || string(local.Data) != `{"b":2}` {
		t.Fatalf("expected document in registry: %s %v", local.Data, err)
	}
	list, err := c.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List: %+v %v", list, err)
	}
}

func TestTransportFailureFallsBack(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := New(srv.URL)
	if _, err := c.Authenticate(ctx, srv.token(t, "u1"), srv.widget.ID); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	srv.Close()

	if err := c.Save(ctx, "kept", json.RawMessage(`{}`), json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := c.Get(ctx, "kept"); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestDomainErrorsDoNotFallBack(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := New(srv.URL)
	if _, err := c.Authenticate(ctx, srv.token(t, "u1"), srv.widget.ID); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	for _, title := range []string{"a", "b"} {
		if err := c.Save(ctx, title, json.RawMessage(`{}`), json.RawMessage(`{}`)); err != nil {
			t.Fatalf("Save %s: %v", title, err)
		}
	}

	err := c.Rename(ctx, "a", "b")
	if !errors.Is(err, documents.ErrTitleConflict) {
		t.Fatalf("expected ErrTitleConflict, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict || apiErr.RequestID == "" {
		t.Fatalf("unexpected error detail: %#v", err)
	}
	if err := c.Save(ctx, " ", json.RawMessage(`{}`), json.RawMessage(`{}`)); !errors.Is(err, documents.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
