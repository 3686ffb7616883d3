// Package client talks to the widget API the way the embedded editor does,
// including its fallback to a local registry once a session has been lost.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"jsonwidget.org/internal/documents"
	"jsonwidget.org/internal/obs"
	"jsonwidget.org/internal/widget"
)

const (
	sessionHeader = "x-session-id"
	localUser     = "local"
)

// Session is the answer of a successful token exchange.
type Session struct {
	ID        string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Client is safe for concurrent use.
type Client struct {
	http     *http.Client
	registry documents.Service

	mu       sync.RWMutex
	base     string
	widgetID string
	session  string
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRegistry replaces the in-memory local registry.
func WithRegistry(r documents.Service) Option {
	return func(c *Client) {
		if r != nil {
			c.registry = r
		}
	}
}

// New returns a client for the API at baseURL. Bootstrap may later replace
// the base with the origin derived from the widget script URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: 10 * time.Second},
		registry: documents.NewInMemory(nil),
		base:     strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base
}

func (c *Client) WidgetID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.widgetID
}

func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession installs a previously persisted session identifier.
func (c *Client) SetSession(id string) {
	c.mu.Lock()
	c.session = id
	c.mu.Unlock()
}

// Registry exposes the local fallback store.
func (c *Client) Registry() documents.Service { return c.registry }

// FetchConfig loads the bootstrap configuration of widgetID.
func (c *Client) FetchConfig(ctx context.Context, widgetID string) (widget.Config, error) {
	var cfg widget.Config
	err := c.call(ctx, http.MethodGet, "/script/widget/config/"+url.PathEscape(widgetID), nil, &cfg, false)
	if err != nil {
		return widget.Config{}, widgetMissing(err)
	}
	return cfg, nil
}

// Booted describes a completed Loader run.
type Booted struct {
	WidgetID   string
	Origin     string
	Config     widget.Config
	BundleSize int
}

// Bootstrap replays the Loader's server-facing steps for scriptURL: extract
// the widget id, derive the API origin, fetch the config, then fetch the
// bundle and confirm it defines the readiness global.
func (c *Client) Bootstrap(ctx context.Context, scriptURL string) (Booted, error) {
	id, ok := widget.ExtractWidgetID(scriptURL)
	if !ok {
		return Booted{}, widget.ErrNoWidgetID
	}
	origin := widget.DeriveOrigin(scriptURL, c.BaseURL())

	c.mu.Lock()
	c.base = strings.TrimRight(origin, "/")
	c.widgetID = id
	c.mu.Unlock()

	cfg, err := c.FetchConfig(ctx, id)
	if err != nil {
		return Booted{}, err
	}
	bundle, err := c.fetch(ctx, cfg.BundleURL())
	if err != nil {
		return Booted{}, fmt.Errorf("fetch bundle: %w", err)
	}
	if !bytes.Contains(bundle, []byte(widget.ReadyGlobal)) {
		return Booted{}, fmt.Errorf("bundle %s does not define %s", cfg.BundleURL(), widget.ReadyGlobal)
	}
	return Booted{WidgetID: id, Origin: origin, Config: cfg, BundleSize: len(bundle)}, nil
}

// Authenticate exchanges an integrator-signed token for a session and keeps it.
// An empty widgetID uses the one found by Bootstrap.
func (c *Client) Authenticate(ctx context.Context, token, widgetID string) (Session, error) {
	if widgetID == "" {
		widgetID = c.WidgetID()
	}
	var s Session
	body := map[string]string{"token": token, "widgetId": widgetID}
	if err := c.call(ctx, http.MethodPost, "/auth", body, &s, false); err != nil {
		return Session{}, err
	}
	c.mu.Lock()
	c.session = s.ID
	c.widgetID = widgetID
	c.mu.Unlock()
	return s, nil
}

func (c *Client) Save(ctx context.Context, title string, data, schema json.RawMessage) error {
	if c.SessionID() == "" {
		return c.registry.Save(ctx, localUser, title, data, schema)
	}
	body := map[string]any{"title": title, "data": data, "schema": schema}
	err := c.call(ctx, http.MethodPost, "/api/save", body, nil, true)
	if c.degrade("save", err) {
		return c.registry.Save(ctx, localUser, title, data, schema)
	}
	return err
}

func (c *Client) Get(ctx context.Context, title string) (documents.Document, error) {
	if c.SessionID() == "" {
		return c.registry.Get(ctx, localUser, title)
	}
	var out struct {
		JSON   json.RawMessage `json:"json"`
		Schema json.RawMessage `json:"schema"`
	}
	err := c.call(ctx, http.MethodGet, "/api/get-json/"+url.PathEscape(title), nil, &out, true)
	if c.degrade("get", err) {
		return c.registry.Get(ctx, localUser, title)
	}
	if err != nil {
		return documents.Document{}, err
	}
	return documents.Document{Title: title, Data: out.JSON, Schema: out.Schema}, nil
}

func (c *Client) List(ctx context.Context) ([]documents.Summary, error) {
	if c.SessionID() == "" {
		return c.registry.List(ctx, localUser)
	}
	var out []documents.Summary
	err := c.call(ctx, http.MethodGet, "/api/list-json-titles", nil, &out, true)
	if c.degrade("list", err) {
		return c.registry.List(ctx, localUser)
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []documents.Summary{}
	}
	return out, nil
}

func (c *Client) Rename(ctx context.Context, oldTitle, newTitle string) error {
	if c.SessionID() == "" {
		return c.registry.Rename(ctx, localUser, oldTitle, newTitle)
	}
	body := map[string]string{"oldTitle": oldTitle, "newTitle": newTitle}
	err := c.call(ctx, http.MethodPost, "/api/rename-json", body, nil, true)
	if c.degrade("rename", err) {
		return c.registry.Rename(ctx, localUser, oldTitle, newTitle)
	}
	return err
}

func (c *Client) Delete(ctx context.Context, title string) error {
	if c.SessionID() == "" {
		_, err := c.registry.Delete(ctx, localUser, title)
		return err
	}
	err := c.call(ctx, http.MethodDelete, "/api/delete-json/"+url.PathEscape(title), nil, nil, true)
	if c.degrade("delete", err) {
		_, err = c.registry.Delete(ctx, localUser, title)
	}
	return err
}

// degrade reports whether a failed server call should be served locally.
func (c *Client) degrade(op string, err error) bool {
	if err == nil {
		return false
	}
	if !errors.Is(err, ErrTransport) && !unauthenticated(err) {
		return false
	}
	obs.Logger().Warn("widget api unavailable, using local registry",
		zap.String("op", op),
		zap.Error(err),
	)
	return true
}

func (c *Client) call(ctx context.Context, method, path string, body, out any, withSession bool) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL()+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withSession {
		req.Header.Set(sessionHeader, c.SessionID())
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}
