package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"jsonwidget.org/internal/auth"
	"jsonwidget.org/internal/documents"
	"jsonwidget.org/internal/obs"
	"jsonwidget.org/internal/stream"
	"jsonwidget.org/internal/widget"
)

const serviceName = "jsonwidget-api"

// Checker is one readiness dependency.
type Checker interface {
	Check(ctx context.Context) error
}

// ReadyChecks runs every named dependency check (database, session store).
type ReadyChecks struct {
	Checks map[string]Checker
}

func (rp ReadyChecks) Check(ctx context.Context) error {
	for name, c := range rp.Checks {
		if c == nil {
			continue
		}
		if err := c.Check(ctx); err != nil {
			return &dependencyError{name: name, err: err}
		}
	}
	return nil
}

type dependencyError struct {
	name string
	err  error
}

func (e *dependencyError) Error() string { return e.name + ": " + e.err.Error() }
func (e *dependencyError) Unwrap() error { return e.err }

// Deps wires the API to its collaborators.
type Deps struct {
	Resolver  *widget.Resolver
	Renderer  *widget.Renderer
	Auth      *auth.Service
	Documents documents.Service
	Stream    *stream.Stream
	Ready     Checker
	Version   string
}

// Options tunes request hardening.
type Options struct {
	CORSOrigins   []string
	RateBurst     int
	RatePerSecond int
	MaxBodyBytes  int64
}

// API is the HTTP layer.
type API struct {
	router chi.Router
	deps   Deps
	opts   Options
}

func New(deps Deps, opts Options) *API {
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 10
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	a := &API{router: chi.NewRouter(), deps: deps, opts: opts}
	a.routes()
	return a
}

func (a *API) routes() {
	r := a.router
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, reasonNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, reasonBadRequest, "method not allowed")
	})

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Handle("/metrics", obs.Handler())

	r.Get("/script/widget/config/{widgetId}", a.handleWidgetConfig)
	r.Get("/js/bundle_{locale}.js", a.handleBundle)

	limited := func(next http.Handler) http.Handler {
		return RateLimit(next, a.opts.RateBurst, a.opts.RatePerSecond)
	}
	r.With(limited).Post("/auth", a.handleAuth)

	r.Group(func(r chi.Router) {
		r.Use(a.sessionGuard)
		r.Post("/api/save", a.handleSave)
		r.Get("/api/get-json/{title}", a.handleGet)
		r.Get("/api/list-json-titles", a.handleList)
		r.Post("/api/rename-json", a.handleRename)
		r.Delete("/api/delete-json/{title}", a.handleDelete)
	})
	// EventSource cannot send headers, so the stream also takes ?session=.
	r.With(sessionFromQuery, a.sessionGuard).Get("/api/events", a.handleEvents)

	r.Get("/{widgetId}", a.handleLoader)
}

// Handler returns the full middleware stack around the router.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = CORS(h, a.opts.CORSOrigins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.deps.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if a.deps.Ready != nil {
		if err := a.deps.Ready.Check(ctx); err != nil {
			obs.SetReady(false)
			obs.Logger().Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
