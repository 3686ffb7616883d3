package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"jsonwidget.org/internal/widget"
)

const (
	scriptContentType = "application/javascript; charset=utf-8"
	scriptCache       = "public, max-age=86400"
)

func (a *API) handleWidgetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.deps.Resolver.Resolve(r.Context(), chi.URLParam(r, "widgetId"))
	if err != nil {
		handleWidgetError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, cfg)
}

func (a *API) handleBundle(w http.ResponseWriter, r *http.Request) {
	locale := chi.URLParam(r, "locale")
	body, ok := a.deps.Renderer.Bundle(locale)
	if !ok || !a.deps.Resolver.SupportsLocale(locale) {
		writeError(w, r, http.StatusNotFound, reasonNotFound, "unsupported locale")
		return
	}
	writeScript(w, body)
}

// handleLoader serves the Loader script for an existing, active widget.
func (a *API) handleLoader(w http.ResponseWriter, r *http.Request) {
	if _, err := a.deps.Resolver.Lookup(r.Context(), chi.URLParam(r, "widgetId")); err != nil {
		handleWidgetError(w, r, err)
		return
	}
	writeScript(w, a.deps.Renderer.Loader())
}

func writeScript(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", scriptContentType)
	w.Header().Set("Cache-Control", scriptCache)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func handleWidgetError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, widget.ErrInvalidID):
		writeError(w, r, http.StatusBadRequest, reasonBadRequest, err.Error())
	case errors.Is(err, widget.ErrNotFound):
		writeError(w, r, http.StatusNotFound, reasonNotFound, err.Error())
	default:
		internalError(w, r, err)
	}
}
