package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"jsonwidget.org/internal/auth"
	"jsonwidget.org/internal/documents"
	"jsonwidget.org/internal/obs"
)

// Machine-readable reason codes carried in every error body.
const (
	reasonBadRequest     = "bad_request"
	reasonInvalidToken   = "invalid_token"
	reasonUserNotLinked  = "user_not_linked"
	reasonMissingSession = "missing_session"
	reasonSessionExpired = "session_expired"
	reasonNotFound       = "not_found"
	reasonTitleConflict  = "title_conflict"
	reasonRateLimited    = "rate_limited"
	reasonTooLarge       = "too_large"
	reasonInternal       = "internal"
)

func writeError(w http.ResponseWriter, r *http.Request, code int, reason, msg string) {
	payload := map[string]any{
		"error":  msg,
		"reason": reason,
	}
	if rid := RequestIDFromContext(r); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	obs.Logger().Error("request failed",
		zap.String("request_id", RequestIDFromContext(r)),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, r, http.StatusInternalServerError, reasonInternal, "internal error")
}

var errBodyRequired = errors.New("request body is required")

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errBodyRequired
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func badBody(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, r, http.StatusRequestEntityTooLarge, reasonTooLarge, "request body too large")
		return
	}
	writeError(w, r, http.StatusBadRequest, reasonBadRequest, "invalid JSON body: "+err.Error())
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, reasonBadRequest, "token and widgetId are required")
	case errors.Is(err, auth.ErrUserNotLinked):
		writeError(w, r, http.StatusForbidden, reasonUserNotLinked, "user not linked to this widget")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, reasonInvalidToken, "invalid token")
	case errors.Is(err, auth.ErrSessionMissing):
		writeError(w, r, http.StatusUnauthorized, reasonMissingSession, "missing x-session-id header")
	case errors.Is(err, auth.ErrSessionExpired):
		writeError(w, r, http.StatusUnauthorized, reasonSessionExpired, "session expired or unknown")
	default:
		internalError(w, r, err)
	}
}

func handleDocumentError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, documents.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, reasonBadRequest, err.Error())
	case errors.Is(err, documents.ErrNotFound):
		writeError(w, r, http.StatusNotFound, reasonNotFound, err.Error())
	case errors.Is(err, documents.ErrTitleConflict):
		writeError(w, r, http.StatusConflict, reasonTitleConflict, err.Error())
	default:
		internalError(w, r, err)
	}
}
