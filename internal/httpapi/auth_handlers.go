package httpapi

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"jsonwidget.org/internal/audit"
	"jsonwidget.org/internal/auth"
	"jsonwidget.org/internal/obs"
)

type authRequest struct {
	Token    string `json:"token"`
	WidgetID string `json:"widgetId"`
}

type authResponse struct {
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (a *API) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := decodeJSON(r, &req); err != nil {
		obs.ObserveAuth(reasonBadRequest)
		badBody(w, r, err)
		return
	}

	session, err := a.deps.Auth.Authenticate(r.Context(), req.Token, req.WidgetID)
	if err != nil {
		result := authResult(err)
		obs.ObserveAuth(result)
		fields := []zap.Field{zap.String("widget_id", req.WidgetID), zap.String("result", result)}
		var rej *auth.Rejection
		if errors.As(err, &rej) {
			fields = append(fields, zap.String("step", string(rej.Step)), zap.String("cause", rej.Err.Error()))
		}
		_ = audit.LogEvent(r.Context(), audit.EventSessionRejected, fields...)
		handleAuthError(w, r, err)
		return
	}

	obs.ObserveAuth("ok")
	ctx := auth.ContextWithUser(r.Context(), session.UserID)
	_ = audit.LogEvent(ctx, audit.EventSessionIssued,
		zap.String("widget_id", req.WidgetID),
		zap.String("session", obs.Redact(session.ID)),
		zap.Time("expires_at", session.ExpiresAt),
	)
	writeJSON(w, http.StatusOK, authResponse{SessionID: session.ID, ExpiresAt: session.ExpiresAt})
}

func authResult(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		return reasonBadRequest
	case errors.Is(err, auth.ErrUserNotLinked):
		return reasonUserNotLinked
	case errors.Is(err, auth.ErrInvalidToken):
		return reasonInvalidToken
	default:
		return reasonInternal
	}
}
