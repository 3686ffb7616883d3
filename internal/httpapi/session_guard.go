package httpapi

import (
	"net/http"

	"jsonwidget.org/internal/auth"
)

const sessionHeader = "x-session-id"

// sessionGuard resolves x-session-id to a user and attaches it to the
// request context. It performs no further authorization.
func (a *API) sessionGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(sessionHeader)
		userID, err := a.deps.Auth.Resolve(r.Context(), sessionID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		ctx := auth.ContextWithUser(r.Context(), userID)
		ctx = auth.ContextWithSession(ctx, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(sessionHeader) == "" {
			if s := r.URL.Query().Get("session"); s != "" {
				r = r.Clone(r.Context())
				r.Header.Set(sessionHeader, s)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}
