package client

import (
	"errors"
	"fmt"
	"net/http"

	"jsonwidget.org/internal/auth"
	"jsonwidget.org/internal/documents"
	"jsonwidget.org/internal/widget"
)

// ErrTransport marks failures that never produced an HTTP response.
var ErrTransport = errors.New("client: transport failure")

// APIError is a non-2xx answer decoded from the JSON error envelope.
type APIError struct {
	Status    int    `json:"-"`
	Message   string `json:"error"`
	Reason    string `json:"reason"`
	RequestID string `json:"request_id"`
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("api %d %s: %s (request %s)", e.Status, e.Reason, e.Message, e.RequestID)
	}
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Reason, e.Message)
}

// Unwrap maps the reason code onto the sentinel errors of the server packages.
func (e *APIError) Unwrap() error {
	switch e.Reason {
	case "invalid_token":
		return auth.ErrInvalidToken
	case "user_not_linked":
		return auth.ErrUserNotLinked
	case "missing_session":
		return auth.ErrSessionMissing
	case "session_expired":
		return auth.ErrSessionExpired
	case "title_conflict":
		return documents.ErrTitleConflict
	case "bad_request":
		return documents.ErrInvalidInput
	case "not_found":
		if e.Status == http.StatusNotFound {
			return documents.ErrNotFound
		}
	}
	return nil
}

// unauthenticated reports whether err means the backend no longer accepts the session.
func unauthenticated(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

func widgetMissing(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", widget.ErrNotFound, err)
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %v", widget.ErrInvalidID, err)
		}
	}
	return err
}
