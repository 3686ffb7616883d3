package auth

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("auth: token and widgetId are required")

	// ErrInvalidToken covers unknown widgets, bad signatures, expired or
	// malformed tokens. Callers cannot tell these apart on purpose.
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrUnknownWidget  = fmt.Errorf("%w: widget not found", ErrInvalidToken)
	ErrMissingSubject = fmt.Errorf("%w: no subject claim", ErrInvalidToken)

	ErrUserNotLinked = errors.New("auth: user not linked to this widget")

	ErrSessionMissing = errors.New("auth: session header missing")
	ErrSessionExpired = errors.New("auth: session expired or unknown")
)

// Rejection records the step of the token exchange that refused the request.
type Rejection struct {
	Step Step
	Err  error
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("auth: rejected at %s: %v", r.Step, r.Err)
}

func (r *Rejection) Unwrap() error { return r.Err }

func reject(step Step, err error) error {
	return &Rejection{Step: step, Err: err}
}
