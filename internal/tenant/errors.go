package tenant

import "errors"

var (
	ErrNotFound      = errors.New("tenant: not found")
	ErrAlreadyExists = errors.New("tenant: already exists")
	ErrInvalidInput  = errors.New("tenant: invalid input")
)
