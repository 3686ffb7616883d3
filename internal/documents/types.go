package documents

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Document is a saved JSON payload with its linked JSON Schema. Schema is
// nil when no schema row is linked.
type Document struct {
	Title     string          `json:"title"`
	Data      json.RawMessage `json:"json"`
	Schema    json.RawMessage `json:"schema"`
	CreatedAt time.Time       `json:"-"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Summary is one entry of a user's saved-document list.
type Summary struct {
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var (
	ErrNotFound      = errors.New("document not found")
	ErrTitleConflict = errors.New("a document with that title already exists")
	ErrInvalidInput  = errors.New("title, data and schema are required")
)

// ValidateSave checks the inputs of a save. data and schema must be
// present and must not be JSON null.
func ValidateSave(title string, data, schema json.RawMessage) error {
	if strings.TrimSpace(title) == "" {
		return ErrInvalidInput
	}
	if isAbsent(data) || isAbsent(schema) {
		return ErrInvalidInput
	}
	if !json.Valid(data) || !json.Valid(schema) {
		return ErrInvalidInput
	}
	return nil
}

// ValidateRename checks that both titles are non-blank.
func ValidateRename(oldTitle, newTitle string) error {
	if strings.TrimSpace(oldTitle) == "" || strings.TrimSpace(newTitle) == "" {
		return ErrInvalidInput
	}
	return nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Compact normalises a JSON value so that identical resaves store identical bytes.
func Compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append(json.RawMessage(nil), raw...)
	}
	return buf.Bytes()
}
