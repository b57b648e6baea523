// Package apperr defines the error taxonomy shared by the account and bookmark
// components and translated to HTTP status codes by the api package.
package apperr

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrNotFound is returned when a record does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrAuthentication is returned for a failed credential check or an inactive account.
	ErrAuthentication = errors.New("authentication failed")
	// ErrPermission is returned when the caller is not allowed to perform an action.
	ErrPermission = errors.New("permission denied")
)

// ValidationError reports malformed, missing or duplicate input.
// Fields maps the offending field name to a human readable message.
type ValidationError struct {
	Fields map[string]string
}

// NewValidation creates a ValidationError for a single field.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records another invalid field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

// Empty reports whether no field was recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// OrNil returns nil if nothing was recorded, so callers can return it directly.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// NotFound wraps ErrNotFound with the kind of record that was missing.
func NotFound(kind string, id any) error {
	return fmt.Errorf("%s %v: %w", kind, id, ErrNotFound)
}

// Code returns the taxonomy name of err, used in API error bodies.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return "validation_error"
	case errors.Is(err, ErrAuthentication):
		return "authentication_error"
	case errors.Is(err, ErrPermission):
		return "permission_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal_error"
	}
}
