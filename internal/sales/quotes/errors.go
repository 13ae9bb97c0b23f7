package quotes

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/polarline/hvacdesk/internal/platform/httpx"
)

var (
	ErrNotFound      = fmt.Errorf("quote: %w", httpx.ErrNotFound)
	ErrValidation    = fmt.Errorf("quote: %w", httpx.ErrValidation)
	ErrEmptyQuote    = fmt.Errorf("%w: add at least one line item", ErrValidation)
	ErrInvalidStatus = fmt.Errorf("quote: %w: status transition not allowed", httpx.ErrConflict)
	ErrIdentityTaken = fmt.Errorf("quote: %w: number already used by another quote", httpx.ErrConflict)
	ErrPersistence   = fmt.Errorf("quote: %w", httpx.ErrUpstream)
)

// ValidationError lists the fields that failed validation, keyed by their
// JSON path.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "quote: validation failed: " + strings.Join(parts, "; ")
}

// FieldErrors exposes the per-field messages to the HTTP layer.
func (e *ValidationError) FieldErrors() map[string]string { return e.Fields }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsValidation reports whether err is any kind of validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
