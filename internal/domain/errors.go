package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientHoldings is returned when a sell exceeds the held quantity.
	ErrInsufficientHoldings = errors.New("insufficient holdings to sell")

	// ErrMissingRequiredField is returned for malformed input to a mutating
	// operation. Use FieldError to name the offending field.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrNotFound is returned when a referenced goal, asset or holding is absent.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamPriceUnavailable is returned by price providers. It is never
	// fatal to a trade.
	ErrUpstreamPriceUnavailable = errors.New("upstream price unavailable")
)

// FieldError describes an invalid or missing input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", ErrMissingRequiredField, e.Field)
	}
	return fmt.Sprintf("%s: %s %s", ErrMissingRequiredField, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrMissingRequiredField.
func (e *FieldError) Unwrap() error {
	return ErrMissingRequiredField
}

// MissingField builds a FieldError for an absent field.
func MissingField(field string) error {
	return &FieldError{Field: field}
}

// InvalidField builds a FieldError for a present but unusable field.
func InvalidField(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// NotFoundError wraps ErrNotFound with the kind and key of the missing entity.
func NotFoundError(kind, key string) error {
	return fmt.Errorf("%s %q: %w", kind, key, ErrNotFound)
}
