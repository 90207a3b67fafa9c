// Package apperrors holds the error taxonomy shared by services and the HTTP layer.
package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors. Wrap them with fmt.Errorf("...: %w", err) and match with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("insufficient permission")
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrAmbiguousAffiliate = errors.New("a single affiliate context is required")
	ErrUnauthorized       = errors.New("unauthorized")
)

// NotFound reports a missing entity, e.g. "affiliate not found".
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

// Forbidden reports a failed authorization or membership check.
func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// ConflictError is returned when a delete is refused because dependents exist.
type ConflictError struct {
	Entity        string
	Name          string
	Dependents    int64
	DependentKind string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot delete %s %q: %d %s still assigned", e.Entity, e.Name, e.Dependents, e.DependentKind)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ValidationError carries per-field messages.
type ValidationError struct {
	Fields map[string]string
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Add records another field error and returns the receiver.
func (e *ValidationError) Add(field, msg string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
	return e
}

// Empty reports whether no field errors were recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
