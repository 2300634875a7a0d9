package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind categorizes failures surfaced by the engine.
type ErrorKind string

const (
	// KindValidation covers smart-code failures, typed-field mismatches and
	// missing tenant scope.
	KindValidation ErrorKind = "validation"

	// KindConflict covers uniqueness violations, illegal status transitions,
	// relationship cycles and duplicate active exclusive relationships.
	KindConflict ErrorKind = "conflict"

	// KindNotFound covers records that are absent or outside the caller's tenant.
	KindNotFound ErrorKind = "not_found"

	// KindIntegrity covers rolled-back bulk batches and amounts that fail to reconcile.
	KindIntegrity ErrorKind = "integrity"

	// KindDependency covers integration checks that found a required
	// system-registered provider missing.
	KindDependency ErrorKind = "dependency"

	// KindTenantIsolation is kept apart from KindNotFound so callers can never
	// confuse a scope violation with an ordinary miss.
	KindTenantIsolation ErrorKind = "tenant_isolation"

	// KindInternal wraps storage or programming failures.
	KindInternal ErrorKind = "internal"
)

// Error is the single typed error returned by every layer of the core.
//
// Field names the offending input (e.g. "smart_code", "items[1].value").
// Details carries structured context such as the expected grammar or the
// allowed next states of a transition.
type Error struct {
	Kind    ErrorKind
	Message string
	Field   string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Field != "" {
		fmt.Fprintf(&b, " (field=%s)", e.Field)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail returns e after setting a detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Validation creates a validation error.
func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict error.
func Conflict(field, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found error for a record kind and id.
func NotFound(what, id string) *Error {
	return &Error{Kind: KindNotFound, Field: what, Message: fmt.Sprintf("%s %q not found", what, id)}
}

// Integrity creates an integrity error wrapping cause.
func Integrity(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindIntegrity, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Dependency creates a dependency error.
func Dependency(field, format string, args ...any) *Error {
	return &Error{Kind: KindDependency, Field: field, Message: fmt.Sprintf(format, args...)}
}

// TenantIsolation creates a tenant isolation error. The message never names
// the foreign tenant.
func TenantIsolation(format string, args ...any) *Error {
	return &Error{Kind: KindTenantIsolation, Field: "organization_id", Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure.
func Internal(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// AsError extracts the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
// Returns "" for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return IsKind(err, KindConflict) }
