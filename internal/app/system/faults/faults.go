// internal/app/system/faults/faults.go

// Package faults defines the typed failure taxonomy shared by every engine
// entry point. Expected conditions (capacity, locked, expired, duplicate)
// come back as one of these kinds rather than as opaque errors, so callers
// can always explain why an action did not succeed.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies an expected failure.
type Kind int

const (
	// KindUnauthorized means the caller has no identity.
	KindUnauthorized Kind = iota + 1
	// KindNotFound means the entity is missing or not visible to the
	// caller's organization.
	KindNotFound
	// KindForbidden means the caller lacks the specific permission
	// (e.g. not the group leader).
	KindForbidden
	// KindConflict means the operation is valid in general but blocked by
	// current state: already in a group, group full or locked, duplicate
	// request, expired item.
	KindConflict
	// KindInvalidInput means missing or malformed fields.
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Error is a typed, expected failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.Message }

func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Message: msg} }
func NotFound(msg string) error     { return &Error{Kind: KindNotFound, Message: msg} }
func Forbidden(msg string) error    { return &Error{Kind: KindForbidden, Message: msg} }
func Conflict(msg string) error     { return &Error{Kind: KindConflict, Message: msg} }
func Invalid(msg string) error      { return &Error{Kind: KindInvalidInput, Message: msg} }

// Conflictf formats a conflict failure.
func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the failure kind, or 0 when err is not a faults.Error
// (an unexpected persistence failure, surfaced generically to the caller).
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

func IsNotFound(err error) bool  { return KindOf(err) == KindNotFound }
func IsForbidden(err error) bool { return KindOf(err) == KindForbidden }
func IsConflict(err error) bool  { return KindOf(err) == KindConflict }
func IsInvalid(err error) bool   { return KindOf(err) == KindInvalidInput }
