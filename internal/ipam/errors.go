package ipam

import (
	"errors"
	"fmt"
)

// Kind classifies every error the allocation core can raise. The set is
// closed: callers switch on the kind instead of matching error strings.
type Kind string

const (
	KindValidation            Kind = "validation_error"
	KindQuotaExceeded         Kind = "quota_exceeded"
	KindCapacityExhausted     Kind = "capacity_exhausted"
	KindConflictRetryExceeded Kind = "conflict_retry_exceeded"
	KindNotFound              Kind = "not_found"
	KindPermission            Kind = "permission_denied"
	KindConflict              Kind = "conflict"
	KindTransaction           Kind = "transaction_error"
	KindUnknown               Kind = "internal_error"
)

// Error carries the kind plus enough context (operation, user, resource,
// namespace) to be logged once at the orchestration boundary.
type Error struct {
	Kind     Kind
	Op       string // e.g. "allocate_region"
	UserID   string
	Resource string // resource or namespace identifier
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Resource != "" {
		s += fmt.Sprintf(" (resource=%s)", e.Resource)
	}
	if e.UserID != "" {
		s += fmt.Sprintf(" (user=%s)", e.UserID)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a tagged error.
func E(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds a tagged error around an underlying cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithUser attaches the acting user.
func (e *Error) WithUser(userID string) *Error {
	e.UserID = userID
	return e
}

// WithResource attaches the resource or namespace identifier.
func (e *Error) WithResource(id string) *Error {
	e.Resource = id
	return e
}

// KindOf extracts the kind from an error chain. Errors that did not
// originate in the core report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
