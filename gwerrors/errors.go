// Package gwerrors defines the gateway's error taxonomy. Errors are
// identified by Kind rather than Go type so handlers can map them onto a
// stable wire format without type assertions.
package gwerrors

import "fmt"

// Kind classifies a gateway-level failure.
type Kind string

const (
	KindBadKeyFormat Kind = "bad_key_format"
	KindMissingKey   Kind = "missing_key"
	KindUnknownKey   Kind = "unknown_key"
	KindForbidden    Kind = "forbidden"
	KindInvalidInput Kind = "invalid_input"
	KindRateLimited  Kind = "rate_limited"
	KindQuotaExceeded Kind = "quota_exceeded"
	KindStorageError Kind = "storage_error"
	KindScopeTooBroad Kind = "scope_too_broad"
	KindInvalidScope Kind = "invalid_scope"
	KindInternal     Kind = "internal_error"
)

// Error is the gateway's canonical error shape. It carries a Kind for
// programmatic dispatch, human-readable Details, and an optional
// RetryAfter hint (populated for KindRateLimited).
type Error struct {
	Kind        Kind
	Details     string
	RetryAfter  int // seconds; 0 when not applicable
	CorrelationID string
	cause       error
}

func (e *Error) Error() string {
	if e.Details == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Details)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with the given kind and formatted details.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Details: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and message to an underlying error, preserving it
// for errors.Unwrap/errors.Is chains.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Details: fmt.Sprintf(format, args...), cause: cause}
}

// RateLimited builds a KindRateLimited error carrying a retry hint.
func RateLimited(retryAfterSeconds int) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Details:    "rate limit exceeded",
		RetryAfter: retryAfterSeconds,
	}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	ge, ok := err.(*Error)
	return ok && ge.Kind == kind
}

// StatusCode maps a Kind onto the conventional HTTP status used by the
// REST handlers in httpapi.
func (k Kind) StatusCode() int {
	switch k {
	case KindMissingKey, KindBadKeyFormat, KindUnknownKey:
		return 401
	case KindForbidden:
		return 403
	case KindInvalidInput, KindInvalidScope, KindScopeTooBroad:
		return 400
	case KindRateLimited:
		return 429
	case KindQuotaExceeded:
		return 402
	case KindStorageError:
		return 502
	default:
		return 500
	}
}
