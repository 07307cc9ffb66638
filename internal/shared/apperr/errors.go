package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how callers are expected to react to it
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindTransient    Kind = "transient"
	KindFatal        Kind = "fatal"
)

// Machine readable codes surfaced to API clients
const (
	CodeInvalidInput       = "invalid_input"
	CodeInvalidSeat        = "invalid_seat"
	CodeOccurrenceNotFound = "occurrence_not_found"
	CodeSeatNotFound       = "seat_not_found"
	CodeOrderNotFound      = "order_not_found"
	CodeHoldConflict       = "hold_conflict"
	CodeHoldExpired        = "hold_expired"
	CodeSeatUnavailable    = "seat_unavailable"
	CodePromoRejected      = "promo_rejected"
	CodeIdentityUnresolved = "identity_unresolved"
	CodeCurrencyMismatch   = "currency_mismatch"
	CodePaymentUnavailable = "payment_unavailable"
	CodeStoreUnavailable   = "store_unavailable"
	CodeInvariantViolated  = "invariant_violated"
	CodeUnauthorized       = "unauthorized"
	CodeForbidden          = "forbidden"
	CodeAlreadyExists      = "already_exists"
)

// Error is the application error carried across service boundaries
type Error struct {
	Kind    Kind                   `json:"kind"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by kind and code so sentinel comparisons work
// on errors enriched with fields or causes.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// WithField returns a copy of the error with an additional field
func (e *Error) WithField(key string, value interface{}) *Error {
	fields := make(map[string]interface{}, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields[key] = value
	cp := *e
	cp.Fields = fields
	return &cp
}

// WithCause returns a copy of the error wrapping cause
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.Cause = cause
	return &cp
}

// HTTPStatus maps the error kind to a response status code
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation creates a validation error
func Validation(code, message string) *Error {
	return newError(KindValidation, code, message)
}

// NotFound creates a not found error
func NotFound(code, message string) *Error {
	return newError(KindNotFound, code, message)
}

// Conflict creates a conflict error
func Conflict(code, message string) *Error {
	return newError(KindConflict, code, message)
}

// Unauthorized creates an authentication error
func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, CodeUnauthorized, message)
}

// Forbidden creates an authorization error
func Forbidden(message string) *Error {
	return newError(KindForbidden, CodeForbidden, message)
}

// Transient creates a retryable infrastructure error
func Transient(code, message string, cause error) *Error {
	return &Error{Kind: KindTransient, Code: code, Message: message, Cause: cause}
}

// Fatal creates an invariant violation error
func Fatal(message string, cause error) *Error {
	return &Error{Kind: KindFatal, Code: CodeInvariantViolated, Message: message, Cause: cause}
}

// As extracts an *Error from err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindFatal for unclassified errors
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindFatal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// HasCode reports whether err carries the given code
func HasCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
