package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and HTTP mapping
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindDuplicateTip  Kind = "duplicate_tip"
	KindExternalFetch Kind = "external_fetch"
	KindValidation    Kind = "validation"
	KindInternal      Kind = "internal"
)

// Error is the error type returned across package boundaries
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry the failed operation
func (e *Error) Retryable() bool {
	return e.Kind == KindExternalFetch
}

// NotFound is returned when a creator or other entity does not exist
func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

// DuplicateTip is returned when a transaction hash is already recorded
func DuplicateTip(op, txHash string, err error) *Error {
	return &Error{Kind: KindDuplicateTip, Op: op, Message: "tip already recorded for " + txHash, Err: err}
}

// ExternalFetch wraps a transient failure of the social or AI backends
func ExternalFetch(op string, err error) *Error {
	return &Error{Kind: KindExternalFetch, Op: op, Message: "external fetch failed", Err: err}
}

// Validation is returned for malformed input
func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// Internal wraps unexpected storage and programming failures
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: "internal error", Err: err}
}

// KindOf returns the Kind of the first *Error in the chain, KindInternal otherwise
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// HTTPStatus maps an error onto the status code the API responds with
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicateTip:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindExternalFetch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
