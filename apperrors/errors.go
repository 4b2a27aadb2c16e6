package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindGateway      Kind = "gateway"
	KindStore        Kind = "store"
	KindVerification Kind = "verification_failed"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// Error represents an application error
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(kind Kind, code int, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func Validation(message string) *Error {
	return New(KindValidation, http.StatusBadRequest, message, nil)
}

func NotFound(message string) *Error {
	return New(KindNotFound, http.StatusNotFound, message, nil)
}

// Gateway wraps a payment gateway failure. The message is surfaced to the client.
func Gateway(message string, err error) *Error {
	return New(KindGateway, http.StatusInternalServerError, message, err)
}

func Store(message string, err error) *Error {
	return New(KindStore, http.StatusInternalServerError, message, err)
}

// VerificationFailed is returned when a payment signature does not match.
// It is a client error, not a transport failure.
func VerificationFailed(message string) *Error {
	return New(KindVerification, http.StatusBadRequest, message, nil)
}

// Conflict is returned when an order is no longer in the state an operation
// requires.
func Conflict(message string) *Error {
	return New(KindConflict, http.StatusConflict, message, nil)
}

func Internal(message string, err error) *Error {
	return New(KindInternal, http.StatusInternalServerError, message, err)
}

// From returns err as an *Error, classifying anything unknown as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("Internal server error", err)
}

// Is reports whether err is an application error of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
