// Package apperr is the error taxonomy shared by the document and workspace
// services. Handlers map a Kind to an HTTP status; nothing else leaks out.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindPermission   Kind = "permission"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInvalidState Kind = "invalid_state"
	KindStorage      Kind = "storage"
)

// Error is a classified failure. Code is a stable machine-readable reason
// (e.g. "blob_not_found") and Err the wrapped backend cause, if any.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind, so errors.Is(err, apperr.NotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	Validation   = &Error{Kind: KindValidation}
	Permission   = &Error{Kind: KindPermission}
	NotFound     = &Error{Kind: KindNotFound}
	Conflict     = &Error{Kind: KindConflict}
	InvalidState = &Error{Kind: KindInvalidState}
	Storage      = &Error{Kind: KindStorage}
)

func newErr(kind Kind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Err: cause}
}

func NewValidation(code, msg string) *Error { return newErr(KindValidation, code, msg, nil) }
func NewPermission(code, msg string) *Error { return newErr(KindPermission, code, msg, nil) }
func NewNotFound(code, msg string) *Error   { return newErr(KindNotFound, code, msg, nil) }
func NewConflict(code, msg string, cause error) *Error {
	return newErr(KindConflict, code, msg, cause)
}
func NewInvalidState(code, msg string) *Error { return newErr(KindInvalidState, code, msg, nil) }
func NewStorage(code, msg string, cause error) *Error {
	return newErr(KindStorage, code, msg, cause)
}

// KindOf returns the Kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps err to the status the API returns. Unclassified errors are 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindPermission:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidState:
		return http.StatusConflict
	case KindStorage:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Body is the JSON error envelope written by handlers.
func Body(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return map[string]string{"error": e.Code, "message": e.Message}
	}
	return map[string]string{"error": "internal", "message": "internal server error"}
}
