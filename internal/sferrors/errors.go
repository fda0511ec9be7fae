// Package sferrors carries the error-kind taxonomy spec.md §7 requires the
// core to surface to its HTTP caller. The teacher inlines an HTTP status
// per call site (internal/http/agents.go: writeJSON(w, http.StatusNotFound, ...));
// this package generalizes that into a typed error any caller can test with
// errors.As and map to a status without re-deriving the mapping itself.
package sferrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the error kinds enumerated in spec.md §6/§7.
type Kind string

const (
	KindNotFound          Kind = "NotFound"
	KindInvalidSessionID  Kind = "InvalidSessionId"
	KindSourceUnavailable Kind = "SourceUnavailable"
	KindWriteConflict     Kind = "WriteConflict"
	KindIOError           Kind = "IOError"
)

// statusFor maps each kind to the HTTP status the external router surfaces.
var statusFor = map[Kind]int{
	KindNotFound:          http.StatusNotFound,
	KindInvalidSessionID:  http.StatusBadRequest,
	KindSourceUnavailable: http.StatusServiceUnavailable,
	KindWriteConflict:     http.StatusConflict,
	KindIOError:           http.StatusInternalServerError,
}

// Error wraps an underlying cause with one of the core's error kinds.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status the external router should respond
// with for this error kind.
func (e *Error) StatusCode() int {
	if s, ok := statusFor[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func New(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func NotFound(msg string, cause error) *Error {
	return New(KindNotFound, msg, cause)
}

func InvalidSessionID(msg string) *Error {
	return New(KindInvalidSessionID, msg, nil)
}

func SourceUnavailable(msg string, cause error) *Error {
	return New(KindSourceUnavailable, msg, cause)
}

func WriteConflict(msg string, cause error) *Error {
	return New(KindWriteConflict, msg, cause)
}

func IOError(msg string, cause error) *Error {
	return New(KindIOError, msg, cause)
}

// StatusCode returns the HTTP status for any error, defaulting to 500 if
// it isn't a *Error.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode()
	}
	return http.StatusInternalServerError
}
