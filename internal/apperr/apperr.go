package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

type Kind int

const (
	KindTransient Kind = iota
	KindValidation
	KindNotFound
	KindAccessDenied
	KindUnregistered
	KindUnauthorized
	KindConflict
)

var kindCodes = map[Kind]string{
	KindTransient:    "server_error",
	KindValidation:   "validation_error",
	KindNotFound:     "not_found",
	KindAccessDenied: "access_denied",
	KindUnregistered: "unregistered_connection",
	KindUnauthorized: "unauthorized",
	KindConflict:     "conflict",
}

var kindStatus = map[Kind]int{
	KindTransient:    http.StatusInternalServerError,
	KindValidation:   http.StatusBadRequest,
	KindNotFound:     http.StatusNotFound,
	KindAccessDenied: http.StatusForbidden,
	KindUnregistered: http.StatusUnauthorized,
	KindUnauthorized: http.StatusUnauthorized,
	KindConflict:     http.StatusConflict,
}

func (k Kind) String() string {
	return kindCodes[k]
}

// Error is the application error carried from the core to the HTTP and
// websocket surfaces. Only Message and Field are ever shown to clients.
type Error struct {
	Kind    Kind   `json:"-"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Err     error  `json:"-"`
}

// Sentinels for errors.Is. Matching is by Kind only.
var (
	ErrTransient    = &Error{Kind: KindTransient}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrAccessDenied = &Error{Kind: KindAccessDenied}
	ErrUnregistered = &Error{Kind: KindUnregistered}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrConflict     = &Error{Kind: KindConflict}
)

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func (e *Error) Code() string {
	return e.Kind.String()
}

func (e *Error) HTTPStatus() int {
	return kindStatus[e.Kind]
}

func AccessDenied(msg string) *Error {
	if msg == "" {
		msg = "Access denied"
	}
	return &Error{Kind: KindAccessDenied, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Field: field}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func Unregistered() *Error {
	return &Error{Kind: KindUnregistered, Message: "User not registered"}
}

// Transient wraps a store or infrastructure failure. The cause is kept for
// logging but clients only ever see "Server error".
func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Message: "Server error", Err: err}
}

// From converts any error into an *Error, treating unknown errors as
// transient.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Transient(err)
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// WriteJSON writes err as a {success:false} JSON body with the matching
// HTTP status.
func WriteJSON(w http.ResponseWriter, err error) {
	e := From(err)
	msg := e.Message
	if e.Kind == KindTransient {
		msg = "Server error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatus())
	_ = json.NewEncoder(w).Encode(envelope{Message: msg, Field: e.Field})
}
