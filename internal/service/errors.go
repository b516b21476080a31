// Package service contains the identity core: credential verification,
// token issuance and rotation, multi-provider identity linking, merging,
// and the role authorization policy. Services are stateless; every
// operation is a request/response transformation over the stores.
package service

import (
	"errors"
	"net/http"
)

// Kind classifies a service failure. Every error surfaced by this package
// is one of these five; handlers map them onto HTTP status codes and
// nothing else leaks to clients.
type Kind int

const (
	KindBadRequest   Kind = iota // malformed input or policy violation
	KindUnauthorized             // bad or expired credentials/tokens
	KindForbidden                // authenticated but not permitted
	KindNotFound                 // target does not exist
	KindConflict                 // uniqueness or identity-overlap violation
)

// Error is the typed failure returned by all services.
type Error struct {
	Kind    Kind
	Message string
	// Details carries per-field validation messages (password strength).
	Details []string
}

func (e *Error) Error() string { return e.Message }

// HTTPStatus maps the error kind to its response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func BadRequest(msg string) *Error   { return &Error{Kind: KindBadRequest, Message: msg} }
func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }
func Forbidden(msg string) *Error    { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error     { return &Error{Kind: KindConflict, Message: msg} }

// AsError extracts a service error, if err is one.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsKind reports whether err is a service error of the given kind.
func IsKind(err error, k Kind) bool {
	se, ok := AsError(err)
	return ok && se.Kind == k
}
