// Package apperror defines the error taxonomy shared by services and HTTP handlers.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

type Kind string

const (
	KindValidation      Kind = "VALIDATION_ERROR"
	KindAuthentication  Kind = "AUTHENTICATION_ERROR"
	KindAuthorization   Kind = "AUTHORIZATION_ERROR"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindExternalService Kind = "EXTERNAL_SERVICE_ERROR"
	KindInternal        Kind = "INTERNAL_ERROR"
)

// Error carries a Kind that maps onto an HTTP status, a client-safe message
// and optional structured details.
type Error struct {
	Kind    Kind
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// HTTPStatus returns the status code the kind is reported with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }

func Authentication(format string, args ...any) *Error {
	return newf(KindAuthentication, format, args...)
}

func Authorization(format string, args ...any) *Error {
	return newf(KindAuthorization, format, args...)
}

func NotFound(format string, args ...any) *Error { return newf(KindNotFound, format, args...) }

func Conflict(format string, args ...any) *Error { return newf(KindConflict, format, args...) }

// ExternalService wraps a failed vendor call.
func ExternalService(err error, format string, args ...any) *Error {
	e := newf(KindExternalService, format, args...)
	e.Err = err
	return e
}

func Internal(err error, format string, args ...any) *Error {
	e := newf(KindInternal, format, args...)
	e.Err = err
	return e
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf reports the kind of err, KindInternal for anything unclassified.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FromDB maps store errors onto the taxonomy so raw driver codes never reach clients.
// what names the record, e.g. "product abc".
func FromDB(err error, what string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", what), Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Kind: KindConflict, Message: fmt.Sprintf("%s already exists", what), Err: err}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return &Error{Kind: KindValidation, Message: fmt.Sprintf("%s references a missing record", what), Err: err}
	default:
		return &Error{Kind: KindInternal, Message: fmt.Sprintf("failed to access %s", what), Err: err}
	}
}
