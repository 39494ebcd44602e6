package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	ValidationFailed
	AuthenticationRequired
	Unauthorized
	NotFound
	Conflict
	StoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case ValidationFailed:
		return "validation_failed"
	case AuthenticationRequired:
		return "authentication_required"
	case Unauthorized:
		return "unauthorized"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case StoreUnavailable:
		return "store_unavailable"
	default:
		return "internal"
	}
}

// Error 是服务层返回给 handler 的统一错误类型，Message 可以直接展示给用户
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error { return New(ValidationFailed, message) }
func NotFoundError(message string) *Error { return New(NotFound, message) }
func Unavailable(err error) *Error { return Wrap(StoreUnavailable, "Service temporarily unavailable", err) }
func AuthRequired() *Error { return New(AuthenticationRequired, "Authentication required") }
func Forbidden() *Error { return New(Unauthorized, "Unauthorized") }
func ConflictWith(message string) *Error { return New(Conflict, message) }

// KindOf returns Internal for errors that are not *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message 返回可展示的错误信息，非 *Error 时返回通用提示
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case ValidationFailed:
		return http.StatusBadRequest
	case AuthenticationRequired:
		return http.StatusUnauthorized
	case Unauthorized:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case StoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
