// Package apperror carries the error taxonomy shared by every handler:
// a Kind decides the HTTP status, the Message is what the client sees.
package apperror

import (
	"errors"
	"net/http"

	"codentor-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindUpstream
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	case KindConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

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

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error      { return New(KindValidation, message) }
func Unauthenticated(message string) *Error { return New(KindUnauthenticated, message) }
func Forbidden(message string) *Error       { return New(KindForbidden, message) }
func NotFound(message string) *Error        { return New(KindNotFound, message) }
func Conflict(message string) *Error        { return New(KindConflict, message) }
func Configuration(message string) *Error   { return New(KindConfiguration, message) }

func Upstream(message string, err error) *Error {
	return Wrap(KindUpstream, message, err)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	case KindConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes {"error": message}. Internal errors never leak their text.
func Respond(c *gin.Context, err error) {
	status := HTTPStatus(err)
	message := "internal server error"

	var appErr *Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).WithError(err).
			WithField("path", c.FullPath()).Error("[HTTP] Request failed")
	}
	c.JSON(status, gin.H{"error": message})
}
