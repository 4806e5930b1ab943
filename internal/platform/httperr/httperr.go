package httperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Kind is the closed set of domain error categories. Every error that
// crosses a handler boundary is one of these; Status maps each to exactly
// one HTTP status code.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not-found"
	KindConflict        Kind = "conflict"
	KindGone            Kind = "gone"
	KindRateLimited     Kind = "rate-limited"
	KindInternal        Kind = "internal"
	KindUnavailable     Kind = "unavailable"
)

// Status maps an error kind to its HTTP status code.
func Status(k Kind) int {
	switch k {
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
	case KindGone:
		return http.StatusGone
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a kind, a client-safe message, and optional
// field-level validation details.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	// Extra holds additional keys merged into the response body
	// (e.g. monthlyLimit on quota rejections).
	Extra map[string]any
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error of the given kind.
func New(k Kind, msg string) *Error {
	return &Error{Kind: k, Message: msg}
}

// Wrap creates an Error that preserves the underlying cause for logging
// while exposing only msg to clients.
func Wrap(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Message: msg, cause: cause}
}

// Validation creates a 400 error carrying field-level details.
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// WithExtra attaches additional response-body keys to the error.
func (e *Error) WithExtra(key string, value any) *Error {
	if e.Extra == nil {
		e.Extra = map[string]any{}
	}
	e.Extra[key] = value
	return e
}

// KindOf returns the kind of err, or KindInternal for unrecognized errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Handler returns an echo HTTPErrorHandler that renders every error as a
// {message, errors?} JSON body with the status from Status. Unrecognized
// errors become opaque 500s; echo's own HTTPErrors keep their status.
func Handler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := map[string]any{"message": "internal server error"}

		var de *Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &de):
			status = Status(de.Kind)
			body["message"] = de.Message
			if len(de.Fields) > 0 {
				body["errors"] = de.Fields
			}
			for k, v := range de.Extra {
				body[k] = v
			}
		case errors.As(err, &he):
			status = he.Code
			body["message"] = fmt.Sprintf("%v", he.Message)
		}

		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}
