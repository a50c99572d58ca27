// Package classify maps raw transport failures and upstream responses to
// machine-usable error kinds with human-safe messages.
package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

type Kind string

const (
	Network      Kind = "network"
	Timeout      Kind = "timeout"
	Cancelled    Kind = "cancelled"
	Unauthorized Kind = "unauthorized"
	Forbidden    Kind = "forbidden"
	NotFound     Kind = "not_found"
	RateLimited  Kind = "rate_limited"
	ServerError  Kind = "server_error"
	ClientError  Kind = "client_error"
	Unknown      Kind = "unknown"
)

// APIError is the terminal, caller-facing form of a failed request.
type APIError struct {
	Kind    Kind
	Message string
	Status  int
	Silent  bool
	cause   error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

var fallbackMessages = map[Kind]string{
	Network:      "cannot reach the server, check your connection",
	Timeout:      "the request timed out, please try again",
	Cancelled:    "request cancelled",
	Unauthorized: "you are not authorized, please log in again",
	Forbidden:    "you do not have permission to do that",
	NotFound:     "the requested resource was not found",
	RateLimited:  "too many requests, please slow down",
	ServerError:  "the server ran into a problem, please try again later",
	ClientError:  "the request could not be processed",
	Unknown:      "something went wrong",
}

// FallbackMessage returns the generic human-safe message for a kind
func FallbackMessage(kind Kind) string {
	msg, found := fallbackMessages[kind]
	if !found {
		return fallbackMessages[Unknown]
	}
	return msg
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return Unauthorized
	case status == http.StatusForbidden:
		return Forbidden
	case status == http.StatusNotFound:
		return NotFound
	case status == http.StatusRequestTimeout:
		return Timeout
	case status == http.StatusTooManyRequests:
		return RateLimited
	case status >= 500:
		return ServerError
	case status >= 400:
		return ClientError
	default:
		return Unknown
	}
}

// SessionExpired is the uniform caller-facing form of any refresh failure.
// The sub-kind of the failure never changes what the user is told.
func SessionExpired(cause error, silent bool) *APIError {
	return &APIError{
		Kind:    Unauthorized,
		Message: "your session has expired, please log in again",
		Silent:  silent,
		cause:   cause,
	}
}

// ClassifyError classifies a transport-level failure where no response was
// received. Cancellation and deadline signals take precedence over the
// generic connectivity case.
func ClassifyError(err error, silent bool) *APIError {
	kind := Network
	switch {
	case errors.Is(err, context.Canceled):
		kind = Cancelled
		silent = true
	case errors.Is(err, context.DeadlineExceeded):
		kind = Timeout
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			kind = Timeout
		}
	}
	return &APIError{
		Kind:    kind,
		Message: FallbackMessage(kind),
		Silent:  silent,
		cause:   err,
	}
}

// ClassifyResponse classifies an upstream response carrying an error status.
// The body is searched for a short human-readable message, anything that
// looks like leaked backend internals falls back to the generic message.
func ClassifyResponse(status int, body []byte, silent bool) *APIError {
	kind := kindForStatus(status)
	message := FallbackMessage(kind)
	if extracted, found := extractMessage(body); found {
		message = extracted
	}
	return &APIError{
		Kind:    kind,
		Message: message,
		Status:  status,
		Silent:  silent,
	}
}
