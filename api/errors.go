// ABOUTME: Error taxonomy for the platform API transport client.
// ABOUTME: Maps HTTP status codes and transport failures to typed errors that keep the server's message.

package api

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind classifies an API error.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidRequest
	KindUnauthorized
	KindForbidden
	KindRateLimited
	KindServerError
	KindNetworkError
	KindTimeout
	KindAborted
	KindStaleDataServed
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindInvalidRequest:  "invalid_request",
	KindUnauthorized:    "unauthorized",
	KindForbidden:       "forbidden",
	KindRateLimited:     "rate_limited",
	KindServerError:     "server_error",
	KindNetworkError:    "network_error",
	KindTimeout:         "timeout",
	KindAborted:         "aborted",
	KindStaleDataServed: "stale_data_served",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// defaultMessage is used when the server did not send a readable message.
func (k Kind) defaultMessage() string {
	switch k {
	case KindInvalidRequest:
		return "the request was rejected as invalid"
	case KindUnauthorized:
		return "authentication failed; check the API key"
	case KindForbidden:
		return "the API key is not allowed to perform this action"
	case KindRateLimited:
		return "rate limit exceeded; try again shortly"
	case KindServerError:
		return "the server failed to handle the request"
	case KindNetworkError:
		return "could not reach the server"
	case KindTimeout:
		return "the request timed out"
	case KindAborted:
		return "the request was cancelled"
	case KindStaleDataServed:
		return "serving cached data after a failed refresh"
	default:
		return "request failed"
	}
}

// ErrStaleDataServed matches any StaleDataError via errors.Is.
var ErrStaleDataServed = errors.New("stale data served")

// APIError is the base type embedded by every API error.
type APIError struct {
	Kind       Kind
	Message    string
	Endpoint   string
	StatusCode int
	RetryAfter *float64
	Raw        json.RawMessage
	Cause      error
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Endpoint != "" {
		msg = e.Endpoint + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns false for the base APIError. Subtypes override this.
func (e *APIError) IsRetryable() bool {
	return false
}

// InvalidRequestError represents a 400 response. Not retryable.
type InvalidRequestError struct {
	APIError
}

func (e *InvalidRequestError) Error() string      { return e.APIError.Error() }
func (e *InvalidRequestError) Unwrap() error      { return e.APIError.Unwrap() }
func (e *InvalidRequestError) IsRetryable() bool  { return false }
func (e *InvalidRequestError) As(target any) bool { return asBase(&e.APIError, target) }

// UnauthorizedError represents a 401 response. Not retryable.
type UnauthorizedError struct {
	APIError
}

func (e *UnauthorizedError) Error() string      { return e.APIError.Error() }
func (e *UnauthorizedError) Unwrap() error      { return e.APIError.Unwrap() }
func (e *UnauthorizedError) IsRetryable() bool  { return false }
func (e *UnauthorizedError) As(target any) bool { return asBase(&e.APIError, target) }

// ForbiddenError represents a 403 response. Not retryable.
type ForbiddenError struct {
	APIError
}

func (e *ForbiddenError) Error() string      { return e.APIError.Error() }
func (e *ForbiddenError) Unwrap() error      { return e.APIError.Unwrap() }
func (e *ForbiddenError) IsRetryable() bool  { return false }
func (e *ForbiddenError) As(target any) bool { return asBase(&e.APIError, target) }

// RateLimitError represents a 429 response. Retryable.
type RateLimitError struct {
	APIError
}

func (e *RateLimitError) Error() string      { return e.APIError.Error() }
func (e *RateLimitError) Unwrap() error      { return e.APIError.Unwrap() }
func (e *RateLimitError) IsRetryable() bool  { return true }
func (e *RateLimitError) As(target any) bool { return asBase(&e.APIError, target) }

// ServerError represents any other non-2xx response. Retryable only for 5xx.
type ServerError struct {
	APIError
}

func (e *ServerError) Error() string      { return e.APIError.Error() }
func (e *ServerError) Unwrap() error      { return e.APIError.Unwrap() }
func (e *ServerError) IsRetryable() bool  { return e.StatusCode >= 500 }
func (e *ServerError) As(target any) bool { return asBase(&e.APIError, target) }

// NetworkError represents a request that never produced a response. Retryable.
type NetworkError struct {
	APIError
}

func (e *NetworkError) Error() string      { return e.APIError.Error() }
func (e *NetworkError) Unwrap() error      { return e.APIError.Unwrap() }
func (e *NetworkError) IsRetryable() bool  { return true }
func (e *NetworkError) As(target any) bool { return asBase(&e.APIError, target) }

// TimeoutError represents a request that exceeded the configured timeout. Retryable.
type TimeoutError struct {
	APIError
}

func (e *TimeoutError) Error() string      { return e.APIError.Error() }
func (e *TimeoutError) Unwrap() error      { return e.APIError.Unwrap() }
func (e *TimeoutError) IsRetryable() bool  { return true }
func (e *TimeoutError) As(target any) bool { return asBase(&e.APIError, target) }

// AbortError represents a request cancelled by its caller. Not retryable.
type AbortError struct {
	APIError
}

func (e *AbortError) Error() string      { return e.APIError.Error() }
func (e *AbortError) Unwrap() error      { return e.APIError.Unwrap() }
func (e *AbortError) IsRetryable() bool  { return false }
func (e *AbortError) As(target any) bool { return asBase(&e.APIError, target) }

// StaleDataError is not a failure: it reports that a read was answered from the
// cache because the live fetch failed. Cause holds the transport error.
type StaleDataError struct {
	APIError
}

func (e *StaleDataError) Error() string      { return e.APIError.Error() }
func (e *StaleDataError) Unwrap() error      { return e.APIError.Unwrap() }
func (e *StaleDataError) IsRetryable() bool  { return false }
func (e *StaleDataError) As(target any) bool { return asBase(&e.APIError, target) }
func (e *StaleDataError) Is(target error) bool {
	return target == ErrStaleDataServed
}

// NewStaleDataError wraps the failure that caused a read to fall back to cache.
func NewStaleDataError(endpoint string, cause error) *StaleDataError {
	return &StaleDataError{APIError: APIError{
		Kind:     KindStaleDataServed,
		Message:  KindStaleDataServed.defaultMessage(),
		Endpoint: endpoint,
		Cause:    cause,
	}}
}

func asBase(base *APIError, target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = base
		return true
	}
	return false
}

// KindOf returns the Kind of err, or KindUnknown when err is not an API error.
func KindOf(err error) Kind {
	var e *APIError
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the human-readable message carried by err, suitable for
// showing verbatim in a single-resource view.
func Message(err error) string {
	var e *APIError
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// ErrorFromStatus maps a non-2xx HTTP status to the matching error type. The
// server's message is extracted from the body when present.
func ErrorFromStatus(statusCode int, endpoint string, body []byte, retryAfter *float64) error {
	base := APIError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		RetryAfter: retryAfter,
	}
	if gjson.ValidBytes(body) {
		base.Raw = json.RawMessage(body)
	}

	var kind Kind
	switch statusCode {
	case 400:
		kind = KindInvalidRequest
	case 401:
		kind = KindUnauthorized
	case 403:
		kind = KindForbidden
	case 429:
		kind = KindRateLimited
	default:
		kind = KindServerError
	}
	base.Kind = kind
	base.Message = messageFromBody(body)
	if base.Message == "" {
		base.Message = kind.defaultMessage()
	}

	switch kind {
	case KindInvalidRequest:
		return &InvalidRequestError{APIError: base}
	case KindUnauthorized:
		return &UnauthorizedError{APIError: base}
	case KindForbidden:
		return &ForbiddenError{APIError: base}
	case KindRateLimited:
		return &RateLimitError{APIError: base}
	default:
		return &ServerError{APIError: base}
	}
}

func newNetworkError(endpoint string, cause error) error {
	return &NetworkError{APIError: APIError{Kind: KindNetworkError, Message: KindNetworkError.defaultMessage(), Endpoint: endpoint, Cause: cause}}
}

func newTimeoutError(endpoint string, cause error) error {
	return &TimeoutError{APIError: APIError{Kind: KindTimeout, Message: KindTimeout.defaultMessage(), Endpoint: endpoint, Cause: cause}}
}

func newAbortError(endpoint string, cause error) error {
	return &AbortError{APIError: APIError{Kind: KindAborted, Message: KindAborted.defaultMessage(), Endpoint: endpoint, Cause: cause}}
}

// messageFromBody looks for a readable message in the common error envelopes
// the backend uses. Non-JSON bodies are used as-is when they are short text.
func messageFromBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if !gjson.ValidBytes(body) {
		text := strings.TrimSpace(string(body))
		if len(text) > 200 || strings.HasPrefix(text, "<") {
			return ""
		}
		return text
	}
	for _, path := range []string{"message", "error.message", "error", "detail", "msg"} {
		if r := gjson.GetBytes(body, path); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}
