package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
)

// ErrorKind is the failure taxonomy surfaced to sessions.
type ErrorKind int

const (
	KindTimeout ErrorKind = iota + 1
	KindServiceUnavailable
	KindInvalidResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// ParseErrorKind is the inverse of ErrorKind.String.
func ParseErrorKind(s string) (ErrorKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "timeout":
		return KindTimeout, true
	case "service_unavailable":
		return KindServiceUnavailable, true
	case "invalid_response":
		return KindInvalidResponse, true
	}
	return 0, false
}

var (
	// ErrInvalidResponse marks replies that could not be turned into a Diagnosis.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrNoEngine is returned when no engine is configured for a chat.
	ErrNoEngine = errors.New("no diagnosis engine configured")
)

// Error is a classified analysis failure.
type Error struct {
	Kind   ErrorKind
	Engine string
	Err    error
}

func (e *Error) Error() string {
	if e.Engine != "" {
		return fmt.Sprintf("analyze (%s): %s: %v", e.Engine, e.Kind, e.Err)
	}
	return fmt.Sprintf("analyze: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusError is an unexpected HTTP status from an inference endpoint.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Op, e.StatusCode, strings.TrimSpace(e.Body))
}

// Classify maps any engine error onto the taxonomy. Unknown errors count as
// the service being unavailable.
func Classify(err error) ErrorKind {
	if err == nil {
		return 0
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != 0 {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, ErrInvalidResponse) {
		return KindInvalidResponse
	}
	var se *StatusError
	if errors.As(err, &se) {
		return kindForStatus(se.StatusCode)
	}
	var api *apierror.APIError
	if errors.As(err, &api) && api.HTTPCode() > 0 {
		return kindForStatus(api.HTTPCode())
	}
	return KindServiceUnavailable
}

func kindForStatus(code int) ErrorKind {
	switch code {
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindServiceUnavailable
	}
}
