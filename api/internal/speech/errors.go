package speech

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindUnsupported ErrorKind = iota + 1
	KindPermissionDenied
	KindNoSpeechDetected
	KindPlatform
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnsupported:
		return "unsupported"
	case KindPermissionDenied:
		return "permission_denied"
	case KindNoSpeechDetected:
		return "no_speech"
	case KindPlatform:
		return "platform_error"
	default:
		return "unknown"
	}
}

// Error is a dictation failure. Reason carries the platform's own wording
// for KindPlatform.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("speech: %s: %s", e.Kind, e.Reason)
	}
	return "speech: " + e.Kind.String()
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNoSpeech)
// holds regardless of Reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrUnsupported      = &Error{Kind: KindUnsupported}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrNoSpeech         = &Error{Kind: KindNoSpeechDetected}

	// ErrNotListening is returned by Stop when no session is listening.
	ErrNotListening = errors.New("speech: not listening")
)

// PlatformError wraps a recognizer failure.
func PlatformError(reason string) *Error {
	return &Error{Kind: KindPlatform, Reason: reason}
}

// AsError converts err into an *Error, treating unknown errors as platform errors.
func AsError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return PlatformError(err.Error())
}
