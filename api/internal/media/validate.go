package media

import (
	"fmt"
	"strings"
)

// DefaultMaxBytes is the upload ceiling shown to users as "max 5MB".
const DefaultMaxBytes int64 = 5 * 1024 * 1024

// Reason explains a verdict.
type Reason int

const (
	ReasonOK Reason = iota
	ReasonUnsupportedType
	ReasonTooLarge
)

func (r Reason) String() string {
	switch r {
	case ReasonOK:
		return "ok"
	case ReasonUnsupportedType:
		return "unsupported_type"
	case ReasonTooLarge:
		return "too_large"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Verdict is the outcome of validating one candidate.
type Verdict struct {
	Accepted bool
	Reason   Reason
}

// Err converts a rejection into a *ValidationError; accepted verdicts yield nil.
func (v Verdict) Err() error {
	if v.Accepted {
		return nil
	}
	return &ValidationError{Reason: v.Reason}
}

// ValidationError is returned for candidates that never reach analysis.
type ValidationError struct {
	Reason Reason
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonUnsupportedType:
		return "validate image: unsupported type"
	case ReasonTooLarge:
		return "validate image: file too large"
	default:
		return "validate image: " + e.Reason.String()
	}
}

// Validator checks candidates against type and size constraints.
type Validator struct {
	MaxBytes int64
}

// NewValidator returns a validator; maxBytes <= 0 selects DefaultMaxBytes.
func NewValidator(maxBytes int64) Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return Validator{MaxBytes: maxBytes}
}

// Validate rejects non-image types first, then sizes above the ceiling.
func (v Validator) Validate(c Candidate) Verdict {
	if !IsImageType(c.MIME()) {
		return Verdict{Reason: ReasonUnsupportedType}
	}
	limit := v.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if c.Size() > limit {
		return Verdict{Reason: ReasonTooLarge}
	}
	return Verdict{Accepted: true, Reason: ReasonOK}
}

// IsImageType reports whether the top-level type of a MIME string is "image".
func IsImageType(mime string) bool {
	mime = strings.TrimSpace(mime)
	if semi := strings.IndexByte(mime, ';'); semi >= 0 {
		mime = mime[:semi]
	}
	top, _, ok := strings.Cut(mime, "/")
	return ok && strings.EqualFold(strings.TrimSpace(top), "image")
}
