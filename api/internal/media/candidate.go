// Package media holds the image candidate a user hands to the diagnosis
// pipeline and the rules deciding whether it may be analyzed.
package media

import (
	"strings"

	"leaf-doctor/api/internal/util"
)

// SourceKind tells how a candidate was acquired.
type SourceKind int

const (
	SourcePicker SourceKind = iota + 1
	SourceDrop
	SourceCamera
)

func (k SourceKind) String() string {
	switch k {
	case SourcePicker:
		return "picker"
	case SourceDrop:
		return "drop"
	case SourceCamera:
		return "camera"
	default:
		return "unknown"
	}
}

// Candidate is a user-acquired, not yet validated image. It is immutable once built.
type Candidate struct {
	data   []byte
	mime   string
	size   int64
	source SourceKind
	name   string
}

// NewCandidate copies data and records the declared MIME type. An empty
// declared type is sniffed from the bytes.
func NewCandidate(data []byte, declaredMIME string, source SourceKind) Candidate {
	buf := make([]byte, len(data))
	copy(buf, data)
	return Candidate{
		data:   buf,
		mime:   util.PickMIME(declaredMIME, "", buf),
		size:   int64(len(buf)),
		source: source,
	}
}

// WithName returns a copy carrying the original file name.
func (c Candidate) WithName(name string) Candidate {
	c.name = strings.TrimSpace(name)
	return c
}

// WithSize returns a copy reporting a declared size that differs from the
// payload length. Platforms announce sizes before the bytes are fetched.
func (c Candidate) WithSize(n int64) Candidate {
	c.size = n
	return c
}

// Bytes returns a copy of the payload.
func (c Candidate) Bytes() []byte {
	out := make([]byte, len(c.data))
	copy(out, c.data)
	return out
}

func (c Candidate) MIME() string       { return c.mime }
func (c Candidate) Size() int64        { return c.size }
func (c Candidate) Source() SourceKind { return c.source }
func (c Candidate) Name() string       { return c.name }

// Hash is the SHA-256 of the payload, used as cache key.
func (c Candidate) Hash() string { return util.SHA256Hex(c.data) }

// IsZero reports whether c was never built.
func (c Candidate) IsZero() bool { return c.source == 0 && c.data == nil }
