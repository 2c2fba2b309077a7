// Package diagnosis holds the per-user capture and analysis session:
// Idle → Previewing → Analyzing → Result | Failed, with Reset from anywhere.
package diagnosis

import (
	"leaf-doctor/api/internal/analyzer"
	"leaf-doctor/api/internal/media"
	"leaf-doctor/api/internal/preview"

	"github.com/google/uuid"
)

type Kind int

const (
	KindIdle Kind = iota
	KindPreviewing
	KindAnalyzing
	KindResult
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindPreviewing:
		return "previewing"
	case KindAnalyzing:
		return "analyzing"
	case KindResult:
		return "result"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Token identifies one analysis request.
type Token uuid.UUID

func newToken() Token { return Token(uuid.New()) }

func (t Token) String() string { return uuid.UUID(t).String() }

func (t Token) IsZero() bool { return t == Token(uuid.Nil) }

// State is one of Idle, Previewing, Analyzing, Result or Failed.
type State interface {
	Kind() Kind
	isState()
}

type Idle struct{}

type Previewing struct {
	Candidate media.Candidate
	Preview   *preview.Handle
}

type Analyzing struct {
	Candidate media.Candidate
	Preview   *preview.Handle
	Token     Token
}

type Result struct {
	Candidate media.Candidate
	Preview   *preview.Handle
	Diagnosis analyzer.Diagnosis
}

type Failed struct {
	Candidate media.Candidate
	Preview   *preview.Handle
	Reason    analyzer.ErrorKind
	Err       error
}

func (Idle) Kind() Kind       { return KindIdle }
func (Previewing) Kind() Kind { return KindPreviewing }
func (Analyzing) Kind() Kind  { return KindAnalyzing }
func (Result) Kind() Kind     { return KindResult }
func (Failed) Kind() Kind     { return KindFailed }

func (Idle) isState()       {}
func (Previewing) isState() {}
func (Analyzing) isState()  {}
func (Result) isState()     {}
func (Failed) isState()     {}

// PreviewOf returns the handle held by s, nil for Idle.
func PreviewOf(s State) *preview.Handle {
	switch v := s.(type) {
	case Previewing:
		return v.Preview
	case Analyzing:
		return v.Preview
	case Result:
		return v.Preview
	case Failed:
		return v.Preview
	}
	return nil
}

// CandidateOf returns the candidate held by s.
func CandidateOf(s State) (media.Candidate, bool) {
	switch v := s.(type) {
	case Previewing:
		return v.Candidate, true
	case Analyzing:
		return v.Candidate, true
	case Result:
		return v.Candidate, true
	case Failed:
		return v.Candidate, true
	}
	return media.Candidate{}, false
}
