package speech

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecognition struct {
	cfg     Config
	l       Listener
	aborted bool
}

func (r *fakeRecognition) Abort() { r.aborted = true }

type fakeRecognizer struct {
	mu   sync.Mutex
	runs []*fakeRecognition
	err  error
}

func (f *fakeRecognizer) Start(cfg Config, l Listener) (Recognition, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &fakeRecognition{cfg: cfg, l: l}
	f.runs = append(f.runs, r)
	return r, nil
}

func (f *fakeRecognizer) last() *fakeRecognition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[len(f.runs)-1]
}

type delivered struct {
	field, text string
	err         *Error
}

type recordingSink struct{ got []delivered }

func (s *recordingSink) Deliver(field, text string) {
	s.got = append(s.got, delivered{field: field, text: text})
}

func (s *recordingSink) Report(field string, err *Error) {
	s.got = append(s.got, delivered{field: field, err: err})
}

func TestStartMapsLocaleSingleUtterance(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewController(rec, &recordingSink{})

	require.NoError(t, c.Start("name", "hi"))
	r := rec.last()
	assert.Equal(t, "hi-IN", r.cfg.Locale)
	assert.False(t, r.cfg.Continuous)
	assert.False(t, r.cfg.InterimResults)
	assert.Equal(t, Session{FieldID: "name", Locale: "hi-IN", Status: StatusListening}, c.Session())

	require.NoError(t, c.Start("name", "xx"))
	assert.Equal(t, "en-US", rec.last().cfg.Locale)
}

func TestFinalTranscriptDeliveredThenIdle(t *testing.T) {
	rec := &fakeRecognizer{}
	sink := &recordingSink{}
	var statuses []Status
	c := NewController(rec, sink, WithObserver(func(s Session) { statuses = append(statuses, s.Status) }))

	require.NoError(t, c.Start("email", "en"))
	rec.last().l.Final("ravi@example.com")

	assert.Equal(t, []delivered{{field: "email", text: "ravi@example.com"}}, sink.got)
	assert.Equal(t, StatusIdle, c.Session().Status)
	assert.Equal(t, []Status{StatusListening, StatusCompleted, StatusIdle}, statuses)
}

func TestPlatformErrorReportedThenIdle(t *testing.T) {
	rec := &fakeRecognizer{}
	sink := &recordingSink{}
	c := NewController(rec, sink)

	require.NoError(t, c.Start("phone", "ta"))
	rec.last().l.Failed(errors.New("audio-capture"))

	require.Len(t, sink.got, 1)
	assert.Equal(t, "phone", sink.got[0].field)
	assert.Equal(t, KindPlatform, sink.got[0].err.Kind)
	assert.Equal(t, "audio-capture", sink.got[0].err.Reason)
	assert.Equal(t, StatusIdle, c.Session().Status)

	require.NoError(t, c.Start("phone", "ta"))
	rec.last().l.Failed(ErrPermissionDenied)
	assert.ErrorIs(t, sink.got[1].err, ErrPermissionDenied)
}

func TestStartingNewFieldStopsPrevious(t *testing.T) {
	rec := &fakeRecognizer{}
	sink := &recordingSink{}
	var seen []Session
	c := NewController(rec, sink, WithObserver(func(s Session) { seen = append(seen, s) }))

	require.NoError(t, c.Start("name", "en"))
	nameRun := rec.last()
	require.NoError(t, c.Start("email", "en"))

	assert.True(t, nameRun.aborted)
	require.Len(t, seen, 3)
	assert.Equal(t, Session{FieldID: "name", Locale: "en-US", Status: StatusIdle}, seen[1])
	assert.Equal(t, Session{FieldID: "email", Locale: "en-US", Status: StatusListening}, seen[2])

	// late result of the superseded recognition
	nameRun.l.Final("Ravi")
	assert.Empty(t, sink.got)
	assert.Equal(t, StatusListening, c.Session().Status)
	assert.Equal(t, "email", c.Session().FieldID)
}

func TestStop(t *testing.T) {
	rec := &fakeRecognizer{}
	sink := &recordingSink{}
	c := NewController(rec, sink)

	assert.ErrorIs(t, c.Stop(), ErrNotListening)

	require.NoError(t, c.Start("name", "hi"))
	run := rec.last()
	require.NoError(t, c.Stop())
	assert.True(t, run.aborted)
	assert.Equal(t, StatusIdle, c.Session().Status)

	run.l.Final("late")
	run.l.Failed(errors.New("aborted"))
	assert.Empty(t, sink.got)
	assert.ErrorIs(t, c.Stop(), ErrNotListening)
}

func TestUnsupported(t *testing.T) {
	c := NewController(nil, &recordingSink{})
	assert.False(t, c.Supported())
	assert.ErrorIs(t, c.Start("name", "en"), ErrUnsupported)
	assert.Equal(t, StatusIdle, c.Session().Status)
}

func TestRecognizerStartFailureStaysIdle(t *testing.T) {
	rec := &fakeRecognizer{err: ErrPermissionDenied}
	c := NewController(rec, &recordingSink{})

	err := c.Start("name", "en")
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, StatusIdle, c.Session().Status)
}
