// Package speech fills form fields from dictation. One Controller owns the
// microphone: at most one session listens at a time.
package speech

import (
	"sync"

	"leaf-doctor/api/internal/metrics"

	"go.uber.org/zap"
)

type Status int

const (
	StatusIdle Status = iota
	StatusListening
	StatusCompleted
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusListening:
		return "listening"
	case StatusCompleted:
		return "completed"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Session describes the controller's current dictation.
type Session struct {
	FieldID string
	Locale  string
	Status  Status
	Err     *Error
}

// Sink receives transcripts and errors, bound to the field they were
// dictated for. It is called without the controller locked.
type Sink interface {
	Deliver(fieldID, transcript string)
	Report(fieldID string, err *Error)
}

type Controller struct {
	rec      Recognizer
	sink     Sink
	log      *zap.Logger
	observer func(Session)

	mu      sync.Mutex
	session Session
	active  Recognition
	gen     uint64
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithObserver registers a callback that sees every session change. It runs
// with the controller locked.
func WithObserver(fn func(Session)) Option { return func(c *Controller) { c.observer = fn } }

// NewController builds a controller; a nil recognizer means the platform has
// no speech support.
func NewController(rec Recognizer, sink Sink, opts ...Option) *Controller {
	c := &Controller{rec: rec, sink: sink, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) Supported() bool { return c.rec != nil }

func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Start begins dictation into fieldID. A session already listening is
// stopped first.
func (c *Controller) Start(fieldID, lang string) error {
	if c.rec == nil {
		metrics.SpeechSessionsTotal.WithLabelValues("unsupported").Inc()
		return ErrUnsupported
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Status == StatusListening {
		c.stopLocked()
	}

	c.gen++
	locale := LocaleFor(lang)
	rec, err := c.rec.Start(Config{Locale: locale}, &listener{c: c, gen: c.gen})
	if err != nil {
		se := AsError(err)
		c.log.Warn("speech start failed", zap.String("field", fieldID), zap.Error(se))
		metrics.SpeechSessionsTotal.WithLabelValues("errored").Inc()
		return se
	}
	c.active = rec
	c.set(Session{FieldID: fieldID, Locale: locale, Status: StatusListening})
	c.log.Debug("speech listening", zap.String("field", fieldID), zap.String("locale", locale))
	return nil
}

// Stop cancels the listening session without delivering a transcript.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Status != StatusListening {
		return ErrNotListening
	}
	c.stopLocked()
	return nil
}

func (c *Controller) stopLocked() {
	c.gen++
	if c.active != nil {
		c.active.Abort()
		c.active = nil
	}
	metrics.SpeechSessionsTotal.WithLabelValues("stopped").Inc()
	c.set(Session{FieldID: c.session.FieldID, Locale: c.session.Locale, Status: StatusIdle})
}

func (c *Controller) set(s Session) {
	c.session = s
	if c.observer != nil {
		c.observer(s)
	}
}

// settle moves a current listening session through status to Idle and
// reports whether gen was current.
func (c *Controller) settle(gen uint64, status Status, se *Error) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.session.Status != StatusListening {
		return "", false
	}
	field, locale := c.session.FieldID, c.session.Locale
	c.active = nil
	c.set(Session{FieldID: field, Locale: locale, Status: status, Err: se})
	c.set(Session{FieldID: field, Locale: locale, Status: StatusIdle})
	return field, true
}

type listener struct {
	c   *Controller
	gen uint64
}

func (l *listener) Final(transcript string) {
	field, ok := l.c.settle(l.gen, StatusCompleted, nil)
	if !ok {
		return
	}
	metrics.SpeechSessionsTotal.WithLabelValues("completed").Inc()
	if l.c.sink != nil {
		l.c.sink.Deliver(field, transcript)
	}
}

func (l *listener) Failed(err error) {
	se := AsError(err)
	field, ok := l.c.settle(l.gen, StatusErrored, se)
	if !ok {
		return
	}
	metrics.SpeechSessionsTotal.WithLabelValues("errored").Inc()
	l.c.log.Info("speech error", zap.String("field", field), zap.Stringer("kind", se.Kind), zap.String("reason", se.Reason))
	if l.c.sink != nil {
		l.c.sink.Report(field, se)
	}
}
