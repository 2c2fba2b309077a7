package diagnosis

import (
	"context"
	"errors"
	"sync"

	"leaf-doctor/api/internal/analyzer"
	"leaf-doctor/api/internal/media"
	"leaf-doctor/api/internal/metrics"
	"leaf-doctor/api/internal/preview"

	"go.uber.org/zap"
)

// ErrBusy is returned by SelectImage while an analysis is in flight.
var ErrBusy = errors.New("diagnosis: analysis in progress")

// Client runs one analysis.
type Client interface {
	Analyze(ctx context.Context, c media.Candidate) (analyzer.Diagnosis, error)
}

// Observer receives every new state. It runs with the session locked and
// must not call back into the Session.
type Observer func(State)

type Session struct {
	validator media.Validator
	deriver   *preview.Deriver
	client    Client
	observer  Observer
	log       *zap.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Session)

func WithObserver(o Observer) Option { return func(s *Session) { s.observer = o } }

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

func NewSession(client Client, v media.Validator, d *preview.Deriver, opts ...Option) *Session {
	if d == nil {
		d = preview.NewDeriver(0)
	}
	s := &Session{
		validator: v,
		deriver:   d,
		client:    client,
		log:       zap.NewNop(),
		state:     Idle{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SelectImage validates c and, when accepted, replaces the current preview.
// A rejected candidate leaves the state untouched.
func (s *Session) SelectImage(c media.Candidate) (media.Verdict, error) {
	v := s.validator.Validate(c)
	if !v.Accepted {
		metrics.ValidationRejectionsTotal.WithLabelValues(v.Reason.String()).Inc()
		s.log.Info("candidate rejected", zap.Stringer("reason", v.Reason), zap.Stringer("source", c.Source()), zap.Int64("size", c.Size()))
		return v, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Kind() == KindAnalyzing {
		return v, ErrBusy
	}
	h, err := s.deriver.Derive(c)
	if err != nil {
		return v, err
	}
	next, old, err := selectImage(s.state, c, h)
	if err != nil {
		s.releaseLocked(h)
		return v, err
	}
	s.releaseLocked(old)
	s.setLocked(next)
	return v, nil
}

// StartAnalysis moves Previewing to Analyzing and calls the client in the
// background. While already analyzing it returns the current token and false.
func (s *Session) StartAnalysis(ctx context.Context) (Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.state.(Analyzing); ok {
		return a.Token, false
	}
	tok := newToken()
	next, ok := startAnalysis(s.state, tok)
	if !ok {
		return Token{}, false
	}
	a := next.(Analyzing)
	actx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.setLocked(next)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		d, err := s.client.Analyze(actx, a.Candidate)
		s.Complete(tok, d, err)
	}()
	return tok, true
}

// Complete applies the outcome of the request identified by tok. It returns
// false when the session has moved on and the outcome was dropped.
func (s *Session) Complete(tok Token, d analyzer.Diagnosis, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := complete(s.state, tok, d, err)
	if !ok {
		metrics.StaleCompletionsTotal.Inc()
		s.log.Debug("stale completion dropped", zap.Stringer("token", tok))
		return false
	}
	s.cancel = nil
	s.setLocked(next)
	return true
}

// Retry returns a Failed session to Previewing with the same image.
func (s *Session) Retry() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := retry(s.state)
	if ok {
		s.setLocked(next)
	}
	return ok
}

// Reset returns to Idle from any state. An in-flight request is cancelled
// and its completion will be dropped.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	next, old := reset(s.state)
	s.releaseLocked(old)
	if s.state.Kind() != KindIdle {
		s.setLocked(next)
	}
}

// Wait blocks until background analyses have returned.
func (s *Session) Wait() { s.wg.Wait() }

func (s *Session) Close() {
	s.Reset()
	s.Wait()
}

func (s *Session) setLocked(next State) {
	s.state = next
	s.log.Debug("session state", zap.Stringer("state", next.Kind()))
	if s.observer != nil {
		s.observer(next)
	}
}

func (s *Session) releaseLocked(h *preview.Handle) {
	if h == nil {
		return
	}
	if err := h.Release(); err != nil {
		s.log.Error("release preview", zap.Uint64("preview_id", h.ID()), zap.Error(err))
	}
}
