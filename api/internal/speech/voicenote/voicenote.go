// Package voicenote implements speech.Recognizer for chat clients: a
// recognition waits for the user's next voice note and transcribes it.
package voicenote

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"leaf-doctor/api/internal/speech"

	"go.uber.org/zap"
)

const DefaultListenTimeout = 30 * time.Second

// ErrNotListening is returned by Submit when no recognition is waiting.
var ErrNotListening = errors.New("voicenote: no recognition waiting for audio")

// Transcriber turns one audio clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mime, locale string) (string, error)
}

type Recognizer struct {
	tr      Transcriber
	timeout time.Duration
	log     *zap.Logger

	mu      sync.Mutex
	pending *recognition
}

func New(tr Transcriber, listenTimeout time.Duration, log *zap.Logger) *Recognizer {
	if listenTimeout <= 0 {
		listenTimeout = DefaultListenTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recognizer{tr: tr, timeout: listenTimeout, log: log}
}

type recognition struct {
	cfg    speech.Config
	l      speech.Listener
	ctx    context.Context
	cancel context.CancelFunc
	// timer is set before the recognition is published and never read by
	// its own callback.
	timer *time.Timer
	done  atomic.Bool
}

func (r *recognition) finish() bool {
	return r.done.CompareAndSwap(false, true)
}

func (r *recognition) Abort() {
	if r.finish() {
		r.timer.Stop()
		r.cancel()
	}
}

// Start waits for a voice note. If none arrives within the listen timeout
// the listener gets speech.ErrNoSpeech.
func (v *Recognizer) Start(cfg speech.Config, l speech.Listener) (speech.Recognition, error) {
	if v.tr == nil {
		return nil, speech.ErrUnsupported
	}
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recognition{cfg: cfg, l: l, ctx: ctx, cancel: cancel}
	rec.timer = time.AfterFunc(v.timeout, func() {
		if rec.finish() {
			cancel()
			v.drop(rec)
			l.Failed(speech.ErrNoSpeech)
		}
	})

	v.mu.Lock()
	prev := v.pending
	v.pending = rec
	v.mu.Unlock()
	if prev != nil {
		prev.Abort()
	}
	return rec, nil
}

func (v *Recognizer) drop(rec *recognition) {
	v.mu.Lock()
	if v.pending == rec {
		v.pending = nil
	}
	v.mu.Unlock()
}

// Listening reports whether a recognition is waiting for audio.
func (v *Recognizer) Listening() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pending != nil && !v.pending.done.Load()
}

// Submit transcribes audio for the waiting recognition and reports the
// outcome to its listener.
func (v *Recognizer) Submit(ctx context.Context, audio []byte, mime string) error {
	v.mu.Lock()
	rec := v.pending
	v.pending = nil
	v.mu.Unlock()
	if rec == nil || rec.done.Load() {
		return ErrNotListening
	}
	rec.timer.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(rec.ctx, cancel)
	defer stop()

	text, err := v.tr.Transcribe(ctx, audio, mime, rec.cfg.Locale)
	if !rec.finish() {
		// aborted while transcribing
		return nil
	}
	rec.cancel()
	switch {
	case err != nil:
		v.log.Warn("voice note transcription failed", zap.String("locale", rec.cfg.Locale), zap.Error(err))
		rec.l.Failed(speech.PlatformError(err.Error()))
	case strings.TrimSpace(text) == "":
		rec.l.Failed(speech.ErrNoSpeech)
	default:
		rec.l.Final(strings.TrimSpace(text))
	}
	return nil
}
