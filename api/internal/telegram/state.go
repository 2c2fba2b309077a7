package telegram

import (
	"sync"
	"sync/atomic"
	"time"

	"leaf-doctor/api/internal/acquire"
	"leaf-doctor/api/internal/diagnosis"
	"leaf-doctor/api/internal/media"
	"leaf-doctor/api/internal/speech"
	"leaf-doctor/api/internal/speech/voicenote"

	"go.uber.org/zap"
)

const (
	debounce   = 1200 * time.Millisecond
	outboxSize = 32
	// terminalWait bounds how long a Result or Failed snapshot waits for
	// room in a full outbox.
	terminalWait = 5 * time.Second
)

// event is one session snapshot queued for rendering. The thumbnail is copied
// out while the session still owns the handle.
type event struct {
	state diagnosis.State
	thumb []byte
}

// chat bundles everything one conversation owns.
type chat struct {
	id int64
	r  *Router

	session *diagnosis.Session
	picker  *acquire.Picker
	camera  *acquire.Camera
	drop    *acquire.DropTarget

	voice   *voicenote.Recognizer
	speech  *speech.Controller
	outbox  chan event
	stopped chan struct{}
	once    sync.Once

	// quietPreview suppresses the next Previewing snapshot, set while a
	// failed analysis is re-armed for retry.
	quietPreview atomic.Bool

	mu      sync.Mutex
	profile *profileForm
}

func newChat(r *Router, id int64) *chat {
	c := &chat{
		id:      id,
		r:       r,
		outbox:  make(chan event, outboxSize),
		stopped: make(chan struct{}),
	}
	log := r.log.With(zap.Int64("chat_id", id))
	c.session = diagnosis.NewSession(r.svc.ForChat(id), r.validator, r.deriver,
		diagnosis.WithObserver(c.observe),
		diagnosis.WithLogger(log),
	)
	c.picker = acquire.NewPicker(c.selectImage)
	c.camera = acquire.NewCamera(c.selectImage)
	c.drop = acquire.NewDropTarget(c.selectImage)

	// A nil *voicenote.Recognizer must not become a non-nil speech.Recognizer.
	var rec speech.Recognizer
	if r.transcriber != nil {
		c.voice = voicenote.New(r.transcriber, r.listenTimeout, log)
		rec = c.voice
	}
	c.speech = speech.NewController(rec, &chatSink{c: c}, speech.WithLogger(log))
	return c
}

func (c *chat) run() {
	go func() {
		defer close(c.stopped)
		for ev := range c.outbox {
			c.r.render(c.id, ev)
		}
	}()
}

// observe runs under the session lock, so it only queues. Intermediate
// snapshots are dropped when the outbox is full; Result and Failed wait
// up to terminalWait for room.
func (c *chat) observe(s diagnosis.State) {
	ev := event{state: s}
	if _, ok := s.(diagnosis.Previewing); ok {
		if c.quietPreview.Swap(false) {
			return
		}
		if h := diagnosis.PreviewOf(s); h != nil {
			ev.thumb = h.Thumbnail()
		}
	}
	select {
	case c.outbox <- ev:
		return
	default:
	}
	switch s.Kind() {
	case diagnosis.KindResult, diagnosis.KindFailed:
		t := time.NewTimer(terminalWait)
		defer t.Stop()
		select {
		case c.outbox <- ev:
			return
		case <-t.C:
		}
		c.r.log.Error("outbox stalled, dropping final update", zap.Int64("chat_id", c.id), zap.Stringer("state", s.Kind()))
	default:
		c.r.log.Warn("outbox full, dropping update", zap.Int64("chat_id", c.id), zap.Stringer("state", s.Kind()))
	}
}

// retry re-arms a failed analysis without showing the preview again.
func (c *chat) retry() bool {
	c.quietPreview.Store(true)
	ok := c.session.Retry()
	c.quietPreview.Store(false)
	return ok
}

func (c *chat) selectImage(cand media.Candidate) {
	v, err := c.session.SelectImage(cand)
	c.r.reportSelection(c.id, v, err)
}

func (c *chat) form() *profileForm {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// currentField returns the profile field awaiting input.
func (c *chat) currentField() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return "", false
	}
	return c.profile.field(), true
}

func (c *chat) setForm(f *profileForm) {
	c.mu.Lock()
	c.profile = f
	c.mu.Unlock()
}

func (c *chat) close() {
	c.once.Do(func() {
		_ = c.speech.Stop()
		c.session.Close()
		close(c.outbox)
		<-c.stopped
	})
}
