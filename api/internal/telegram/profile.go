package telegram

import (
	"context"
	"errors"

	"leaf-doctor/api/internal/speech"
	"leaf-doctor/api/internal/speech/voicenote"
	"leaf-doctor/api/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

var profileFields = []string{"name", "email", "phone"}

// profileForm is the signup form being filled in a chat, one field at a time.
type profileForm struct {
	idx   int
	draft store.Profile
}

func (f *profileForm) field() string { return profileFields[f.idx] }

func (f *profileForm) set(value string) (done bool) {
	switch f.field() {
	case "name":
		f.draft.Name = value
	case "email":
		f.draft.Email = value
	case "phone":
		f.draft.Phone = value
	}
	f.idx++
	return f.idx >= len(profileFields)
}

func (r *Router) startProfile(ctx context.Context, c *chat) {
	p, err := r.profiles.Get(ctx, c.id)
	switch {
	case err == nil && p.Complete():
		r.send(c.id, r.showProfile(c.id, p))
	case err != nil && !errors.Is(err, store.ErrNotFound):
		r.sendError(c.id, err)
		return
	}
	p.ChatID = c.id
	p.Language = r.lang(c.id)
	c.setForm(&profileForm{draft: p})
	r.send(c.id, r.t(c.id, "auth.signup.title")+"\n"+r.t(c.id, "auth.signup.subtitle"))
	r.askField(c)
}

// askField prompts for the current field and, when dictation is available,
// starts listening for it in the chat language.
func (r *Router) askField(c *chat) {
	field, ok := c.currentField()
	if !ok {
		return
	}
	label := r.t(c.id, "auth."+field)
	r.send(c.id, r.tf(c.id, "profile.ask", label))
	if !c.speech.Supported() {
		return
	}
	if err := c.speech.Start(field, r.lang(c.id)); err != nil {
		r.reportSpeech(c.id, speech.AsError(err))
		return
	}
	r.send(c.id, r.tf(c.id, "voice.listening", label))
}

// fillField stores a typed or dictated value and moves to the next field.
func (r *Router) fillField(ctx context.Context, c *chat, value string) {
	_ = c.speech.Stop()
	c.mu.Lock()
	f := c.profile
	if f == nil {
		c.mu.Unlock()
		return
	}
	done := f.set(value)
	if done {
		c.profile = nil
	}
	draft := f.draft
	c.mu.Unlock()

	if !done {
		r.askField(c)
		return
	}
	if err := r.profiles.Upsert(ctx, draft); err != nil {
		r.sendError(c.id, err)
		return
	}
	r.send(c.id, r.t(c.id, "profile.saved")+"\n\n"+r.showProfile(c.id, draft))
}

func (r *Router) cancelProfile(c *chat) {
	_ = c.speech.Stop()
	c.setForm(nil)
	r.send(c.id, r.t(c.id, "common.cancel"))
}

func (r *Router) showProfile(chatID int64, p store.Profile) string {
	lang := r.t(chatID, "auth.english")
	if p.Language == "hi" {
		lang = r.t(chatID, "auth.hindi")
	}
	return r.tf(chatID, "profile.show", p.Name, p.Email, p.Phone, lang)
}

// acceptVoice hands a voice note to the waiting recognition. A note that
// arrives after the listen timeout restarts listening for the current field.
func (r *Router) acceptVoice(ctx context.Context, c *chat, msg *tgbotapi.Message) {
	if c.voice == nil {
		r.send(c.id, r.t(c.id, "voice.unsupported"))
		return
	}
	fileID, mime := "", ""
	switch {
	case msg.Voice != nil:
		fileID, mime = msg.Voice.FileID, msg.Voice.MimeType
	case msg.Audio != nil:
		fileID, mime = msg.Audio.FileID, msg.Audio.MimeType
	}
	field, ok := c.currentField()
	if !ok {
		r.send(c.id, r.t(c.id, "bot.unknown"))
		return
	}
	if !c.voice.Listening() {
		if err := c.speech.Start(field, r.lang(c.id)); err != nil {
			r.reportSpeech(c.id, speech.AsError(err))
			return
		}
	}
	audio, err := r.download(ctx, fileID)
	if err != nil {
		_ = c.speech.Stop()
		r.sendError(c.id, err)
		return
	}
	if err := c.voice.Submit(ctx, audio, mime); err != nil && !errors.Is(err, voicenote.ErrNotListening) {
		r.log.Warn("submit voice note", zap.Int64("chat_id", c.id), zap.Error(err))
	}
}

func (r *Router) reportSpeech(chatID int64, err *speech.Error) {
	switch err.Kind {
	case speech.KindNoSpeechDetected:
		r.send(chatID, r.t(chatID, "voice.no_speech"))
	case speech.KindUnsupported:
		r.send(chatID, r.t(chatID, "voice.unsupported"))
	case speech.KindPermissionDenied:
		r.send(chatID, r.t(chatID, "voice.permission_denied"))
	default:
		r.send(chatID, r.tf(chatID, "voice.error", err.Reason))
	}
}

// chatSink routes dictation results into the chat's profile form.
type chatSink struct{ c *chat }

func (s *chatSink) Deliver(fieldID, transcript string) {
	r := s.c.r
	if field, ok := s.c.currentField(); !ok || field != fieldID {
		return
	}
	r.send(s.c.id, r.tf(s.c.id, "voice.heard", transcript))
	r.fillField(context.Background(), s.c, transcript)
}

func (s *chatSink) Report(_ string, err *speech.Error) {
	s.c.r.reportSpeech(s.c.id, err)
}
