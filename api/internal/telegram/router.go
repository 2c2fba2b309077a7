package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"leaf-doctor/api/internal/acquire"
	"leaf-doctor/api/internal/analyzer"
	"leaf-doctor/api/internal/i18n"
	"leaf-doctor/api/internal/media"
	"leaf-doctor/api/internal/preview"
	"leaf-doctor/api/internal/speech/voicenote"
	"leaf-doctor/api/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Bot is the part of *tgbotapi.BotAPI the router talks to.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Profiles stores the signup form of each chat.
type Profiles interface {
	Get(ctx context.Context, chatID int64) (store.Profile, error)
	Upsert(ctx context.Context, p store.Profile) error
	SetLanguage(ctx context.Context, chatID int64, lang string) error
}

// HistoryLister backs /history.
type HistoryLister interface {
	ListByChat(ctx context.Context, chatID int64, limit int) ([]store.DiagnosisRecord, error)
}

type Router struct {
	bot       Bot
	svc       *analyzer.Service
	validator media.Validator
	deriver   *preview.Deriver
	tr        *i18n.Bundle
	profiles  Profiles
	history   HistoryLister
	log       *zap.Logger
	httpc     *http.Client

	transcriber   voicenote.Transcriber
	listenTimeout time.Duration

	requireProfile bool
	albumDebounce  time.Duration

	chats   sync.Map // chatID -> *chat
	batches sync.Map // "grp:<mediaGroupID>" -> *albumBatch
	langs   sync.Map // chatID -> string
}

type Option func(*Router)

func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

func WithI18n(b *i18n.Bundle) Option { return func(r *Router) { r.tr = b } }

func WithValidator(v media.Validator) Option { return func(r *Router) { r.validator = v } }

func WithDeriver(d *preview.Deriver) Option { return func(r *Router) { r.deriver = d } }

func WithProfiles(p Profiles) Option { return func(r *Router) { r.profiles = p } }

func WithHistory(h HistoryLister) Option { return func(r *Router) { r.history = h } }

// WithTranscriber enables voice dictation. A nil transcriber leaves it off.
func WithTranscriber(t voicenote.Transcriber, listenTimeout time.Duration) Option {
	return func(r *Router) {
		r.transcriber = t
		r.listenTimeout = listenTimeout
	}
}

// WithRequireProfile blocks analysis until the chat has completed /profile.
func WithRequireProfile(v bool) Option { return func(r *Router) { r.requireProfile = v } }

func WithHTTPClient(c *http.Client) Option { return func(r *Router) { r.httpc = c } }

func withAlbumDebounce(d time.Duration) Option { return func(r *Router) { r.albumDebounce = d } }

func New(bot Bot, svc *analyzer.Service, opts ...Option) *Router {
	r := &Router{
		bot:           bot,
		svc:           svc,
		validator:     media.NewValidator(media.DefaultMaxBytes),
		log:           zap.NewNop(),
		httpc:         &http.Client{Timeout: 60 * time.Second},
		albumDebounce: debounce,
	}
	for _, o := range opts {
		o(r)
	}
	if r.tr == nil {
		r.tr = i18n.Default()
	}
	if r.deriver == nil {
		r.deriver = preview.NewDeriver(0)
	}
	if r.profiles == nil {
		r.profiles = store.NewMemoryProfiles()
	}
	return r
}

// Capabilities reports what this bot can offer every chat.
func (r *Router) Capabilities() acquire.Capabilities {
	return acquire.Capabilities{Camera: true, Speech: r.transcriber != nil}
}

// HandleUpdate processes one update. Updates of the same chat must be fed
// sequentially.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	msg := upd.Message
	if msg == nil {
		return
	}
	c := r.chat(msg.Chat.ID)
	r.rememberLanguage(ctx, msg)

	switch {
	case msg.IsCommand():
		r.handleCommand(ctx, c, msg)
	case msg.Voice != nil || msg.Audio != nil:
		r.acceptVoice(ctx, c, msg)
	case len(msg.Photo) > 0 && msg.MediaGroupID != "":
		r.acceptAlbumItem(ctx, c, msg)
	case len(msg.Photo) > 0:
		r.acceptPhoto(ctx, c, msg)
	case msg.Document != nil:
		r.acceptDocument(ctx, c, msg)
	case strings.TrimSpace(msg.Text) != "" && c.form() != nil:
		r.fillField(ctx, c, strings.TrimSpace(msg.Text))
	default:
		r.send(c.id, r.t(c.id, "bot.unknown"))
	}
}

// Close resets every chat and waits for in-flight analyses.
func (r *Router) Close() {
	r.chats.Range(func(_, v any) bool {
		v.(*chat).close()
		return true
	})
}

func (r *Router) chat(id int64) *chat {
	if v, ok := r.chats.Load(id); ok {
		return v.(*chat)
	}
	v, loaded := r.chats.LoadOrStore(id, newChat(r, id))
	c := v.(*chat)
	if !loaded {
		c.run()
	}
	return c
}

// rememberLanguage seeds the chat language from the saved profile, then from
// the Telegram client language.
func (r *Router) rememberLanguage(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	if _, ok := r.langs.Load(cid); ok {
		return
	}
	lang := r.tr.Fallback()
	if p, err := r.profiles.Get(ctx, cid); err == nil && r.tr.IsSupported(p.Language) {
		lang = p.Language
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		r.log.Warn("load profile", zap.Int64("chat_id", cid), zap.Error(err))
	} else if msg.From != nil && msg.From.LanguageCode != "" {
		lang = r.tr.Match(msg.From.LanguageCode)
	}
	r.langs.Store(cid, lang)
}

func (r *Router) lang(chatID int64) string {
	if v, ok := r.langs.Load(chatID); ok {
		return v.(string)
	}
	return r.tr.Fallback()
}

func (r *Router) t(chatID int64, key string) string { return r.tr.T(r.lang(chatID), key) }

func (r *Router) tf(chatID int64, key string, args ...any) string {
	return r.tr.Tf(r.lang(chatID), key, args...)
}

func (r *Router) send(chatID int64, text string) {
	r.sendMsg(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) sendMsg(msg tgbotapi.Chattable) {
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("telegram send failed", zap.Error(err))
	}
}
