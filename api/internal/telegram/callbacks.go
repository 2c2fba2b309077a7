package telegram

import (
	"context"
	"errors"

	"leaf-doctor/api/internal/diagnosis"
	"leaf-doctor/api/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func (r *Router) handleCallback(ctx context.Context, cb tgbotapi.CallbackQuery) {
	if _, err := r.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		r.log.Debug("callback ack failed", zap.Error(err))
	}
	if cb.Message == nil {
		return
	}
	c := r.chat(cb.Message.Chat.ID)

	// drop the buttons of the message that was pressed
	r.sendMsg(tgbotapi.NewEditMessageReplyMarkup(c.id, cb.Message.MessageID, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}))

	switch cb.Data {
	case cbAnalyze:
		r.startAnalysis(ctx, c)
	case cbRetry:
		if !r.authenticated(ctx, c.id) {
			r.send(c.id, r.t(c.id, "profile.required"))
			return
		}
		if c.retry() {
			r.startAnalysis(ctx, c)
		}
	case cbReset:
		c.session.Reset()
		r.send(c.id, r.t(c.id, "bot.reset"))
	}
}

func (r *Router) startAnalysis(ctx context.Context, c *chat) {
	if !r.authenticated(ctx, c.id) {
		r.send(c.id, r.t(c.id, "profile.required"))
		return
	}
	switch c.session.State().Kind() {
	case diagnosis.KindIdle:
		r.send(c.id, r.t(c.id, "error.no_image"))
		return
	case diagnosis.KindAnalyzing:
		r.send(c.id, r.t(c.id, "error.busy"))
		return
	}
	// the analysis outlives the update that triggered it
	c.session.StartAnalysis(context.WithoutCancel(ctx))
}

// authenticated reports whether the chat may run analyses.
func (r *Router) authenticated(ctx context.Context, chatID int64) bool {
	if !r.requireProfile {
		return true
	}
	p, err := r.profiles.Get(ctx, chatID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.log.Warn("load profile", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		return false
	}
	return p.Complete()
}
