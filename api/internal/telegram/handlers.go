package telegram

import (
	"context"
	"fmt"
	"strings"

	"leaf-doctor/api/internal/acquire"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const historyLimit = 5

func (r *Router) handleCommand(ctx context.Context, c *chat, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		r.send(c.id, r.startText(c.id))
	case "help":
		r.send(c.id, r.t(c.id, "bot.help"))
	case "problem":
		r.send(c.id, r.t(c.id, "problem.title")+"\n\n"+r.t(c.id, "problem.intro")+"\n\n"+r.t(c.id, "problem.conclusion"))
	case "reset":
		c.session.Reset()
		r.send(c.id, r.t(c.id, "bot.reset"))
	case "lang":
		r.handleLang(ctx, c, args)
	case "engine":
		r.handleEngine(c, args)
	case "profile":
		r.startProfile(ctx, c)
	case "cancel":
		r.cancelProfile(c)
	case "history":
		r.handleHistory(ctx, c)
	default:
		r.send(c.id, r.t(c.id, "bot.unknown"))
	}
}

// startText lists only the ways of sending an image this bot can handle.
func (r *Router) startText(chatID int64) string {
	var b strings.Builder
	b.WriteString(r.t(chatID, "home.title") + "\n" + r.t(chatID, "home.subtitle") + "\n\n")
	aff := acquire.Affordances(r.Capabilities())
	if acquire.Has(aff, acquire.AffordanceBrowse) {
		b.WriteString("• " + r.t(chatID, "upload.dragdrop") + " " + r.t(chatID, "upload.browse") + "\n")
	}
	if acquire.Has(aff, acquire.AffordanceCamera) {
		b.WriteString("• " + r.t(chatID, "upload.camera") + "\n")
	}
	if acquire.Has(aff, acquire.AffordanceDictate) {
		b.WriteString("• " + r.t(chatID, "voice.hint") + "\n")
	}
	b.WriteString(r.t(chatID, "upload.supported") + "\n\n" + r.t(chatID, "bot.start"))
	return b.String()
}

func (r *Router) handleLang(ctx context.Context, c *chat, args []string) {
	if len(args) == 0 || !r.tr.IsSupported(strings.ToLower(args[0])) {
		r.send(c.id, r.t(c.id, "bot.lang_usage"))
		return
	}
	lang := strings.ToLower(args[0])
	r.langs.Store(c.id, lang)
	if err := r.profiles.SetLanguage(ctx, c.id, lang); err != nil {
		r.log.Warn("save language", zap.Int64("chat_id", c.id), zap.Error(err))
	}
	r.send(c.id, r.t(c.id, "bot.lang_set"))
}

// handleEngine shows or switches the engine used for this chat:
//
//	/engine
//	/engine gemini|gpt|stub|remote
func (r *Router) handleEngine(c *chat, args []string) {
	m := r.svc.Manager()
	if len(args) == 0 {
		cur := "-"
		if e := m.Get(c.id); e != nil {
			cur = e.Name() + " (" + e.GetModel() + ")"
		}
		r.send(c.id, r.tf(c.id, "bot.engine_current", cur, strings.Join(m.Names(), " | ")))
		return
	}
	eng, err := m.Lookup(strings.ToLower(args[0]))
	if err != nil {
		r.send(c.id, err.Error())
		return
	}
	m.Set(c.id, eng)
	r.send(c.id, r.tf(c.id, "bot.engine_set", eng.Name()+" ("+eng.GetModel()+")"))
}

func (r *Router) handleHistory(ctx context.Context, c *chat) {
	if r.history == nil {
		r.send(c.id, r.t(c.id, "history.empty"))
		return
	}
	recs, err := r.history.ListByChat(ctx, c.id, historyLimit)
	if err != nil {
		r.sendError(c.id, err)
		return
	}
	if len(recs) == 0 {
		r.send(c.id, r.t(c.id, "history.empty"))
		return
	}
	var b strings.Builder
	b.WriteString(r.t(c.id, "history.title"))
	for _, rec := range recs {
		fmt.Fprintf(&b, "\n%s  %s (%.1f%%)", rec.CreatedAt.Format("2006-01-02 15:04"), rec.Diagnosis.Disease, rec.Diagnosis.Confidence)
	}
	r.send(c.id, b.String())
}
