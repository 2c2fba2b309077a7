package telegram

import (
	"fmt"
	"strings"

	"leaf-doctor/api/internal/analyzer"
	"leaf-doctor/api/internal/diagnosis"
	"leaf-doctor/api/internal/util"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbAnalyze = "analyze"
	cbReset   = "reset"
	cbRetry   = "retry"
)

func (r *Router) previewKeyboard(chatID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(r.t(chatID, "upload.analyze"), cbAnalyze),
		tgbotapi.NewInlineKeyboardButtonData(r.t(chatID, "common.cancel"), cbReset),
	))
}

func (r *Router) resultKeyboard(chatID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(r.t(chatID, "upload.results.retry"), cbReset),
	))
}

func (r *Router) failedKeyboard(chatID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(r.t(chatID, "upload.tryagain"), cbRetry),
		tgbotapi.NewInlineKeyboardButtonData(r.t(chatID, "upload.results.retry"), cbReset),
	))
}

// render turns a session snapshot into a chat message. Idle is silent; the
// command that caused it answers instead.
func (r *Router) render(chatID int64, ev event) {
	switch s := ev.state.(type) {
	case diagnosis.Previewing:
		caption := r.tf(chatID, "upload.preview", describe(s))
		if len(ev.thumb) > 0 {
			p := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "preview.jpg", Bytes: ev.thumb})
			p.Caption = caption
			p.ReplyMarkup = r.previewKeyboard(chatID)
			r.sendMsg(p)
			return
		}
		msg := tgbotapi.NewMessage(chatID, caption)
		msg.ReplyMarkup = r.previewKeyboard(chatID)
		r.sendMsg(msg)
	case diagnosis.Analyzing:
		r.send(chatID, r.t(chatID, "upload.analyzing"))
	case diagnosis.Result:
		msg := tgbotapi.NewMessage(chatID, r.formatDiagnosis(chatID, s.Diagnosis))
		msg.ParseMode = tgbotapi.ModeMarkdown
		msg.ReplyMarkup = r.resultKeyboard(chatID)
		r.sendMsg(msg)
	case diagnosis.Failed:
		msg := tgbotapi.NewMessage(chatID, r.t(chatID, "error."+s.Reason.String()))
		msg.ReplyMarkup = r.failedKeyboard(chatID)
		r.sendMsg(msg)
	}
}

func describe(s diagnosis.Previewing) string {
	c := s.Candidate
	size := fmt.Sprintf("%.1f KB", float64(c.Size())/1024)
	if s.Preview != nil {
		if w, h := s.Preview.Dimensions(); w > 0 && h > 0 {
			size = fmt.Sprintf("%dx%d, %s", w, h, size)
		}
	}
	if c.Name() != "" {
		return c.Name() + ", " + size
	}
	return size
}

func (r *Router) formatDiagnosis(chatID int64, d analyzer.Diagnosis) string {
	var b strings.Builder
	b.WriteString("*" + esc(r.t(chatID, "upload.results.title")) + "*\n\n")
	fmt.Fprintf(&b, "%s: *%s*\n", esc(r.t(chatID, "upload.results.disease")), esc(d.Disease))
	if d.Category != "" {
		fmt.Fprintf(&b, "%s: %s\n", esc(r.t(chatID, "upload.results.category")), esc(r.t(chatID, "category."+string(d.Category))))
	}
	fmt.Fprintf(&b, "%s: %.1f%%\n", esc(r.t(chatID, "upload.results.confidence")), d.Confidence)
	if d.Treatment != "" {
		fmt.Fprintf(&b, "\n%s:\n%s", esc(r.t(chatID, "upload.results.treatment")), esc(util.Truncate(d.Treatment, 3500)))
	}
	return b.String()
}

// esc escapes legacy Markdown control characters.
func esc(s string) string {
	s = strings.ReplaceAll(s, "`", "'")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "[", "\\[")
	return s
}
