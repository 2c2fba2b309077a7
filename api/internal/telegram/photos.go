package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"leaf-doctor/api/internal/acquire"
	"leaf-doctor/api/internal/diagnosis"
	"leaf-doctor/api/internal/media"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// albumBatch collects the photos of one media group until no new item has
// arrived for the debounce window. Only the first item is analysed.
type albumBatch struct {
	chat  *chat
	key   string
	mu    sync.Mutex
	items []tgbotapi.PhotoSize
	timer *time.Timer
}

// acceptPhoto maps a single compressed photo to the camera source.
func (r *Router) acceptPhoto(ctx context.Context, c *chat, msg *tgbotapi.Message) {
	f, err := r.fetchPhoto(ctx, largest(msg.Photo))
	if err != nil {
		r.sendError(c.id, err)
		return
	}
	c.camera.Capture(f)
}

// acceptDocument maps a file upload to the picker. Files the validator would
// refuse anyway are not downloaded.
func (r *Router) acceptDocument(ctx context.Context, c *chat, msg *tgbotapi.Message) {
	doc := msg.Document
	f := acquire.File{Name: doc.FileName, MIME: doc.MimeType, Size: int64(doc.FileSize)}
	probe := media.NewCandidate(nil, f.MIME, media.SourcePicker).WithSize(f.Size)
	if v := r.validator.Validate(probe); v.Accepted || f.MIME == "" {
		data, err := r.download(ctx, doc.FileID)
		if err != nil {
			r.sendError(c.id, err)
			return
		}
		f.Data = data
	}
	c.picker.Pick(f)
}

// acceptAlbumItem queues one photo of a media group. The album behaves like a
// multi-file drop: it hovers while items arrive and drops once it is complete.
func (r *Router) acceptAlbumItem(ctx context.Context, c *chat, msg *tgbotapi.Message) {
	key := "grp:" + msg.MediaGroupID
	bi, _ := r.batches.LoadOrStore(key, &albumBatch{chat: c, key: key})
	b := bi.(*albumBatch)

	b.mu.Lock()
	b.items = append(b.items, largest(msg.Photo))
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(r.albumDebounce, func() { r.flushAlbum(context.WithoutCancel(ctx), key) })
	first := len(b.items) == 1
	b.mu.Unlock()

	if first {
		c.drop.DragEnter()
	}
}

func (r *Router) flushAlbum(ctx context.Context, key string) {
	bi, ok := r.batches.LoadAndDelete(key)
	if !ok {
		return
	}
	b := bi.(*albumBatch)
	b.mu.Lock()
	items := append([]tgbotapi.PhotoSize(nil), b.items...)
	b.mu.Unlock()
	if len(items) == 0 {
		b.chat.drop.DragLeave()
		return
	}

	f, err := r.fetchPhoto(ctx, items[0])
	if err != nil {
		b.chat.drop.DragLeave()
		r.sendError(b.chat.id, err)
		return
	}
	if len(items) > 1 {
		r.send(b.chat.id, r.t(b.chat.id, "bot.album_first"))
	}
	b.chat.drop.Drop(f)
}

func (r *Router) fetchPhoto(ctx context.Context, ph tgbotapi.PhotoSize) (acquire.File, error) {
	data, err := r.download(ctx, ph.FileID)
	if err != nil {
		return acquire.File{}, err
	}
	// compressed photos carry no MIME; the candidate sniffs it
	return acquire.File{Name: ph.FileUniqueID + ".jpg", Data: data}, nil
}

// reportSelection tells the user why an image was not accepted. Accepted
// images are rendered by the session observer.
func (r *Router) reportSelection(chatID int64, v media.Verdict, err error) {
	switch {
	case errors.Is(err, diagnosis.ErrBusy):
		r.send(chatID, r.t(chatID, "error.busy"))
	case err != nil:
		r.sendError(chatID, err)
	case v.Reason == media.ReasonUnsupportedType:
		r.send(chatID, r.tf(chatID, "error.unsupported_type", r.t(chatID, "upload.supported")))
	case v.Reason == media.ReasonTooLarge:
		r.send(chatID, r.t(chatID, "error.too_large"))
	}
}

func largest(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}

func (r *Router) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := r.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download: status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

func (r *Router) sendError(chatID int64, err error) {
	r.log.Warn("chat error", zap.Int64("chat_id", chatID), zap.Error(err))
	r.send(chatID, r.t(chatID, "common.error"))
}
