// Package preview derives renderable, revocable previews from accepted
// candidates and keeps count of the ones still alive.
package preview

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"sync"
	"sync/atomic"

	"leaf-doctor/api/internal/media"
	"leaf-doctor/api/internal/metrics"
	"leaf-doctor/api/internal/util"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxSide bounds the longer edge of a thumbnail.
	DefaultMaxSide = 512
	thumbQuality   = 85
)

// ErrReleased is returned when a handle is released a second time.
var ErrReleased = errors.New("preview: handle already released")

// Handle is a renderable reference to an accepted image. Release must be
// called exactly once.
type Handle struct {
	id        uint64
	mime      string
	dataURL   string
	thumb     []byte
	width     int
	height    int
	released  atomic.Bool
	onRelease func(*Handle)
}

func (h *Handle) ID() uint64 { return h.id }

// DataURL is the full image as a data: URI, ready for an <img> tag.
func (h *Handle) DataURL() string { return h.dataURL }

// Thumbnail is a JPEG no larger than the deriver's MaxSide. It is nil when
// the image could not be decoded; DataURL is always set.
func (h *Handle) Thumbnail() []byte { return h.thumb }

// Dimensions of the original image, zero when undecodable.
func (h *Handle) Dimensions() (int, int) { return h.width, h.height }

func (h *Handle) Released() bool { return h.released.Load() }

// Release revokes the handle.
func (h *Handle) Release() error {
	if !h.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	h.dataURL = ""
	h.thumb = nil
	if h.onRelease != nil {
		h.onRelease(h)
	}
	return nil
}

// Deriver builds handles and tracks how many are alive.
type Deriver struct {
	MaxSide int

	mu       sync.Mutex
	nextID   uint64
	live     map[uint64]struct{}
	released uint64
}

func NewDeriver(maxSide int) *Deriver {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	return &Deriver{MaxSide: maxSide, live: map[uint64]struct{}{}}
}

// Derive creates a handle for c. Decoding problems only drop the thumbnail.
func (d *Deriver) Derive(c media.Candidate) (*Handle, error) {
	data := c.Bytes()
	if len(data) == 0 {
		return nil, fmt.Errorf("preview: empty image")
	}
	h := &Handle{
		mime:    c.MIME(),
		dataURL: util.MakeDataURL(c.MIME(), base64.StdEncoding.EncodeToString(data)),
	}
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		b := img.Bounds()
		h.width, h.height = b.Dx(), b.Dy()
		if thumb, err := encodeThumb(img, d.MaxSide); err == nil {
			h.thumb = thumb
		}
	}

	d.mu.Lock()
	d.nextID++
	h.id = d.nextID
	d.live[h.id] = struct{}{}
	d.mu.Unlock()
	metrics.LivePreviews.Inc()

	h.onRelease = d.forget
	return h, nil
}

func (d *Deriver) forget(h *Handle) {
	d.mu.Lock()
	delete(d.live, h.id)
	d.released++
	d.mu.Unlock()
	metrics.LivePreviews.Dec()
}

// Live is the number of handles not yet released.
func (d *Deriver) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// ReleasedCount is the number of successful releases so far.
func (d *Deriver) ReleasedCount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

func encodeThumb(src image.Image, maxSide int) ([]byte, error) {
	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("preview: empty bounds")
	}
	nw, nh := w, h
	if w > maxSide || h > maxSide {
		if w >= h {
			nw = maxSide
			nh = h * maxSide / w
		} else {
			nh = maxSide
			nw = w * maxSide / h
		}
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: thumbQuality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
