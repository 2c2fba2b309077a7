// Package acquire produces image candidates from the ways a user can hand
// over a photo: picking a file, dropping files, or capturing with a camera.
// Every variant reports through the same Handler.
package acquire

import (
	"sync"

	"leaf-doctor/api/internal/media"
)

// Handler receives every candidate a source produces.
type Handler func(media.Candidate)

// File is a platform file before it becomes a candidate.
type File struct {
	Name string
	MIME string
	Data []byte
	// Size is the size the platform announced; zero means len(Data).
	Size int64
}

func (f File) candidate(kind media.SourceKind) media.Candidate {
	c := media.NewCandidate(f.Data, f.MIME, kind).WithName(f.Name)
	if f.Size > 0 {
		c = c.WithSize(f.Size)
	}
	return c
}

// Picker is an explicit single-file chooser.
type Picker struct {
	onCandidate Handler
}

func NewPicker(h Handler) *Picker { return &Picker{onCandidate: h} }

// Pick emits at most one candidate per invocation: the first file.
func (p *Picker) Pick(files ...File) bool {
	if len(files) == 0 || p.onCandidate == nil {
		return false
	}
	p.onCandidate(files[0].candidate(media.SourcePicker))
	return true
}

// DropTarget tracks the hover affordance and accepts the first dropped file.
type DropTarget struct {
	onCandidate Handler

	mu       sync.Mutex
	hovering bool
}

func NewDropTarget(h Handler) *DropTarget { return &DropTarget{onCandidate: h} }

func (d *DropTarget) DragEnter() { d.setHover(true) }
func (d *DropTarget) DragLeave() { d.setHover(false) }

func (d *DropTarget) Hovering() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hovering
}

func (d *DropTarget) setHover(v bool) {
	d.mu.Lock()
	d.hovering = v
	d.mu.Unlock()
}

// Drop clears the hover state and emits the first file, ignoring the rest.
func (d *DropTarget) Drop(files ...File) bool {
	d.setHover(false)
	if len(files) == 0 || d.onCandidate == nil {
		return false
	}
	d.onCandidate(files[0].candidate(media.SourceDrop))
	return true
}

// Facing is the preferred camera direction.
type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// Camera behaves like Picker but carries a device preference for the rear camera.
type Camera struct {
	onCandidate Handler
	facing      Facing
}

func NewCamera(h Handler) *Camera { return &Camera{onCandidate: h, facing: FacingEnvironment} }

func (c *Camera) Facing() Facing { return c.facing }

// Constraints is the capture hint a platform camera understands.
func (c *Camera) Constraints() map[string]string {
	return map[string]string{"capture": string(c.facing), "accept": "image/*"}
}

// Capture emits the captured photo.
func (c *Camera) Capture(f File) bool {
	if c.onCandidate == nil {
		return false
	}
	c.onCandidate(f.candidate(media.SourceCamera))
	return true
}
