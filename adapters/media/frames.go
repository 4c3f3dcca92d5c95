package media

import (
	"context"
	"image"
	"sync"

	"github.com/ritz-devbox/decisiv/domain/repositories"
)

// FrameHolder is a FrameSource fed externally: whatever produces video
// (a UI preview, a capture process, a test) pushes its latest frame in, and
// the session samples it on demand. Only the most recent frame is kept.
type FrameHolder struct {
	mu     sync.Mutex
	latest image.Image
	open   bool
}

var _ repositories.FrameSource = (*FrameHolder)(nil)

// NewFrameHolder creates an empty frame holder.
func NewFrameHolder() *FrameHolder {
	return &FrameHolder{}
}

// SetFrame replaces the latest frame. Safe to call at any rate, open or not.
func (f *FrameHolder) SetFrame(img image.Image) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = img
}

// Open marks the feed active. Fails with ErrDeviceUnavailable when no
// producer has delivered a frame yet, so a session never starts with a
// camera that cannot produce.
func (f *FrameHolder) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return repositories.ErrDeviceUnavailable
	}
	f.open = true
	return nil
}

// Frame returns the most recent frame.
func (f *FrameHolder) Frame() (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open || f.latest == nil {
		return nil, repositories.ErrDeviceUnavailable
	}
	return f.latest, nil
}

// Close marks the feed inactive. The last frame is kept so a reopened
// session can start immediately.
func (f *FrameHolder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}
