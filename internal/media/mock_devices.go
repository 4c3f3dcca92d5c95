package media

import (
	"context"
	"image"
	"sync"

	"github.com/ritz-devbox/decisiv/domain/repositories"
)

// MockMicrophone is an in-memory microphone for tests and local development.
type MockMicrophone struct {
	mu      sync.Mutex
	out     chan []float32
	open    bool
	failure error
}

var _ repositories.Microphone = (*MockMicrophone)(nil)

// NewMockMicrophone creates a mock microphone. When failure is non-nil,
// Open fails with it.
func NewMockMicrophone(failure error) *MockMicrophone {
	return &MockMicrophone{failure: failure}
}

func (m *MockMicrophone) Open(ctx context.Context, sampleRate, framesPerBuffer int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	m.out = make(chan []float32, 64)
	m.open = true
	return nil
}

func (m *MockMicrophone) Buffers() <-chan []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.out
}

// Feed pushes one captured buffer, as if the device produced it.
func (m *MockMicrophone) Feed(buf []float32) {
	m.mu.Lock()
	out, open := m.out, m.open
	m.mu.Unlock()
	if open {
		out <- buf
	}
}

func (m *MockMicrophone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		m.open = false
		close(m.out)
	}
	return nil
}

// Opened reports whether the device is currently active.
func (m *MockMicrophone) Opened() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// MockFrameSource serves a fixed test image as the live camera feed.
type MockFrameSource struct {
	mu      sync.Mutex
	img     image.Image
	open    bool
	failure error
}

var _ repositories.FrameSource = (*MockFrameSource)(nil)

// NewMockFrameSource creates a mock camera serving img. When failure is
// non-nil, Open fails with it.
func NewMockFrameSource(img image.Image, failure error) *MockFrameSource {
	return &MockFrameSource{img: img, failure: failure}
}

func (f *MockFrameSource) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failure != nil {
		return f.failure
	}
	f.open = true
	return nil
}

func (f *MockFrameSource) Frame() (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return nil, repositories.ErrDeviceUnavailable
	}
	return f.img, nil
}

func (f *MockFrameSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}

// Opened reports whether the feed is currently active.
func (f *MockFrameSource) Opened() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}
