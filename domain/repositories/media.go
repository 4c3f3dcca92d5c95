package repositories

import (
	"context"
	"errors"
	"image"
)

// ErrDeviceUnavailable indicates the user denied access to a capture device
// or no such device exists.
var ErrDeviceUnavailable = errors.New("media device unavailable")

// Microphone abstracts a continuous low-latency audio input device.
type Microphone interface {
	// Open activates the device and begins producing fixed-size sample
	// buffers. Fails with ErrDeviceUnavailable when no device can be opened.
	Open(ctx context.Context, sampleRate, framesPerBuffer int) error
	// Buffers yields captured mono float32 buffers in [-1,1]. The producer
	// drops buffers when the consumer falls behind; freshness beats
	// completeness for live streaming.
	Buffers() <-chan []float32
	// Close stops the device. Idempotent, safe before Open.
	Close() error
}

// FrameSource abstracts a live video feed that can be sampled for stills.
type FrameSource interface {
	// Open activates the feed. Fails with ErrDeviceUnavailable when no feed
	// is available.
	Open(ctx context.Context) error
	// Frame returns the most recent video frame.
	Frame() (image.Image, error)
	// Close stops the feed. Idempotent.
	Close() error
}
