// Package media owns acquisition and release of the capture hardware for a
// live session: the microphone tap that feeds outbound audio, the volume
// meter derived from it, and on-demand still-frame capture from the camera
// feed.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/ritz-devbox/decisiv/domain/entities"
	"github.com/ritz-devbox/decisiv/domain/repositories"
)

// ErrNoVideo is returned by CaptureFrame when video was not acquired.
var ErrNoVideo = errors.New("video not acquired")

const (
	// InputSampleRate is the microphone sample rate (16kHz for speech).
	InputSampleRate = 16000
	// FramesPerBuffer is 100ms of audio at 16kHz.
	FramesPerBuffer = 1600

	// sampleWindow bounds how many captured buffers may pile up before the
	// consumer. Freshness over completeness: beyond this window, buffers
	// are dropped.
	sampleWindow = 8

	// maxFrameWidth and maxFrameHeight bound captured stills.
	maxFrameWidth  = 1280
	maxFrameHeight = 720
)

// Capture acquires and releases the capture devices and exposes the audio
// tap, the volume meter and still-frame capture. A Capture is reusable
// across acquire/release cycles.
type Capture struct {
	mic    repositories.Microphone
	camera repositories.FrameSource
	logger *zap.Logger

	mu       sync.Mutex
	acquired bool
	videoOn  bool
	volume   float64
	samples  chan []float32
	stop     context.CancelFunc

	dropped     uint64
	lastDropLog time.Time
}

// NewCapture creates a capture manager over the given device backends.
func NewCapture(mic repositories.Microphone, camera repositories.FrameSource, logger *zap.Logger) *Capture {
	return &Capture{
		mic:    mic,
		camera: camera,
		logger: logger,
	}
}

// Acquire activates the microphone, and the camera when wantVideo is set.
// Fails with ErrDeviceUnavailable when a required device cannot be opened;
// nothing stays held on failure.
func (c *Capture) Acquire(ctx context.Context, wantVideo bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.acquired {
		return fmt.Errorf("capture already acquired")
	}

	if err := c.mic.Open(ctx, InputSampleRate, FramesPerBuffer); err != nil {
		return fmt.Errorf("microphone: %w", err)
	}
	if wantVideo {
		if err := c.camera.Open(ctx); err != nil {
			if cerr := c.mic.Close(); cerr != nil {
				c.logger.Warn("Failed to release microphone after camera failure", zap.Error(cerr))
			}
			return fmt.Errorf("camera: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.acquired = true
	c.videoOn = wantVideo
	c.volume = 0
	c.samples = make(chan []float32, sampleWindow)
	c.stop = cancel
	c.dropped = 0

	go c.pumpAudio(runCtx, c.samples)

	c.logger.Info("Capture devices acquired", zap.Bool("video", wantVideo))
	return nil
}

// SampleAudio returns the stream of captured fixed-size float buffers. The
// channel is closed on Release. Valid only between Acquire and Release.
func (c *Capture) SampleAudio() <-chan []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.samples
}

// VolumeLevel returns the instantaneous loudness estimate in [0,1], derived
// from the most recent captured buffer. UI feedback only.
func (c *Capture) VolumeLevel() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// VideoEnabled reports whether the camera was acquired.
func (c *Capture) VideoEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired && c.videoOn
}

// CaptureFrame renders the current video frame to a JPEG still at the given
// quality in (0,1]. Fails with ErrNoVideo when video was not acquired; a
// frame failure does not tear down the capture manager.
func (c *Capture) CaptureFrame(quality float64) (*entities.CapturedFrame, error) {
	c.mu.Lock()
	ok := c.acquired && c.videoOn
	c.mu.Unlock()
	if !ok {
		return nil, ErrNoVideo
	}

	img, err := c.camera.Frame()
	if err != nil {
		return nil, fmt.Errorf("sampling frame: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxFrameWidth || bounds.Dy() > maxFrameHeight {
		img = imaging.Fit(img, maxFrameWidth, maxFrameHeight, imaging.Lanczos)
	}

	q := int(quality * 100)
	if q < 1 {
		q = 1
	} else if q > 100 {
		q = 100
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}

	return &entities.CapturedFrame{
		Data:       buf.Bytes(),
		MIMEType:   "image/jpeg",
		Quality:    quality,
		CapturedAt: time.Now(),
	}, nil
}

// Release stops all capture hardware. Idempotent; safe before Acquire.
func (c *Capture) Release() {
	c.mu.Lock()
	if !c.acquired {
		c.mu.Unlock()
		return
	}
	c.acquired = false
	c.videoOn = false
	c.volume = 0
	stop := c.stop
	c.stop = nil
	dropped := c.dropped
	c.mu.Unlock()

	stop()
	if err := c.mic.Close(); err != nil {
		c.logger.Warn("Failed to close microphone", zap.Error(err))
	}
	if err := c.camera.Close(); err != nil {
		c.logger.Warn("Failed to close camera", zap.Error(err))
	}
	c.logger.Info("Capture devices released", zap.Uint64("droppedBuffers", dropped))
}

// pumpAudio forwards microphone buffers into the bounded sample window and
// keeps the volume meter current. Buffers are dropped when the consumer
// falls behind.
func (c *Capture) pumpAudio(ctx context.Context, out chan []float32) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case buf, ok := <-c.mic.Buffers():
			if !ok {
				return
			}

			level := rmsLevel(buf)
			c.mu.Lock()
			c.volume = level
			c.mu.Unlock()

			select {
			case out <- buf:
			default:
				c.mu.Lock()
				c.dropped++
				if time.Since(c.lastDropLog) > time.Second {
					c.lastDropLog = time.Now()
					c.logger.Warn("Dropping captured audio, consumer too slow",
						zap.Uint64("totalDropped", c.dropped))
				}
				c.mu.Unlock()
			}
		}
	}
}

// rmsLevel estimates loudness of a buffer as clamped RMS scaled for speech.
func rmsLevel(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	// Full-scale speech sits well below 1.0 RMS; scale so normal speech
	// reads mid-range.
	level := math.Sqrt(sum/float64(len(samples))) * 4
	if level > 1 {
		level = 1
	}
	return level
}
