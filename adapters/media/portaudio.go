// Package media contains the device adapters for a live session: the
// portaudio microphone and playback backends, and the frame holder serving
// camera stills.
package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/ritz-devbox/decisiv/domain/repositories"
	"github.com/ritz-devbox/decisiv/internal/audio"
)

// Init initializes the portaudio runtime. Call once at process start,
// paired with Terminate at exit.
func Init() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}
	return nil
}

// Terminate releases the portaudio runtime.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("terminating portaudio: %w", err)
	}
	return nil
}

// Microphone captures mono float32 audio from the default input device.
type Microphone struct {
	logger *zap.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	out    chan []float32
	stop   chan struct{}
}

var _ repositories.Microphone = (*Microphone)(nil)

// NewMicrophone creates a microphone over the default input device.
func NewMicrophone(logger *zap.Logger) *Microphone {
	return &Microphone{logger: logger}
}

// Open starts capturing. The device keeps producing into a bounded channel;
// buffers are dropped when the consumer falls behind.
func (m *Microphone) Open(ctx context.Context, sampleRate, framesPerBuffer int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil {
		return fmt.Errorf("microphone already open")
	}

	in := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, in)
	if err != nil {
		return fmt.Errorf("%w: opening input stream: %v", repositories.ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: starting input stream: %v", repositories.ErrDeviceUnavailable, err)
	}

	m.stream = stream
	m.out = make(chan []float32, 64)
	m.stop = make(chan struct{})

	go m.readLoop(stream, in, m.out, m.stop)

	m.logger.Info("Microphone open",
		zap.Int("sampleRate", sampleRate),
		zap.Int("framesPerBuffer", framesPerBuffer))
	return nil
}

func (m *Microphone) readLoop(stream *portaudio.Stream, in []float32, out chan []float32, stop chan struct{}) {
	defer close(out)
	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			select {
			case <-stop:
			default:
				m.logger.Warn("Microphone read failed", zap.Error(err))
			}
			return
		}

		buf := make([]float32, len(in))
		copy(buf, in)
		select {
		case out <- buf:
		default:
			// Drop when the consumer is behind; stale audio is worse than
			// missing audio for a live conversation.
		}
	}
}

// Buffers returns the captured buffer stream, closed when capture stops.
func (m *Microphone) Buffers() <-chan []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.out
}

// Close stops the device. Idempotent.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return nil
	}
	close(m.stop)
	if err := m.stream.Stop(); err != nil {
		m.logger.Warn("Failed to stop input stream", zap.Error(err))
	}
	err := m.stream.Close()
	m.stream = nil
	m.logger.Info("Microphone closed")
	return err
}

// PlaybackSink plays mono float32 audio through the default output device.
// It satisfies the scheduler's sink contract: Play blocks until the samples
// are written and aborts early on context cancellation.
type PlaybackSink struct {
	logger *zap.Logger

	mu         sync.Mutex
	stream     *portaudio.Stream
	buf        []float32
	sampleRate int
	closed     bool
}

var _ audio.Sink = (*PlaybackSink)(nil)

// playbackFrames is the write granularity: ~40ms at 24kHz, small enough
// that cancellation cuts playback off promptly.
const playbackFrames = 960

// NewPlaybackSink creates a sink over the default output device. The
// stream itself is opened lazily at the first Play, when the sample rate
// is known.
func NewPlaybackSink(logger *zap.Logger) *PlaybackSink {
	return &PlaybackSink{logger: logger}
}

func (p *PlaybackSink) ensureStream(sampleRate int) (*portaudio.Stream, []float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, nil, fmt.Errorf("playback sink closed")
	}
	if p.stream != nil && p.sampleRate == sampleRate {
		return p.stream, p.buf, nil
	}
	if p.stream != nil {
		p.stream.Close()
		p.stream = nil
	}

	buf := make([]float32, playbackFrames)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), playbackFrames, buf)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: opening output stream: %v", repositories.ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, nil, fmt.Errorf("%w: starting output stream: %v", repositories.ErrDeviceUnavailable, err)
	}
	p.stream = stream
	p.buf = buf
	p.sampleRate = sampleRate
	p.logger.Info("Playback stream open", zap.Int("sampleRate", sampleRate))
	return stream, buf, nil
}

// Play writes the samples to the device in small blocks, checking ctx
// between blocks so an interruption stops output within one block.
func (p *PlaybackSink) Play(ctx context.Context, samples []float32, sampleRate int) error {
	stream, buf, err := p.ensureStream(sampleRate)
	if err != nil {
		return err
	}

	for offset := 0; offset < len(samples); offset += playbackFrames {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buf, samples[offset:])
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("writing playback block: %w", err)
		}
	}
	return nil
}

// Close stops the output device. Idempotent.
func (p *PlaybackSink) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.stream == nil {
		return nil
	}
	if err := p.stream.Stop(); err != nil {
		p.logger.Warn("Failed to stop output stream", zap.Error(err))
	}
	err := p.stream.Close()
	p.stream = nil
	return err
}
