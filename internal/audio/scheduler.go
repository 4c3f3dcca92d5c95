package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// ErrSchedulerClosed is returned by Enqueue after Shutdown.
var ErrSchedulerClosed = errors.New("audio scheduler closed")

// Sink is the output audio device the scheduler plays through. Play blocks
// until the samples have been handed to the device and must return early
// when ctx is cancelled, discarding whatever has not been written yet.
type Sink interface {
	Play(ctx context.Context, samples []float32, sampleRate int) error
	Close() error
}

type chunk struct {
	samples []float32
	rate    int
	start   time.Time
	dur     time.Duration
	epoch   uint64
}

// Scheduler plays independently-arriving PCM16 chunks back-to-back with no
// audible gap, and flushes everything immediately on interruption. Chunks
// are played strictly in arrival order; the computed next start time is
// monotonically non-decreasing until an interruption resets it.
type Scheduler struct {
	sink   Sink
	clk    clock.Clock
	logger *zap.Logger

	mu        sync.Mutex
	pending   []*chunk
	nextStart time.Time // zero value means "start immediately"
	epoch     uint64
	epochCtx  context.Context
	epochStop context.CancelFunc
	closed    bool

	wake chan struct{}
	done chan struct{}
}

// NewScheduler creates a scheduler playing through sink. The clock is
// injected so tests can drive scheduling deterministically.
func NewScheduler(sink Sink, clk clock.Clock, logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		sink:      sink,
		clk:       clk,
		logger:    logger,
		epochCtx:  ctx,
		epochStop: cancel,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go s.playLoop()
	return s
}

// Enqueue decodes a mono PCM16 chunk and schedules it to start at the later
// of now and the end of the previously scheduled chunk. A malformed chunk is
// dropped with a warning and does not affect other pending chunks.
func (s *Scheduler) Enqueue(pcm []byte, sampleRate int) error {
	bufs, err := PCM16ToFloat(pcm, 1)
	if err != nil {
		s.logger.Warn("Dropping malformed audio chunk",
			zap.Int("bytes", len(pcm)),
			zap.Error(err))
		return err
	}
	samples := bufs[0]
	dur := time.Duration(float64(len(samples)) / float64(sampleRate) * float64(time.Second))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	start := s.clk.Now()
	if s.nextStart.After(start) {
		start = s.nextStart
	}
	s.pending = append(s.pending, &chunk{
		samples: samples,
		rate:    sampleRate,
		start:   start,
		dur:     dur,
		epoch:   s.epoch,
	})
	s.nextStart = start.Add(dur)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Interrupt stops and discards every chunk scheduled or playing and resets
// the next start time, so the next Enqueue starts immediately. Idempotent.
// The flush is serialized against Enqueue: a chunk enqueued after Interrupt
// returns can never be discarded by it, and no chunk enqueued before it can
// play late.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.flushLocked()
}

// flushLocked discards pending chunks, aborts the in-flight write and
// resets the playback cursor. Caller holds s.mu.
func (s *Scheduler) flushLocked() {
	s.epoch++
	s.pending = nil
	s.nextStart = time.Time{}
	s.epochStop()
	s.epochCtx, s.epochStop = context.WithCancel(context.Background())
}

// Shutdown interrupts playback and releases the output device. The
// scheduler is unusable afterward; further Enqueue calls fail with
// ErrSchedulerClosed. Idempotent.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.flushLocked()
	s.epochStop()
	close(s.done)
	s.mu.Unlock()

	if err := s.sink.Close(); err != nil {
		s.logger.Warn("Failed to close output sink", zap.Error(err))
	}
}

func (s *Scheduler) playLoop() {
	for {
		s.mu.Lock()
		for len(s.pending) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
			case <-s.done:
				return
			}
			s.mu.Lock()
		}
		c := s.pending[0]
		s.pending = s.pending[1:]
		if s.closed || c.epoch != s.epoch {
			s.mu.Unlock()
			continue
		}
		ctx := s.epochCtx
		s.mu.Unlock()

		// The epoch context is cancelled by a flush, so an interruption
		// abandons this wait instead of holding up chunks enqueued
		// afterward until the discarded chunk's start time fires.
		if wait := c.start.Sub(s.clk.Now()); wait > 0 {
			t := s.clk.Timer(wait)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				continue
			case <-s.done:
				t.Stop()
				return
			}
		}
		if ctx.Err() != nil {
			continue
		}

		if err := s.sink.Play(ctx, c.samples, c.rate); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("Playback write failed",
				zap.Int("samples", len(c.samples)),
				zap.Error(err))
		}
	}
}
