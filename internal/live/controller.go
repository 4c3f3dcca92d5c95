// Package live implements the streaming session controller: the state
// machine orchestrating the connect/stream/interrupt/disconnect lifecycle of
// one bidirectional interrogation conversation with the remote reasoning
// service. The controller owns the media capture manager, the output audio
// scheduler, the transcript log and every timer of the session; stale
// callbacks from a superseded session are detected with an epoch counter and
// ignored.
package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ritz-devbox/decisiv/domain/entities"
	"github.com/ritz-devbox/decisiv/domain/repositories"
	"github.com/ritz-devbox/decisiv/internal/audio"
	"github.com/ritz-devbox/decisiv/internal/media"
	"github.com/ritz-devbox/decisiv/internal/metrics"
)

// ErrInvalidStateTransition is returned when an operation is invoked in a
// session state that forbids it. The session state is never corrupted by
// such a call.
var ErrInvalidStateTransition = errors.New("invalid session state transition")

// OutputSampleRate is the sample rate of inbound reply audio (24kHz mono).
const OutputSampleRate = 24000

const (
	defaultFrameInterval   = time.Second
	defaultFrameQuality    = 0.4
	defaultArtifactQuality = 0.95
)

// Config seeds a controller with the scenario under interrogation.
type Config struct {
	Model string
	// Headline and SimpleHeadline are the verdict's decision strings; one
	// of them seeds the session's system context depending on Simplified.
	Headline       string
	SimpleHeadline string
	// Simplified selects the plain, analogy-driven persona instead of the
	// strategic one.
	Simplified bool

	// FrameInterval is the cadence of periodic frame streaming while video
	// is enabled. Defaults to one second.
	FrameInterval time.Duration
	// FrameQuality is the JPEG quality of periodic frames; ArtifactQuality
	// is used for explicit artifact analysis stills.
	FrameQuality    float64
	ArtifactQuality float64
}

func (c *Config) applyDefaults() {
	if c.FrameInterval <= 0 {
		c.FrameInterval = defaultFrameInterval
	}
	if c.FrameQuality <= 0 {
		c.FrameQuality = defaultFrameQuality
	}
	if c.ArtifactQuality <= 0 {
		c.ArtifactQuality = defaultArtifactQuality
	}
}

// SinkFactory opens the output audio device for one session.
type SinkFactory func() (audio.Sink, error)

// Controller drives one live interrogation session at a time. All methods
// are safe for concurrent use; event handlers arriving after a disconnect
// has begun are ignored.
type Controller struct {
	channel repositories.LiveChannel
	capture *media.Capture
	newSink SinkFactory
	clk     clock.Clock
	logger  *zap.Logger
	cfg     Config

	mu           sync.Mutex
	status       entities.SessionStatus
	epoch        uint64
	stream       repositories.LiveStream
	sched        *audio.Scheduler
	cancel       context.CancelFunc
	videoEnabled bool
	agg          Aggregator
	entries      []entities.TranscriptEntry
}

// NewController creates a controller in the Idle state.
func NewController(
	channel repositories.LiveChannel,
	capture *media.Capture,
	newSink SinkFactory,
	clk clock.Clock,
	logger *zap.Logger,
	cfg Config,
) *Controller {
	cfg.applyDefaults()
	return &Controller{
		channel: channel,
		capture: capture,
		newSink: newSink,
		clk:     clk,
		logger:  logger,
		cfg:     cfg,
		status:  entities.SessionIdle,
	}
}

// Status returns the current session status.
func (c *Controller) Status() entities.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// VideoEnabled reports whether video is requested for the session.
func (c *Controller) VideoEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.videoEnabled
}

// VolumeLevel returns the current microphone loudness estimate for UI
// feedback.
func (c *Controller) VolumeLevel() float64 {
	return c.capture.VolumeLevel()
}

// Transcript returns the committed conversation turns.
func (c *Controller) Transcript() []entities.TranscriptEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entities.TranscriptEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// PendingTranscript returns the model's in-flight, not-yet-committed text.
func (c *Controller) PendingTranscript() string {
	return c.agg.Pending()
}

// Connect acquires the capture devices, opens the remote channel and begins
// streaming. Valid from Idle and after a terminal state; a session that is
// already connecting or live rejects the call. When initialText is
// non-empty it is sent as soon as the channel is live and logged as a
// committed user turn. On failure at any point every acquired resource is
// released and the session is Failed.
func (c *Controller) Connect(ctx context.Context, initialText string) error {
	c.mu.Lock()
	if !c.status.CanConnect() {
		c.mu.Unlock()
		return ErrInvalidStateTransition
	}
	c.status = entities.SessionConnecting
	c.epoch++
	epoch := c.epoch
	wantVideo := c.videoEnabled
	c.agg.Reset()
	c.mu.Unlock()

	metrics.SessionsStarted.Inc()
	c.logger.Info("Connecting live session",
		zap.Uint64("epoch", epoch),
		zap.Bool("video", wantVideo))

	if err := c.capture.Acquire(ctx, wantVideo); err != nil {
		// Device denied: no remote channel was opened, nothing to unwind.
		c.abandonConnect(epoch, err)
		return err
	}

	stream, err := c.channel.Connect(ctx, repositories.LiveConfig{
		Model:            c.cfg.Model,
		SystemContext:    c.systemContext(),
		TranscribeOutput: true,
	})
	if err != nil {
		c.capture.Release()
		c.abandonConnect(epoch, err)
		return err
	}

	sink, err := c.newSink()
	if err != nil {
		if cerr := stream.Close(); cerr != nil {
			c.logger.Warn("Failed to close stream during unwind", zap.Error(cerr))
		}
		c.capture.Release()
		c.abandonConnect(epoch, err)
		return fmt.Errorf("output device: %w", err)
	}

	sessCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.epoch != epoch || c.status != entities.SessionConnecting {
		// A disconnect raced the connect; the connecting goroutine still
		// owns everything it acquired and must unwind it.
		c.mu.Unlock()
		cancel()
		if cerr := stream.Close(); cerr != nil {
			c.logger.Warn("Failed to close superseded stream", zap.Error(cerr))
		}
		if cerr := sink.Close(); cerr != nil {
			c.logger.Warn("Failed to close superseded sink", zap.Error(cerr))
		}
		c.capture.Release()
		return ErrInvalidStateTransition
	}
	c.stream = stream
	c.sched = audio.NewScheduler(sink, c.clk, c.logger)
	c.cancel = cancel
	c.status = entities.SessionLive
	samples := c.capture.SampleAudio()
	c.mu.Unlock()

	metrics.SessionsActive.Inc()
	c.logger.Info("Live session open", zap.Uint64("epoch", epoch))

	if initialText != "" {
		if err := stream.SendText(initialText); err != nil {
			c.logger.Warn("Failed to send initial query", zap.Error(err))
		} else {
			c.appendEntry(epoch, entities.TranscriptEntry{
				Role:      entities.TranscriptUser,
				Text:      initialText,
				Timestamp: time.Now(),
			})
		}
	}

	go c.pumpOutboundAudio(sessCtx, epoch, stream, samples)
	if wantVideo {
		go c.pumpFrames(sessCtx, epoch, stream)
	}
	go c.pumpInbound(epoch, stream)

	return nil
}

// Disconnect tears the session down and moves it to Closed. Valid from
// Connecting or Live; calling it while Idle or already torn down is a
// no-op. Resources are released exactly once.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	switch c.status {
	case entities.SessionLive:
		// fallthrough to teardown below
	case entities.SessionConnecting:
		// The in-flight connect goroutine still owns the resources it has
		// acquired so far; bumping the epoch makes it unwind them itself.
		c.status = entities.SessionClosed
		c.epoch++
		c.mu.Unlock()
		c.logger.Info("Connect attempt abandoned by disconnect")
		return
	default:
		c.mu.Unlock()
		return
	}

	c.status = entities.SessionClosing
	c.epoch++
	stream, sched, cancel := c.stream, c.sched, c.cancel
	c.stream, c.sched, c.cancel = nil, nil, nil
	// Whatever the model had said so far was heard; keep it.
	if entry, ok := c.agg.Commit(entities.TranscriptModel); ok {
		c.entries = append(c.entries, entry)
	}
	c.mu.Unlock()

	c.release(stream, sched, cancel)

	c.mu.Lock()
	c.status = entities.SessionClosed
	c.mu.Unlock()
	metrics.SessionsActive.Dec()
	c.logger.Info("Live session closed")
}

// ToggleVideo flips the video request. While live this forces a full
// disconnect/reconnect cycle: the remote channel's media configuration
// cannot be changed mid-session. A toggle during an in-flight connect or
// teardown is rejected; flipping the flag then would leave the session's
// acquired devices disagreeing with it.
func (c *Controller) ToggleVideo(ctx context.Context) error {
	c.mu.Lock()
	if c.status == entities.SessionConnecting || c.status == entities.SessionClosing {
		c.mu.Unlock()
		return ErrInvalidStateTransition
	}
	c.videoEnabled = !c.videoEnabled
	wasLive := c.status == entities.SessionLive
	c.mu.Unlock()

	if !wasLive {
		return nil
	}
	c.Disconnect()
	return c.Connect(ctx, "")
}

// AnalyzeArtifact captures one high-quality still, sends it with the
// analysis prompt and logs a placeholder user turn. Valid only while live
// with video enabled.
func (c *Controller) AnalyzeArtifact() error {
	c.mu.Lock()
	if c.status != entities.SessionLive || !c.videoEnabled {
		c.mu.Unlock()
		return ErrInvalidStateTransition
	}
	epoch := c.epoch
	stream := c.stream
	c.mu.Unlock()

	frame, err := c.capture.CaptureFrame(c.cfg.ArtifactQuality)
	if err != nil {
		return fmt.Errorf("capturing artifact frame: %w", err)
	}

	if err := stream.SendImage(audio.EncodeBase64(frame.Data), frame.MIMEType); err != nil {
		return fmt.Errorf("sending artifact frame: %w", err)
	}
	if err := stream.SendText(c.artifactPrompt()); err != nil {
		return fmt.Errorf("sending artifact prompt: %w", err)
	}

	c.appendEntry(epoch, entities.TranscriptEntry{
		Role:      entities.TranscriptUser,
		Text:      "[Visual evidence transmitted]",
		Timestamp: time.Now(),
	})
	c.logger.Info("Artifact frame sent", zap.Int("bytes", len(frame.Data)))
	return nil
}

// abandonConnect marks a failed connect attempt, unless a disconnect
// already superseded it.
func (c *Controller) abandonConnect(epoch uint64, err error) {
	c.mu.Lock()
	if c.epoch == epoch && c.status == entities.SessionConnecting {
		c.status = entities.SessionFailed
	}
	c.mu.Unlock()
	metrics.SessionsFailed.Inc()
	c.logger.Error("Live session connect failed", zap.Error(err))
}

// fail tears a live session down after an unrecoverable remote error.
func (c *Controller) fail(epoch uint64, cause error) {
	c.mu.Lock()
	if c.epoch != epoch || c.status != entities.SessionLive {
		c.mu.Unlock()
		return
	}
	c.status = entities.SessionClosing
	c.epoch++
	stream, sched, cancel := c.stream, c.sched, c.cancel
	c.stream, c.sched, c.cancel = nil, nil, nil
	if entry, ok := c.agg.Commit(entities.TranscriptModel); ok {
		c.entries = append(c.entries, entry)
	}
	c.mu.Unlock()

	c.release(stream, sched, cancel)

	c.mu.Lock()
	c.status = entities.SessionFailed
	c.mu.Unlock()
	metrics.SessionsActive.Dec()
	metrics.SessionsFailed.Inc()
	c.logger.Error("Live session failed", zap.Error(cause))
}

// release frees the session-owned resources, in the order that stops
// producers before consumers.
func (c *Controller) release(stream repositories.LiveStream, sched *audio.Scheduler, cancel context.CancelFunc) {
	cancel()
	if err := stream.Close(); err != nil && !errors.Is(err, repositories.ErrChannelClosed) {
		c.logger.Warn("Failed to close live stream", zap.Error(err))
	}
	sched.Shutdown()
	c.capture.Release()
}

// appendEntry commits a transcript entry unless the session was superseded.
func (c *Controller) appendEntry(epoch uint64, entry entities.TranscriptEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	c.entries = append(c.entries, entry)
}

// pumpOutboundAudio encodes every captured buffer and sends it as it
// becomes available. Exits when the session context is cancelled or the
// capture window closes.
func (c *Controller) pumpOutboundAudio(ctx context.Context, epoch uint64, stream repositories.LiveStream, samples <-chan []float32) {
	for {
		select {
		case <-ctx.Done():
			return
		case buf, ok := <-samples:
			if !ok {
				return
			}
			if !c.isCurrent(epoch) {
				return
			}
			payload := audio.EncodeBase64(audio.FloatToPCM16(buf))
			if err := stream.SendAudio(payload); err != nil {
				if errors.Is(err, repositories.ErrChannelClosed) {
					return
				}
				c.logger.Warn("Failed to send audio chunk", zap.Error(err))
			}
		}
	}
}

// pumpFrames streams a reduced-quality still at a fixed interval,
// independent of the audio cadence.
func (c *Controller) pumpFrames(ctx context.Context, epoch uint64, stream repositories.LiveStream) {
	ticker := c.clk.Ticker(c.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.isCurrent(epoch) {
				return
			}
			frame, err := c.capture.CaptureFrame(c.cfg.FrameQuality)
			if err != nil {
				c.logger.Debug("Skipping frame sample", zap.Error(err))
				continue
			}
			if err := stream.SendImage(audio.EncodeBase64(frame.Data), frame.MIMEType); err != nil {
				if errors.Is(err, repositories.ErrChannelClosed) {
					return
				}
				c.logger.Warn("Failed to send video frame", zap.Error(err))
				continue
			}
			metrics.FramesStreamed.Inc()
		}
	}
}

// pumpInbound demultiplexes server messages until the stream ends. Runs in
// a single goroutine so inbound audio and text keep arrival order.
func (c *Controller) pumpInbound(epoch uint64, stream repositories.LiveStream) {
	for {
		msg, err := stream.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.remoteClosed(epoch)
			} else {
				c.fail(epoch, err)
			}
			return
		}
		c.handleServerMessage(epoch, msg)
	}
}

// remoteClosed runs the disconnect cleanup path after a clean remote close.
func (c *Controller) remoteClosed(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.status != entities.SessionLive {
		// A local disconnect already ran; this is the pump observing its
		// own teardown.
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.logger.Info("Remote closed live session")
	c.Disconnect()
}

// handleServerMessage dispatches one inbound message, ignoring it when the
// session it belongs to is no longer current.
func (c *Controller) handleServerMessage(epoch uint64, msg *repositories.ServerMessage) {
	c.mu.Lock()
	if c.epoch != epoch || c.status != entities.SessionLive {
		c.mu.Unlock()
		return
	}
	sched := c.sched

	switch {
	case msg.Interrupted:
		// Barge-in: everything said so far was heard, so commit the
		// partial turn, then flush all scheduled audio.
		if entry, ok := c.agg.Commit(entities.TranscriptModel); ok {
			c.entries = append(c.entries, entry)
		}
		c.mu.Unlock()
		sched.Interrupt()

	case msg.Audio != "":
		c.mu.Unlock()
		data, err := audio.DecodeBase64(msg.Audio)
		if err != nil {
			metrics.AudioChunksDropped.Inc()
			c.logger.Warn("Dropping undecodable audio payload", zap.Error(err))
			return
		}
		if err := sched.Enqueue(data, OutputSampleRate); err != nil {
			metrics.AudioChunksDropped.Inc()
			return
		}
		metrics.AudioChunksScheduled.Inc()

	case msg.TranscriptDelta != "":
		c.mu.Unlock()
		c.agg.Append(msg.TranscriptDelta)

	case msg.TurnComplete:
		if entry, ok := c.agg.Commit(entities.TranscriptModel); ok {
			c.entries = append(c.entries, entry)
		}
		c.mu.Unlock()

	default:
		c.mu.Unlock()
	}
}

// isCurrent reports whether the given epoch is still the live session.
func (c *Controller) isCurrent(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch == epoch && c.status == entities.SessionLive
}

// systemContext derives the remote persona from the verdict under audit and
// the session mode.
func (c *Controller) systemContext() string {
	if c.cfg.Simplified {
		return fmt.Sprintf("You are a friendly, common-sense advisor. "+
			"The user is looking at a decision: %s. "+
			"Speak very simply, use common analogies, and always respond in the modality the user used.",
			c.cfg.SimpleHeadline)
	}
	return fmt.Sprintf("You are the live intelligence core of a strategic resolution engine. "+
		"The user is auditing a major decision: %s. "+
		"Be authoritative and highly logical, and help them identify black-swan risks "+
		"and logic vulnerabilities in real time.",
		c.cfg.Headline)
}

// artifactPrompt is the fixed analysis prompt sent with an artifact still.
func (c *Controller) artifactPrompt() string {
	if c.cfg.Simplified {
		return "I am showing you a document. What is in it and how does it change our simple plan?"
	}
	return "Perform deep-dive visual logical analysis on this artifact. " +
		"Does it invalidate our current risk assessments?"
}
