package live

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ritz-devbox/decisiv/domain/entities"
	"github.com/ritz-devbox/decisiv/domain/repositories"
	"github.com/ritz-devbox/decisiv/internal/audio"
	"github.com/ritz-devbox/decisiv/internal/media"
)

type testSink struct {
	mu     sync.Mutex
	played [][]float32
	closed bool
}

func (s *testSink) Play(ctx context.Context, samples []float32, sampleRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = append(s.played, samples)
	return nil
}

func (s *testSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *testSink) playCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.played)
}

type testRig struct {
	controller *Controller
	channel    *MockChannel
	mic        *media.MockMicrophone
	camera     *media.MockFrameSource
	sink       *testSink
	clk        *clock.Mock
}

func newTestRig(t *testing.T, micFailure, cameraFailure error) *testRig {
	t.Helper()
	rig := &testRig{
		channel: NewMockChannel(nil),
		mic:     media.NewMockMicrophone(micFailure),
		camera:  media.NewMockFrameSource(image.NewRGBA(image.Rect(0, 0, 64, 48)), cameraFailure),
		sink:    &testSink{},
		clk:     clock.NewMock(),
	}
	capture := media.NewCapture(rig.mic, rig.camera, zap.NewNop())
	rig.controller = NewController(
		rig.channel,
		capture,
		func() (audio.Sink, error) { return rig.sink, nil },
		rig.clk,
		zap.NewNop(),
		Config{
			Model:          "test-model",
			Headline:       "Acquire the rival firm",
			SimpleHeadline: "Buy the other company",
		},
	)
	return rig
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestControllerConnectAndDisconnect(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	c := rig.controller

	if err := c.Connect(context.Background(), "Begin the audit"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := c.Status(); got != entities.SessionLive {
		t.Fatalf("status after connect = %s, want live", got)
	}
	if rig.channel.Connects() != 1 {
		t.Fatalf("connects = %d, want 1", rig.channel.Connects())
	}
	if !rig.mic.Opened() {
		t.Fatal("microphone not opened")
	}

	cfg := rig.channel.LastConfig()
	if cfg.Model != "test-model" {
		t.Errorf("model = %q", cfg.Model)
	}
	if !cfg.TranscribeOutput {
		t.Error("transcription not requested")
	}
	if !strings.Contains(cfg.SystemContext, "Acquire the rival firm") {
		t.Errorf("system context missing headline: %q", cfg.SystemContext)
	}

	texts := rig.channel.Stream(0).SentTexts()
	if len(texts) != 1 || texts[0] != "Begin the audit" {
		t.Fatalf("sent texts = %v", texts)
	}
	entries := c.Transcript()
	if len(entries) != 1 || entries[0].Role != entities.TranscriptUser || entries[0].Text != "Begin the audit" {
		t.Fatalf("transcript = %+v", entries)
	}

	c.Disconnect()
	if got := c.Status(); got != entities.SessionClosed {
		t.Fatalf("status after disconnect = %s, want closed", got)
	}
	if rig.mic.Opened() {
		t.Error("microphone still open after disconnect")
	}
	if !rig.channel.Stream(0).Closed() {
		t.Error("stream not closed")
	}
	if !func() bool { rig.sink.mu.Lock(); defer rig.sink.mu.Unlock(); return rig.sink.closed }() {
		t.Error("sink not closed")
	}
}

func TestControllerConnectRejectedWhileLive(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	c := rig.controller

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	if err := c.Connect(context.Background(), ""); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("second Connect = %v, want ErrInvalidStateTransition", err)
	}
	if rig.channel.Connects() != 1 {
		t.Fatalf("connects = %d, want 1", rig.channel.Connects())
	}
}

func TestControllerDeviceFailureOpensNoChannel(t *testing.T) {
	rig := newTestRig(t, repositories.ErrDeviceUnavailable, nil)
	c := rig.controller

	err := c.Connect(context.Background(), "")
	if !errors.Is(err, repositories.ErrDeviceUnavailable) {
		t.Fatalf("Connect = %v, want device unavailable", err)
	}
	if got := c.Status(); got != entities.SessionFailed {
		t.Fatalf("status = %s, want failed", got)
	}
	if rig.channel.Connects() != 0 {
		t.Fatalf("channel opened despite device denial")
	}

	// A failed session must accept a fresh connect attempt.
	if !c.Status().CanConnect() {
		t.Error("failed session should accept a fresh connect")
	}
}

func TestControllerChannelFailureReleasesDevices(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	rig.channel.failure = repositories.ErrChannelOpenFailed
	c := rig.controller

	err := c.Connect(context.Background(), "")
	if !errors.Is(err, repositories.ErrChannelOpenFailed) {
		t.Fatalf("Connect = %v, want channel open failure", err)
	}
	if got := c.Status(); got != entities.SessionFailed {
		t.Fatalf("status = %s, want failed", got)
	}
	if rig.mic.Opened() {
		t.Error("microphone left acquired after channel failure")
	}
}

func TestControllerOutboundAudioEncoded(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	c := rig.controller

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	rig.mic.Feed([]float32{0.5, -0.5, 0.25, 0})

	waitFor(t, func() bool {
		return len(rig.channel.Stream(0).SentAudio()) > 0
	}, "outbound audio chunk")

	payload := rig.channel.Stream(0).SentAudio()[0]
	raw, err := audio.DecodeBase64(payload)
	if err != nil {
		t.Fatalf("outbound payload not base64: %v", err)
	}
	if len(raw) != 8 {
		t.Fatalf("pcm bytes = %d, want 8 (4 samples of int16)", len(raw))
	}
}

func TestControllerInboundAudioScheduled(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	c := rig.controller

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	chunk := audio.EncodeBase64(audio.FloatToPCM16([]float32{0.1, 0.2, 0.3}))
	rig.channel.Stream(0).Deliver(&repositories.ServerMessage{Audio: chunk})

	waitFor(t, func() bool { return rig.sink.playCount() > 0 }, "scheduled playback")

	rig.sink.mu.Lock()
	got := len(rig.sink.played[0])
	rig.sink.mu.Unlock()
	if got != 3 {
		t.Fatalf("played %d samples, want 3", got)
	}
}

func TestControllerTranscriptFlow(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	c := rig.controller

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	stream := rig.channel.Stream(0)
	stream.Deliver(&repositories.ServerMessage{TranscriptDelta: "Hel"})
	stream.Deliver(&repositories.ServerMessage{TranscriptDelta: "lo"})

	waitFor(t, func() bool { return c.PendingTranscript() == "Hello" }, "pending delta text")

	stream.Deliver(&repositories.ServerMessage{TurnComplete: true})

	waitFor(t, func() bool { return len(c.Transcript()) == 1 }, "committed model turn")
	entry := c.Transcript()[0]
	if entry.Role != entities.TranscriptModel || entry.Text != "Hello" {
		t.Fatalf("entry = %+v", entry)
	}
	if c.PendingTranscript() != "" {
		t.Errorf("pending not cleared: %q", c.PendingTranscript())
	}
}

func TestControllerInterruptedCommitsPartialTurn(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	c := rig.controller

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	stream := rig.channel.Stream(0)
	stream.Deliver(&repositories.ServerMessage{TranscriptDelta: "Partial point"})
	waitFor(t, func() bool { return c.PendingTranscript() != "" }, "pending text")

	stream.Deliver(&repositories.ServerMessage{Interrupted: true})

	waitFor(t, func() bool { return len(c.Transcript()) == 1 }, "partial turn commit")
	entry := c.Transcript()[0]
	if entry.Role != entities.TranscriptModel || entry.Text != "Partial point" {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestControllerStaleEpochMessagesIgnored(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	c := rig.controller

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c.Disconnect()

	// A handler from the superseded session must be silently dropped.
	c.handleServerMessage(1, &repositories.ServerMessage{TranscriptDelta: "ghost"})
	if c.PendingTranscript() != "" {
		t.Errorf("stale delta accepted: %q", c.PendingTranscript())
	}
	if len(c.Transcript()) != 0 {
		t.Errorf("stale transcript entry committed: %+v", c.Transcript())
	}
}

func TestControllerDisconnectIdempotent(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	c := rig.controller

	c.Disconnect() // idle: no-op
	if got := c.Status(); got != entities.SessionIdle {
		t.Fatalf("status = %s, want idle", got)
	}

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c.Disconnect()
	c.Disconnect()
	if got := c.Status(); got != entities.SessionClosed {
		t.Fatalf("status = %s, want closed", got)
	}
}

func TestControllerToggleVideoRestartsSession(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	c := rig.controller

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.ToggleVideo(context.Background()); err != nil {
		t.Fatalf("ToggleVideo: %v", err)
	}
	defer c.Disconnect()

	if !c.VideoEnabled() {
		t.Fatal("video not enabled after toggle")
	}
	if got := c.Status(); got != entities.SessionLive {
		t.Fatalf("status = %s, want live after restart", got)
	}
	if rig.channel.Connects() != 2 {
		t.Fatalf("connects = %d, want 2 (restart)", rig.channel.Connects())
	}
	if !rig.camera.Opened() {
		t.Fatal("camera not opened on restarted session")
	}
	if !rig.channel.Stream(0).Closed() {
		t.Error("first stream left open across restart")
	}
}

func TestControllerToggleVideoWhileIdle(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	c := rig.controller

	if err := c.ToggleVideo(context.Background()); err != nil {
		t.Fatalf("ToggleVideo: %v", err)
	}
	if !c.VideoEnabled() {
		t.Fatal("video not enabled")
	}
	if rig.channel.Connects() != 0 {
		t.Fatal("idle toggle must not open a channel")
	}
	if got := c.Status(); got != entities.SessionIdle {
		t.Fatalf("status = %s, want idle", got)
	}
}

func TestControllerToggleVideoRejectedWhileConnecting(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	c := rig.controller

	c.mu.Lock()
	c.status = entities.SessionConnecting
	c.mu.Unlock()

	if err := c.ToggleVideo(context.Background()); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("Expected ErrInvalidStateTransition, got %v", err)
	}
	if c.VideoEnabled() {
		t.Error("video flag flipped during an in-flight connect")
	}
}

func TestControllerAnalyzeArtifact(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	c := rig.controller

	if err := c.ToggleVideo(context.Background()); err != nil {
		t.Fatalf("ToggleVideo: %v", err)
	}
	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	if err := c.AnalyzeArtifact(); err != nil {
		t.Fatalf("AnalyzeArtifact: %v", err)
	}

	images := rig.channel.Stream(0).SentImages()
	if len(images) != 1 {
		t.Fatalf("images sent = %d, want 1", len(images))
	}
	if images[0].mimeType != "image/jpeg" {
		t.Errorf("mime = %q", images[0].mimeType)
	}
	if _, err := audio.DecodeBase64(images[0].data); err != nil {
		t.Errorf("image payload not base64: %v", err)
	}

	texts := rig.channel.Stream(0).SentTexts()
	if len(texts) != 1 || !strings.Contains(texts[0], "artifact") {
		t.Fatalf("analysis prompt not sent: %v", texts)
	}

	entries := c.Transcript()
	if len(entries) != 1 || entries[0].Text != "[Visual evidence transmitted]" {
		t.Fatalf("transcript = %+v", entries)
	}
}

func TestControllerAnalyzeArtifactGuards(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	c := rig.controller

	if err := c.AnalyzeArtifact(); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("idle analyze = %v, want ErrInvalidStateTransition", err)
	}

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	// Live but audio-only: no frame to capture.
	if err := c.AnalyzeArtifact(); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("audio-only analyze = %v, want ErrInvalidStateTransition", err)
	}
}

func TestControllerPeriodicFrameStreaming(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	c := rig.controller

	if err := c.ToggleVideo(context.Background()); err != nil {
		t.Fatalf("ToggleVideo: %v", err)
	}
	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	// Let the frame pump register its ticker before advancing the clock.
	time.Sleep(20 * time.Millisecond)
	rig.clk.Add(time.Second)

	waitFor(t, func() bool {
		return len(rig.channel.Stream(0).SentImages()) >= 1
	}, "periodic frame")
}

func TestControllerRemoteCloseEndsSession(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	c := rig.controller

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	rig.channel.Stream(0).Close()

	waitFor(t, func() bool { return c.Status() == entities.SessionClosed }, "remote close teardown")
	if rig.mic.Opened() {
		t.Error("microphone left open after remote close")
	}
}
