// Package live is the websocket adapter for the Gemini bidirectional
// generate-content protocol. It dials the streaming endpoint, performs the
// setup handshake, fans captured media in and demultiplexes server frames
// into single-payload messages for the session controller.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ritz-devbox/decisiv/domain/repositories"
)

const (
	defaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Time allowed for the setup acknowledgement after dialing.
	setupWait = 15 * time.Second

	inputAudioMIMEType = "audio/pcm;rate=16000"
)

// ChannelConfig configures the Gemini live channel.
type ChannelConfig struct {
	// APIKey authenticates against the generative language API. Required.
	APIKey string
	// Endpoint overrides the production websocket endpoint, for tests.
	Endpoint string
}

// Validate checks required fields and applies defaults.
func (c *ChannelConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("APIKey is required")
	}
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	return nil
}

// Channel dials live bidirectional sessions against the Gemini streaming
// endpoint.
type Channel struct {
	config ChannelConfig
	dialer *websocket.Dialer
	logger *zap.Logger
}

var _ repositories.LiveChannel = (*Channel)(nil)

// NewChannel creates a live channel factory from the given configuration.
func NewChannel(config ChannelConfig, logger *zap.Logger) (*Channel, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid channel config: %w", err)
	}
	return &Channel{
		config: config,
		dialer: &websocket.Dialer{HandshakeTimeout: 45 * time.Second},
		logger: logger,
	}, nil
}

// Connect dials the endpoint, sends the session setup and waits for the
// acknowledgement before handing the stream out.
func (c *Channel) Connect(ctx context.Context, cfg repositories.LiveConfig) (repositories.LiveStream, error) {
	url := fmt.Sprintf("%s?key=%s", c.config.Endpoint, c.config.APIKey)
	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing: %v", repositories.ErrChannelOpenFailed, err)
	}

	setup := setupEnvelope{Setup: setupPayload{
		Model: qualifyModel(cfg.Model),
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
	}}
	if cfg.SystemContext != "" {
		setup.Setup.SystemInstruction = &content{
			Parts: []part{{Text: cfg.SystemContext}},
		}
	}
	if cfg.TranscribeOutput {
		setup.Setup.OutputAudioTranscription = &struct{}{}
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(setup); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: sending setup: %v", repositories.ErrChannelOpenFailed, err)
	}

	// The first server frame must acknowledge the setup.
	conn.SetReadDeadline(time.Now().Add(setupWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: awaiting setup ack: %v", repositories.ErrChannelOpenFailed, err)
	}
	var ack serverEnvelope
	if err := json.Unmarshal(raw, &ack); err != nil || ack.SetupComplete == nil {
		conn.Close()
		return nil, fmt.Errorf("%w: unexpected setup response", repositories.ErrChannelOpenFailed)
	}

	c.logger.Info("Live channel established", zap.String("model", cfg.Model))

	s := &stream{
		conn:   conn,
		logger: c.logger,
		done:   make(chan struct{}),
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go s.pingLoop()
	return s, nil
}

// qualifyModel prefixes the resource collection when callers pass a bare
// model name.
func qualifyModel(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

type stream struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	// queued holds demultiplexed messages from a server frame that carried
	// more than one payload. Consumed by Receive only.
	queued []*repositories.ServerMessage

	closeOnce sync.Once
	done      chan struct{}
}

var _ repositories.LiveStream = (*stream)(nil)

func (s *stream) SendAudio(data string) error {
	return s.writeJSON(realtimeInputEnvelope{RealtimeInput: realtimeInput{
		MediaChunks: []inlineData{{MIMEType: inputAudioMIMEType, Data: data}},
	}})
}

func (s *stream) SendImage(data, mimeType string) error {
	return s.writeJSON(realtimeInputEnvelope{RealtimeInput: realtimeInput{
		MediaChunks: []inlineData{{MIMEType: mimeType, Data: data}},
	}})
}

func (s *stream) SendText(text string) error {
	return s.writeJSON(clientContentEnvelope{ClientContent: clientContent{
		Turns:        []content{{Role: "user", Parts: []part{{Text: text}}}},
		TurnComplete: true,
	}})
}

func (s *stream) writeJSON(v interface{}) error {
	select {
	case <-s.done:
		return repositories.ErrChannelClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("%w: %v", repositories.ErrChannelClosed, err)
	}
	return nil
}

// Receive reads server frames until one produces at least one payload, then
// returns payloads one at a time.
func (s *stream) Receive() (*repositories.ServerMessage, error) {
	for {
		if len(s.queued) > 0 {
			msg := s.queued[0]
			s.queued = s.queued[1:]
			return msg, nil
		}

		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return nil, io.EOF
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: %v", repositories.ErrChannelClosed, err)
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var env serverEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.logger.Warn("Discarding unparseable server frame",
				zap.Int("bytes", len(raw)),
				zap.Error(err))
			continue
		}
		s.queued = demux(&env)
	}
}

// demux splits one server frame into single-payload messages, preserving
// arrival order: an interruption always precedes any payload that follows
// it in the frame, and the turn-complete flag comes last.
func demux(env *serverEnvelope) []*repositories.ServerMessage {
	sc := env.ServerContent
	if sc == nil {
		return nil
	}

	var out []*repositories.ServerMessage
	if sc.Interrupted {
		out = append(out, &repositories.ServerMessage{Interrupted: true})
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		out = append(out, &repositories.ServerMessage{TranscriptDelta: sc.OutputTranscription.Text})
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData != nil && strings.HasPrefix(p.InlineData.MIMEType, "audio/pcm") {
				out = append(out, &repositories.ServerMessage{Audio: p.InlineData.Data})
			}
		}
	}
	if sc.TurnComplete {
		out = append(out, &repositories.ServerMessage{TurnComplete: true})
	}
	return out
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
			s.logger.Debug("Failed to send close frame", zap.Error(err))
		}
		s.writeMu.Unlock()
		s.conn.Close()
	})
	return nil
}

// pingLoop keeps the connection alive while the stream is open.
func (s *stream) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
