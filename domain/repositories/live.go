package repositories

import (
	"context"
	"errors"
)

var (
	// ErrChannelOpenFailed indicates the remote bidirectional channel could
	// not be established.
	ErrChannelOpenFailed = errors.New("reasoning channel open failed")
	// ErrChannelClosed indicates the remote closed the channel, cleanly or
	// not; Receive and Send return it once the stream is unusable.
	ErrChannelClosed = errors.New("reasoning channel closed")
)

// LiveConfig is the configuration payload a live stream is opened with.
type LiveConfig struct {
	Model string
	// SystemContext seeds the remote reasoning persona for the session.
	SystemContext string
	// TranscribeOutput requests transcription of the model's audio replies.
	TranscribeOutput bool
}

// ServerMessage is one demultiplexed message from the remote service.
// Zero or one payload field is set per message.
type ServerMessage struct {
	// Audio is a base64 PCM16 chunk at 24kHz mono.
	Audio string
	// TranscriptDelta is a partial transcription of the model's current turn.
	TranscriptDelta string
	// TurnComplete marks the model's current turn as finished.
	TurnComplete bool
	// Interrupted signals that playing output must stop immediately.
	Interrupted bool
}

// LiveChannel opens bidirectional streaming conversations with the remote
// reasoning service.
type LiveChannel interface {
	Connect(ctx context.Context, cfg LiveConfig) (LiveStream, error)
}

// LiveStream is one open bidirectional conversation. Send methods are safe
// for concurrent use; Receive must be called from a single goroutine.
type LiveStream interface {
	// SendAudio sends one captured chunk of base64 PCM16 @16kHz mono.
	SendAudio(data string) error
	// SendImage sends one base64-encoded still frame.
	SendImage(data, mimeType string) error
	// SendText sends a text interjection.
	SendText(text string) error
	// Receive blocks for the next server message. It returns io.EOF after a
	// clean remote close and a descriptive error otherwise.
	Receive() (*ServerMessage, error)
	// Close tears the stream down. Idempotent.
	Close() error
}
