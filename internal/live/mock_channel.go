package live

import (
	"context"
	"io"
	"sync"

	"github.com/ritz-devbox/decisiv/domain/repositories"
)

type sentImage struct {
	data     string
	mimeType string
}

// MockStream is an in-memory LiveStream recording everything sent and
// serving test-scripted inbound messages.
type MockStream struct {
	mu     sync.Mutex
	audio  []string
	images []sentImage
	texts  []string
	closed bool

	inbound chan *repositories.ServerMessage
	done    chan struct{}
}

var _ repositories.LiveStream = (*MockStream)(nil)

func newMockStream() *MockStream {
	return &MockStream{
		inbound: make(chan *repositories.ServerMessage, 16),
		done:    make(chan struct{}),
	}
}

func (s *MockStream) SendAudio(data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return repositories.ErrChannelClosed
	}
	s.audio = append(s.audio, data)
	return nil
}

func (s *MockStream) SendImage(data, mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return repositories.ErrChannelClosed
	}
	s.images = append(s.images, sentImage{data: data, mimeType: mimeType})
	return nil
}

func (s *MockStream) SendText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return repositories.ErrChannelClosed
	}
	s.texts = append(s.texts, text)
	return nil
}

func (s *MockStream) Receive() (*repositories.ServerMessage, error) {
	select {
	case msg := <-s.inbound:
		return msg, nil
	case <-s.done:
		return nil, io.EOF
	}
}

func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

// Deliver queues one inbound server message for Receive.
func (s *MockStream) Deliver(msg *repositories.ServerMessage) {
	s.inbound <- msg
}

// Closed reports whether the stream has been torn down.
func (s *MockStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SentAudio returns the base64 audio payloads sent so far.
func (s *MockStream) SentAudio() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.audio))
	copy(out, s.audio)
	return out
}

// SentImages returns the still frames sent so far.
func (s *MockStream) SentImages() []sentImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentImage, len(s.images))
	copy(out, s.images)
	return out
}

// SentTexts returns the text interjections sent so far.
func (s *MockStream) SentTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.texts))
	copy(out, s.texts)
	return out
}

// MockChannel is an in-memory LiveChannel handing out MockStreams. When
// failure is non-nil, Connect fails with it.
type MockChannel struct {
	mu      sync.Mutex
	failure error
	streams []*MockStream
	lastCfg repositories.LiveConfig
}

var _ repositories.LiveChannel = (*MockChannel)(nil)

// NewMockChannel creates a mock channel, failing every connect with
// failure when it is non-nil.
func NewMockChannel(failure error) *MockChannel {
	return &MockChannel{failure: failure}
}

func (c *MockChannel) Connect(ctx context.Context, cfg repositories.LiveConfig) (repositories.LiveStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failure != nil {
		return nil, c.failure
	}
	c.lastCfg = cfg
	s := newMockStream()
	c.streams = append(c.streams, s)
	return s, nil
}

// Connects returns how many streams have been opened.
func (c *MockChannel) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}

// Stream returns the i-th opened stream.
func (c *MockChannel) Stream(i int) *MockStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams[i]
}

// LastConfig returns the configuration of the most recent connect.
func (c *MockChannel) LastConfig() repositories.LiveConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCfg
}
