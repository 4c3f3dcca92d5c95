// Package tts synthesizes verdict readback audio through the Gemini speech
// models, streamed as raw PCM chunks.
package tts

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ritz-devbox/decisiv/domain/repositories"
)

const (
	defaultTTSModel  = "gemini-2.5-flash-preview-tts"
	defaultVoiceName = "Charon"
	defaultChunkSize = 4096 // Size of audio chunks to stream
)

// GeminiTTSConfig holds configuration for the GeminiTTS adapter.
// Required fields:
// - APIKey: Your Gemini API key
// Optional fields with defaults:
// - Model: The speech model to use (default: "gemini-2.5-flash-preview-tts")
// - VoiceName: The prebuilt voice when the caller does not pick one (default: "Charon")
// - ChunkSize: The size of audio chunks to stream (default: 4096)
type GeminiTTSConfig struct {
	APIKey    string
	Model     string
	VoiceName string
	ChunkSize int
}

// NewGeminiTTSConfigFromEnv builds the configuration from environment
// variables.
func NewGeminiTTSConfigFromEnv() GeminiTTSConfig {
	return GeminiTTSConfig{
		APIKey:    os.Getenv("GEMINI_API_KEY"),
		Model:     os.Getenv("GEMINI_TTS_MODEL"),
		VoiceName: os.Getenv("GEMINI_TTS_VOICE"),
	}
}

// ValidateGeminiTTSConfig validates the GeminiTTSConfig.
func ValidateGeminiTTSConfig(config GeminiTTSConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("gemini API key is required")
	}
	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	return nil
}

// GeminiTTS implements TextToSpeech using the Gemini speech models.
type GeminiTTS struct {
	client       *genai.Client
	model        string
	defaultVoice string
	chunkSize    int
	logger       *zap.Logger
}

var _ repositories.TextToSpeech = (*GeminiTTS)(nil)

// NewGeminiTTS creates a new Gemini TTS instance.
func NewGeminiTTS(ctx context.Context, config GeminiTTSConfig, logger *zap.Logger) (*GeminiTTS, error) {
	if err := ValidateGeminiTTSConfig(config); err != nil {
		return nil, err
	}

	model := config.Model
	if model == "" {
		model = defaultTTSModel
	}
	voice := config.VoiceName
	if voice == "" {
		voice = defaultVoiceName
	}
	chunkSize := config.ChunkSize
	if chunkSize == 0 {
		chunkSize = defaultChunkSize
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiTTS{
		client:       client,
		model:        model,
		defaultVoice: voice,
		chunkSize:    chunkSize,
		logger:       logger,
	}, nil
}

// ConvertTextToSpeech synthesizes text with the given prebuilt voice and
// streams the PCM audio over the returned channel. The channel is closed
// when synthesis is complete or the context is cancelled.
func (g *GeminiTTS) ConvertTextToSpeech(ctx context.Context, text, voiceName string) (<-chan []byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	if voiceName == "" {
		voiceName = g.defaultVoice
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voiceName},
			},
		},
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	started := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}

	audio := extractAudio(resp)
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech synthesis returned no audio")
	}

	g.logger.Info("Speech synthesized",
		zap.String("voice", voiceName),
		zap.Int("bytes", len(audio)),
		zap.Duration("elapsed", time.Since(started)))

	out := make(chan []byte)
	go func() {
		defer close(out)
		for offset := 0; offset < len(audio); offset += g.chunkSize {
			end := offset + g.chunkSize
			if end > len(audio) {
				end = len(audio)
			}
			select {
			case out <- audio[offset:end]:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// extractAudio concatenates the inline audio parts of the first candidate.
func extractAudio(resp *genai.GenerateContentResponse) []byte {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var audio []byte
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil {
			audio = append(audio, part.InlineData.Data...)
		}
	}
	return audio
}
