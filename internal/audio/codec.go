// Package audio implements the PCM codec and the output scheduler for live
// interrogation sessions. The codec converts between float samples, 16-bit
// signed PCM and the base64 transport encoding; the scheduler plays inbound
// chunks gaplessly and handles barge-in.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrMalformedAudioPayload indicates a PCM16 payload whose length is not
	// an exact multiple of 2 bytes per channel.
	ErrMalformedAudioPayload = errors.New("malformed audio payload")
	// ErrInvalidEncoding indicates a transport payload that is not valid
	// base64.
	ErrInvalidEncoding = errors.New("invalid base64 encoding")
)

// FloatToPCM16 converts float samples to 16-bit signed little-endian PCM by
// linear scaling with 32768 and truncation. Samples at or beyond the [-1,1]
// boundary saturate at the int16 limits instead of wrapping.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// PCM16ToFloat converts 16-bit signed little-endian PCM to per-channel float
// buffers by inverse scaling with 1/32768. The payload length must be an
// exact multiple of 2 bytes times the channel count.
func PCM16ToFloat(data []byte, channels int) ([][]float32, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channel count %d", ErrMalformedAudioPayload, channels)
	}
	if len(data)%(2*channels) != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrMalformedAudioPayload, len(data), 2*channels)
	}

	frames := len(data) / 2 / channels
	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			v := int16(binary.LittleEndian.Uint16(data[(i*channels+ch)*2:]))
			out[ch][i] = float32(v) / 32768.0
		}
	}
	return out, nil
}

// EncodeBase64 encodes bytes for text transport.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes a text transport payload.
func DecodeBase64(data string) ([]byte, error) {
	out, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return out, nil
}
