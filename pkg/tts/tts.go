// Package tts synthesizes speech on the server so the glasses can play it
// back as an audio clip instead of using their on-device voice.
//
//	provider, _ := tts.NewOpenAI(
//	    tts.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    tts.WithVoice(tts.VoiceShimmer),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Hello world")
//	id := clips.Put(result)
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult is a complete synthesized clip.
type AudioResult struct {
	// Audio contains the encoded audio bytes.
	Audio []byte

	// ContentType is the MIME type of Audio (e.g. audio/mpeg).
	ContentType string

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the request time in milliseconds.
	LatencyMs int64
}

// Content types for synthesized audio.
const (
	ContentTypeMP3 = "audio/mpeg"
	ContentTypeWAV = "audio/wav"
)

// Response formats accepted by the OpenAI speech endpoint.
const (
	FormatMP3 = "mp3"
	FormatWAV = "wav"
)

func contentTypeFor(format string) string {
	if format == FormatWAV {
		return ContentTypeWAV
	}
	return ContentTypeMP3
}

// Clip is a cached audio clip.
type Clip struct {
	ID          string
	Audio       []byte
	ContentType string
	Created     time.Time
}
