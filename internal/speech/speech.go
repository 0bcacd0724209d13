// Package speech transcribes voice messages into text for the intent
// pipeline. The production backend is Groq's OpenAI-compatible Whisper
// endpoint.
package speech

import "context"

// Transcriber converts an audio payload into text.
type Transcriber interface {
	// Transcribe returns the recognized text for the audio bytes.
	// filename hints the container format ("voice.ogg").
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}
