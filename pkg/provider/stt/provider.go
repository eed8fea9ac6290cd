// Package stt defines the Transcriber interface for Speech-to-Text backends.
//
// Siren segments speech on the client before upload, so transcription is a
// batch operation: one complete utterance in, one transcript out. A
// Transcriber wraps either a whisper.cpp HTTP server or the in-process CGO
// bindings and exposes the same interface for both.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Result is the outcome of transcribing one utterance.
type Result struct {
	// Text is the transcribed speech. May be empty when the audio contained
	// no recognizable speech.
	Text string

	// Language is the language code the recognizer detected (e.g., "en",
	// "ja"). Empty when the backend does not report detection.
	Language string
}

// Transcriber is the abstraction over any batch STT backend.
type Transcriber interface {
	// Transcribe runs recognition on a complete WAV-encoded utterance and
	// returns the transcript. An empty Result with a nil error means the
	// audio was processed but contained no speech.
	Transcribe(ctx context.Context, wav []byte) (Result, error)
}
