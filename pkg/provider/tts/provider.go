// Package tts defines the Synthesizer interface for Text-to-Speech backends.
//
// Siren synthesizes one translated utterance at a time, so the interface is a
// single batch call: text plus a language in, one audio clip out. The clip
// format depends on the backend — Sound of Text returns MP3, Coqui returns
// PCM — and is declared on the returned [Clip] so the gateway can transcode
// or pass it through.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Clip formats returned by a Synthesizer.
const (
	FormatMP3   = "mp3"
	FormatPCM16 = "pcm16"
)

// Clip is one synthesized utterance.
type Clip struct {
	// Data is the encoded audio.
	Data []byte

	// Format names the encoding of Data ("mp3", "pcm16").
	Format string

	// SampleRate and Channels describe Data when Format is "pcm16". Zero for
	// self-describing formats.
	SampleRate int
	Channels   int
}

// Request is one synthesis job.
type Request struct {
	// Text is the text to speak.
	Text string

	// Language is the language code of Text (e.g., "en", "ja"). Backends map
	// it to a concrete voice.
	Language string
}

// Synthesizer is the abstraction over any TTS backend.
type Synthesizer interface {
	// Synthesize returns spoken audio for the request.
	Synthesize(ctx context.Context, req Request) (Clip, error)
}
