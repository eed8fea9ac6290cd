// Package types defines the wire protocol between the Siren client and
// gateway. The client uploads completed utterance segments as binary WAV
// messages on the /translate websocket; the gateway replies with one
// [TranslationResult] JSON text message per accepted segment.
//
// Cross-cutting data structures live here to avoid circular imports between
// the gateway, relay, and provider packages.
package types

import "time"

// Audio formats carried in [TranslationResult.AudioFormat].
const (
	AudioFormatOpus = "opus"
	AudioFormatMP3  = "mp3"
	AudioFormatWAV  = "wav"
)

// Greeting is the first text message the gateway sends on a new /translate
// connection, before any segment is processed.
const Greeting = "connected"

// TranslationResult is the gateway's reply for one uploaded segment.
type TranslationResult struct {
	// Transcript is the recognized source-language text.
	Transcript string `json:"transcript"`

	// Language is the detected source language code (e.g., "en", "ja").
	Language string `json:"language"`

	// Translation is the target-language text.
	Translation string `json:"translation"`

	// Audio is the synthesized translation, base64-encoded by encoding/json.
	// Empty when synthesis failed or was disabled; the text fields are still
	// valid in that case.
	Audio []byte `json:"audio,omitempty"`

	// AudioFormat names the codec of Audio ("opus", "mp3", "wav").
	AudioFormat string `json:"audio_format,omitempty"`

	// SampleRate is the sample rate of the decoded Audio in Hz. Zero when
	// Audio is empty or the format is self-describing (mp3, wav).
	SampleRate int `json:"sample_rate,omitempty"`

	// Channels is the channel count of the decoded Audio. Zero when Audio is
	// empty or the format is self-describing.
	Channels int `json:"channels,omitempty"`

	// Timestamp is when the gateway finished processing the segment.
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptLine renders the result as a single display line in the form
//
//	2006/01/02 15:04:05 (lang)transcript(translation)
//
// used for session logs on both ends of the connection.
func (r TranslationResult) TranscriptLine() string {
	return r.Timestamp.Format("2006/01/02 15:04:05") +
		" (" + r.Language + ")" + r.Transcript + "(" + r.Translation + ")"
}
