// Package config provides the configuration schema, loader, file watcher, and
// provider registry for the Siren speech translation system. One schema serves
// both binaries: the gateway reads Server and Providers, the client reads
// Client, Capture, Segmenter, and Playback.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Siren.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Client    ClientConfig    `yaml:"client"`
	Capture   CaptureConfig   `yaml:"capture"`
	Segmenter SegmenterConfig `yaml:"segmenter"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Providers ProvidersConfig `yaml:"providers"`
	Languages LanguagesConfig `yaml:"languages"`
}

// ServerConfig holds network and logging settings for the Siren gateway.
type ServerConfig struct {
	// ListenAddr is the TCP address the gateway listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the gateway. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ClientConfig holds settings for the Siren client.
type ClientConfig struct {
	// GatewayURL is the websocket endpoint of the gateway
	// (e.g., "ws://localhost:8080/translate").
	GatewayURL string `yaml:"gateway_url"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// Device selects the capture device by platform ID. Empty uses the
	// system default microphone.
	Device string `yaml:"device"`
}

// CaptureConfig describes the microphone capture format.
type CaptureConfig struct {
	// SampleRate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// Channels: 1 for mono. Default: 1.
	Channels int `yaml:"channels"`
}

// SegmenterConfig holds the utterance segmentation timing knobs.
type SegmenterConfig struct {
	// MaxRecordingMs caps segment length before the forced-stop mode kicks
	// in. Default: 7000.
	MaxRecordingMs int `yaml:"max_recording_ms"`

	// MinRecordingMs is the shortest segment the normal stop path closes.
	// Default: 3000.
	MinRecordingMs int `yaml:"min_recording_ms"`

	// SilenceTimeMs is the continuous-silence window that closes a segment.
	// User-adjustable at runtime. Default: 200.
	SilenceTimeMs int `yaml:"silence_time_ms"`

	// SilenceHoldMs is the post-maximum silence hold. Default: 150.
	SilenceHoldMs int `yaml:"silence_hold_ms"`

	// SpeechMargin is the loudness margin above the adaptive noise floor at
	// which a frame counts as speech (normalised RMS). Default: 0.015.
	SpeechMargin float64 `yaml:"speech_margin"`
}

// PlaybackConfig holds translation playback settings.
type PlaybackConfig struct {
	// GapMs is the pause between consecutive clips. Default: 100.
	GapMs int `yaml:"gap_ms"`
}

// ProvidersConfig declares which backend to use for each pipeline stage.
// Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	STT       ProviderEntry `yaml:"stt"`
	Translate ProviderEntry `yaml:"translate"`
	TTS       ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered implementation (e.g., "whisper", "gemini",
	// "soundoftext").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint. For whisper and
	// coqui this is the local server URL; for whisper-native it is the model
	// file path.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g.,
	// "gemini-2.0-flash").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the standard
	// fields above.
	Options map[string]any `yaml:"options"`
}

// LanguagesConfig is the translation language pair.
type LanguagesConfig struct {
	// Source is the language the user speaks (e.g., "en").
	Source string `yaml:"source"`

	// Target is the language translations are rendered in (e.g., "ja").
	Target string `yaml:"target"`
}
