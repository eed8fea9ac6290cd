package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	SilenceTimeChanged bool
	NewSilenceTimeMs   int

	SpeechMarginChanged bool
	NewSpeechMargin     float64

	GapChanged bool
	NewGapMs   int
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.SilenceTimeChanged || d.SpeechMarginChanged || d.GapChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Client.LogLevel != new.Client.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Client.LogLevel
	}
	if old.Segmenter.SilenceTimeMs != new.Segmenter.SilenceTimeMs {
		d.SilenceTimeChanged = true
		d.NewSilenceTimeMs = new.Segmenter.SilenceTimeMs
	}
	if old.Segmenter.SpeechMargin != new.Segmenter.SpeechMargin {
		d.SpeechMarginChanged = true
		d.NewSpeechMargin = new.Segmenter.SpeechMargin
	}
	if old.Playback.GapMs != new.Playback.GapMs {
		d.GapChanged = true
		d.NewGapMs = new.Playback.GapMs
	}

	return d
}
