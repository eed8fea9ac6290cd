// Package vad classifies capture frames as speech or silence against an
// adaptively maintained noise floor. The classifier is deliberately simple —
// a loudness threshold with hysteresis — because it runs on every frame and
// feeds the segmentation state machine directly.
package vad

// Label is the classification of a single frame.
type Label int

const (
	// LabelSilence means the frame is confidently below the noise floor band.
	LabelSilence Label = iota

	// LabelAmbiguous means the frame falls between the silence and speech
	// thresholds. Ambiguous frames keep an open segment alive but never start
	// one.
	LabelAmbiguous

	// LabelSpeech means the frame is confidently above the noise floor band.
	LabelSpeech
)

// String returns the human-readable name of the label.
func (l Label) String() string {
	switch l {
	case LabelSilence:
		return "silence"
	case LabelAmbiguous:
		return "ambiguous"
	case LabelSpeech:
		return "speech"
	default:
		return "unknown"
	}
}

const (
	// DefaultMargin is the loudness margin above the noise floor at which a
	// frame counts as speech. Loudness values are normalised RMS in [0, 1].
	DefaultMargin = 0.015

	// silenceMarginFactor places the silence threshold inside the margin band
	// so that the decision has hysteresis: a frame must fall well below the
	// speech threshold before it counts as silence.
	silenceMarginFactor = 0.4

	// floorDecay and floorGain are the EWMA coefficients for the noise floor
	// update. Roughly a one second time constant at typical frame rates.
	floorDecay = 0.95
	floorGain  = 0.05

	// floorMin is the lower clamp for the noise floor so the thresholds never
	// collapse to zero on a digitally silent input.
	floorMin = 0.001

	// freezeMarginFactor: while a segment is open, frames louder than
	// floor + margin*freezeMarginFactor are excluded from the floor update so
	// sustained speech cannot drag the floor upward.
	freezeMarginFactor = 2
)

// Config holds the tuning knobs for a [Classifier].
type Config struct {
	// Margin is the speech margin above the noise floor. Default: [DefaultMargin].
	Margin float64

	// InitialFloor seeds the noise floor. Default: [floorMin].
	InitialFloor float64
}

// Classifier maintains the adaptive noise floor and labels frames. It is not
// safe for concurrent use; the engine calls it from a single goroutine.
type Classifier struct {
	margin float64
	floor  float64
}

// NewClassifier creates a [Classifier] with the supplied configuration.
// Zero-value config fields are replaced with defaults.
func NewClassifier(cfg Config) *Classifier {
	if cfg.Margin <= 0 {
		cfg.Margin = DefaultMargin
	}
	if cfg.InitialFloor <= 0 {
		cfg.InitialFloor = floorMin
	}
	return &Classifier{
		margin: cfg.Margin,
		floor:  cfg.InitialFloor,
	}
}

// Classify updates the noise floor with the frame's loudness and returns its
// label. level is normalised RMS in [0, 1]. recording tells the classifier
// whether a segment is currently open — during recording, confidently loud
// frames are excluded from the floor update.
func (c *Classifier) Classify(level float64, recording bool) Label {
	// Floor update runs every frame, before thresholding, except when a loud
	// frame arrives mid-recording.
	if !recording || level < c.floor+c.margin*freezeMarginFactor {
		c.floor = c.floor*floorDecay + level*floorGain
		if c.floor < floorMin {
			c.floor = floorMin
		}
	}

	speechThreshold := c.floor + c.margin
	silenceThreshold := c.floor + c.margin*silenceMarginFactor

	switch {
	case level > speechThreshold:
		return LabelSpeech
	case level < silenceThreshold:
		return LabelSilence
	default:
		return LabelAmbiguous
	}
}

// SetMargin updates the speech margin. Non-positive values are ignored.
// Callers must provide the same synchronisation as for [Classifier.Classify].
func (c *Classifier) SetMargin(m float64) {
	if m > 0 {
		c.margin = m
	}
}

// NoiseFloor returns the current noise floor estimate.
func (c *Classifier) NoiseFloor() float64 {
	return c.floor
}
