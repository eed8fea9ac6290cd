package vad

import (
	"math"
	"testing"
)

func TestLabelString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label Label
		want  string
	}{
		{LabelSilence, "silence"},
		{LabelAmbiguous, "ambiguous"},
		{LabelSpeech, "speech"},
		{Label(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.label.String(); got != tt.want {
			t.Errorf("Label(%d).String() = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestClassifyBands(t *testing.T) {
	t.Parallel()

	c := NewClassifier(Config{})
	floor := c.NoiseFloor()

	tests := []struct {
		name  string
		level float64
		want  Label
	}{
		{"well above speech threshold", floor + DefaultMargin*3, LabelSpeech},
		{"just above speech threshold", floor + DefaultMargin*1.1, LabelSpeech},
		{"inside the ambiguous band", floor + DefaultMargin*0.7, LabelAmbiguous},
		{"below silence threshold", floor * 0.5, LabelSilence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Fresh classifier per case so the floor update of one case does
			// not shift the thresholds of the next.
			c := NewClassifier(Config{})
			if got := c.Classify(tt.level, false); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestFloorAdaptsToAmbientNoise(t *testing.T) {
	t.Parallel()

	c := NewClassifier(Config{})
	ambient := 0.05

	// Sustained ambient noise pulls the floor towards the ambient level.
	for i := 0; i < 200; i++ {
		c.Classify(ambient, false)
	}
	if diff := math.Abs(c.NoiseFloor() - ambient); diff > 0.001 {
		t.Errorf("floor = %v after sustained ambient %v, want convergence", c.NoiseFloor(), ambient)
	}

	// A level that was speech against the quiet floor is no longer speech
	// against the adapted floor.
	if got := c.Classify(ambient+DefaultMargin*0.5, false); got == LabelSpeech {
		t.Error("level within margin of adapted floor classified as speech")
	}
}

func TestFloorFrozenDuringLoudRecording(t *testing.T) {
	t.Parallel()

	c := NewClassifier(Config{})
	before := c.NoiseFloor()
	loud := before + DefaultMargin*5

	// Loud frames during a recording must not drag the floor upward.
	for i := 0; i < 100; i++ {
		if got := c.Classify(loud, true); got != LabelSpeech {
			t.Fatalf("loud frame classified as %v, want speech", got)
		}
	}
	if c.NoiseFloor() != before {
		t.Errorf("floor moved from %v to %v during loud recording", before, c.NoiseFloor())
	}

	// The same frames adapt the floor when no recording is active.
	for i := 0; i < 100; i++ {
		c.Classify(loud, false)
	}
	if c.NoiseFloor() == before {
		t.Error("floor did not adapt outside recording")
	}
}

func TestFloorUpdatesDuringQuietRecording(t *testing.T) {
	t.Parallel()

	c := NewClassifier(Config{})
	// Converge the floor upward first.
	for i := 0; i < 200; i++ {
		c.Classify(0.1, false)
	}
	high := c.NoiseFloor()

	// Quiet frames during recording still adapt the floor downward — they are
	// below the freeze band.
	for i := 0; i < 200; i++ {
		c.Classify(0.01, true)
	}
	if c.NoiseFloor() >= high {
		t.Errorf("floor = %v did not fall during quiet recording (was %v)", c.NoiseFloor(), high)
	}
}

func TestFloorClamp(t *testing.T) {
	t.Parallel()

	c := NewClassifier(Config{})
	for i := 0; i < 500; i++ {
		c.Classify(0, false)
	}
	if c.NoiseFloor() < floorMin {
		t.Errorf("floor = %v fell below clamp %v", c.NoiseFloor(), floorMin)
	}
}
