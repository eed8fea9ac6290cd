package segment

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dragoon4890/siren/internal/vad"
)

// eventLog is a test Listener recording lifecycle callbacks.
type eventLog struct {
	mu      sync.Mutex
	starts  []time.Time
	stops   []time.Time
	reasons []StopReason
}

func (l *eventLog) SegmentStarted(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts = append(l.starts, now)
}

func (l *eventLog) SegmentStopped(now time.Time, reason StopReason) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stops = append(l.stops, now)
	l.reasons = append(l.reasons, reason)
}

func (l *eventLog) stopCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.stops)
}

// tickUntil feeds label ticks at the given interval from start (exclusive) to
// end (inclusive) and returns the first tick at which the machine left the
// fromState, or the zero time if it never did.
func tickUntil(t *testing.T, m *Machine, label vad.Label, start, end time.Time, step time.Duration, fromState State) time.Time {
	t.Helper()
	for now := start.Add(step); !now.After(end); now = now.Add(step) {
		if err := m.Tick(label, now); err != nil {
			t.Fatalf("Tick(%v, %v): %v", label, now, err)
		}
		if m.State() != fromState {
			return now
		}
	}
	return time.Time{}
}

func TestIdleIgnoresSilenceAndAmbiguous(t *testing.T) {
	t.Parallel()

	log := &eventLog{}
	m := New(Config{}, log)
	base := time.Unix(0, 0)

	for i, label := range []vad.Label{vad.LabelSilence, vad.LabelAmbiguous, vad.LabelSilence} {
		if err := m.Tick(label, base.Add(time.Duration(i)*10*time.Millisecond)); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		if m.State() != StateIdle {
			t.Fatalf("state = %v after %v in idle, want idle", m.State(), label)
		}
	}
	if len(log.starts) != 0 {
		t.Errorf("segments started = %d, want 0", len(log.starts))
	}
}

func TestSpeechOpensSegment(t *testing.T) {
	t.Parallel()

	log := &eventLog{}
	m := New(Config{}, log)
	base := time.Unix(0, 0)

	if err := m.Tick(vad.LabelSpeech, base); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if m.State() != StateRecording {
		t.Fatalf("state = %v, want recording", m.State())
	}
	if len(log.starts) != 1 || !log.starts[0].Equal(base) {
		t.Errorf("starts = %v, want [%v]", log.starts, base)
	}
}

// Spec scenario: constant speech for 4000 ms, then silence; with a 200 ms
// silence window the segment stops shortly after the silence mark, total
// segment roughly 4200 ms.
func TestNormalStopAfterSilenceWindow(t *testing.T) {
	t.Parallel()

	log := &eventLog{}
	m := New(Config{}, log)
	base := time.Unix(0, 0)
	step := 10 * time.Millisecond

	if err := m.Tick(vad.LabelSpeech, base); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	tickUntil(t, m, vad.LabelSpeech, base, base.Add(4000*time.Millisecond), step, StateRecording)

	stopAt := tickUntil(t, m, vad.LabelSilence, base.Add(4000*time.Millisecond), base.Add(5000*time.Millisecond), step, StateRecording)
	if stopAt.IsZero() {
		t.Fatal("segment never stopped")
	}

	segLen := stopAt.Sub(base)
	if segLen < 4200*time.Millisecond || segLen > 4300*time.Millisecond {
		t.Errorf("segment length = %v, want ≈4200ms", segLen)
	}
	if log.reasons[0] != StopSilence {
		t.Errorf("stop reason = %v, want silence", log.reasons[0])
	}
}

func TestMinimumDurationGuard(t *testing.T) {
	t.Parallel()

	log := &eventLog{}
	m := New(Config{}, log)
	base := time.Unix(0, 0)
	step := 10 * time.Millisecond

	// 1 s of speech then sustained silence: the normal stop path must hold
	// the segment open until the 3 s minimum.
	if err := m.Tick(vad.LabelSpeech, base); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	tickUntil(t, m, vad.LabelSpeech, base, base.Add(1000*time.Millisecond), step, StateRecording)

	stopAt := tickUntil(t, m, vad.LabelSilence, base.Add(1000*time.Millisecond), base.Add(5000*time.Millisecond), step, StateRecording)
	if stopAt.IsZero() {
		t.Fatal("segment never stopped")
	}
	if segLen := stopAt.Sub(base); segLen < 3000*time.Millisecond {
		t.Errorf("segment length = %v, violates 3s minimum", segLen)
	}
}

func TestAmbiguousCancelsPendingSilence(t *testing.T) {
	t.Parallel()

	log := &eventLog{}
	m := New(Config{}, log)
	base := time.Unix(0, 0)
	step := 10 * time.Millisecond

	if err := m.Tick(vad.LabelSpeech, base); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	tickUntil(t, m, vad.LabelSpeech, base, base.Add(3500*time.Millisecond), step, StateRecording)

	// Alternate silence (150 ms, below the 200 ms window) and a single
	// ambiguous frame; the window must restart each time, so the segment
	// stays open.
	now := base.Add(3500 * time.Millisecond)
	for cycle := 0; cycle < 5; cycle++ {
		for i := 0; i < 15; i++ {
			now = now.Add(step)
			if err := m.Tick(vad.LabelSilence, now); err != nil {
				t.Fatalf("Tick: %v", err)
			}
		}
		now = now.Add(step)
		if err := m.Tick(vad.LabelAmbiguous, now); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		if m.State() != StateRecording {
			t.Fatalf("state = %v during ambiguous-interrupted silence, want recording", m.State())
		}
	}
}

// Spec scenario: continuous speech past the 7 s maximum switches the machine
// to awaiting-max-silence, and the post-max stop uses the 150 ms hold with no
// minimum-duration check.
func TestMaxRecordingPath(t *testing.T) {
	t.Parallel()

	log := &eventLog{}
	m := New(Config{}, log)
	base := time.Unix(0, 0)
	step := 10 * time.Millisecond

	if err := m.Tick(vad.LabelSpeech, base); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	switchAt := tickUntil(t, m, vad.LabelSpeech, base, base.Add(8000*time.Millisecond), step, StateRecording)
	if switchAt.IsZero() {
		t.Fatal("never entered awaiting-max-silence")
	}
	if m.State() != StateAwaitingMaxSilence {
		t.Fatalf("state = %v, want awaiting-max-silence", m.State())
	}
	if elapsed := switchAt.Sub(base); elapsed < 7000*time.Millisecond || elapsed > 7100*time.Millisecond {
		t.Errorf("switched at %v, want ≈7000ms", elapsed)
	}

	// Silence from 8000 ms: stop after the 150 ms hold, well before the
	// 200 ms normal window would fire.
	silenceFrom := base.Add(8000 * time.Millisecond)
	tickUntil(t, m, vad.LabelSpeech, switchAt, silenceFrom, step, StateAwaitingMaxSilence)
	stopAt := tickUntil(t, m, vad.LabelSilence, silenceFrom, silenceFrom.Add(1000*time.Millisecond), step, StateAwaitingMaxSilence)
	if stopAt.IsZero() {
		t.Fatal("segment never stopped after max")
	}
	hold := stopAt.Sub(silenceFrom)
	if hold < 150*time.Millisecond || hold >= 200*time.Millisecond {
		t.Errorf("post-max hold = %v, want in [150ms, 200ms)", hold)
	}
	if log.reasons[0] != StopMaxHold {
		t.Errorf("stop reason = %v, want max-hold", log.reasons[0])
	}
}

func TestNoDirectIdleToAwaitingMax(t *testing.T) {
	t.Parallel()

	log := &eventLog{}
	m := New(Config{}, log)
	base := time.Unix(0, 0)

	// Even a tick far in the future cannot leave idle without speech, and a
	// single speech tick lands in recording, never straight in awaiting-max.
	if err := m.Tick(vad.LabelSilence, base.Add(time.Hour)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if m.State() != StateIdle {
		t.Fatalf("state = %v, want idle", m.State())
	}
	if err := m.Tick(vad.LabelSpeech, base.Add(2*time.Hour)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if m.State() != StateRecording {
		t.Fatalf("state = %v immediately after speech, want recording", m.State())
	}
}

func TestManualStop(t *testing.T) {
	t.Parallel()

	log := &eventLog{}
	m := New(Config{}, log)
	base := time.Unix(0, 0)

	// Manual stop with nothing open is a no-op.
	m.Stop(base)
	if log.stopCount() != 0 {
		t.Fatal("manual stop in idle produced a segment")
	}

	// Manual stop flushes even a segment shorter than the minimum.
	if err := m.Tick(vad.LabelSpeech, base); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	m.Stop(base.Add(500 * time.Millisecond))

	if m.State() != StateIdle {
		t.Errorf("state = %v after manual stop, want idle", m.State())
	}
	if log.stopCount() != 1 || log.reasons[0] != StopManual {
		t.Errorf("stops = %d reasons = %v, want one manual stop", log.stopCount(), log.reasons)
	}

	// The next segment starts from a clean slate.
	if err := m.Tick(vad.LabelSpeech, base.Add(time.Second)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if m.State() != StateRecording {
		t.Errorf("state = %v, want recording", m.State())
	}
}

func TestNonMonotonicTickRejected(t *testing.T) {
	t.Parallel()

	log := &eventLog{}
	m := New(Config{}, log)
	base := time.Unix(1000, 0)

	if err := m.Tick(vad.LabelSpeech, base); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	err := m.Tick(vad.LabelSilence, base.Add(-time.Second))
	if !errors.Is(err, ErrNonMonotonicTick) {
		t.Fatalf("Tick with earlier timestamp: err = %v, want ErrNonMonotonicTick", err)
	}
	if m.State() != StateRecording {
		t.Errorf("state changed on rejected tick: %v", m.State())
	}

	// An equal timestamp is allowed (non-decreasing, not strictly increasing).
	if err := m.Tick(vad.LabelSilence, base); err != nil {
		t.Errorf("Tick with equal timestamp: %v", err)
	}
}

func TestSetSilenceWindow(t *testing.T) {
	t.Parallel()

	log := &eventLog{}
	m := New(Config{}, log)
	m.SetSilenceWindow(500 * time.Millisecond)

	base := time.Unix(0, 0)
	step := 10 * time.Millisecond

	if err := m.Tick(vad.LabelSpeech, base); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	tickUntil(t, m, vad.LabelSpeech, base, base.Add(3500*time.Millisecond), step, StateRecording)

	// 300 ms of silence is beyond the default 200 ms window but below the
	// configured 500 ms one.
	silenceFrom := base.Add(3500 * time.Millisecond)
	got := tickUntil(t, m, vad.LabelSilence, silenceFrom, silenceFrom.Add(300*time.Millisecond), step, StateRecording)
	if !got.IsZero() {
		t.Fatalf("segment stopped at %v despite widened silence window", got.Sub(base))
	}

	stopAt := tickUntil(t, m, vad.LabelSilence, silenceFrom.Add(300*time.Millisecond), silenceFrom.Add(1000*time.Millisecond), step, StateRecording)
	if stopAt.IsZero() {
		t.Fatal("segment never stopped")
	}
	if window := stopAt.Sub(silenceFrom); window < 500*time.Millisecond {
		t.Errorf("stopped after %v of silence, want > 500ms", window)
	}
}
