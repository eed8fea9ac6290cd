// Package segment turns the per-frame speech/silence classification into
// discrete utterance segments. The state machine decides when a segment opens
// and closes; the [Recorder] owns the audio buffer and hands completed
// segments off for transport.
package segment

import (
	"errors"
	"sync"
	"time"

	"github.com/dragoon4890/siren/internal/vad"
)

// State is the current mode of the segmentation machine.
type State int

const (
	// StateIdle means no segment is open. The initial state.
	StateIdle State = iota

	// StateRecording means a segment is open and still below the maximum
	// recording duration.
	StateRecording

	// StateAwaitingMaxSilence means the open segment has exceeded the maximum
	// recording duration and closes on the first sufficiently long silence,
	// with no minimum-duration check.
	StateAwaitingMaxSilence
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateAwaitingMaxSilence:
		return "awaiting-max-silence"
	default:
		return "unknown"
	}
}

// StopReason records why a segment was closed.
type StopReason int

const (
	// StopSilence is the normal stop: a silence window longer than the
	// configured silence time after at least the minimum recording duration.
	StopSilence StopReason = iota

	// StopMaxHold is the post-max stop: the segment ran past the maximum
	// recording duration and a short silence hold elapsed.
	StopMaxHold

	// StopManual is an externally triggered stop (user action, shutdown).
	StopManual
)

// String returns the human-readable name of the stop reason.
func (r StopReason) String() string {
	switch r {
	case StopSilence:
		return "silence"
	case StopMaxHold:
		return "max-hold"
	case StopManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Default durations for the segmentation machine.
const (
	DefaultMaxRecording  = 7000 * time.Millisecond
	DefaultMinRecording  = 3000 * time.Millisecond
	DefaultSilenceWindow = 200 * time.Millisecond
	DefaultSilenceHold   = 150 * time.Millisecond
)

// ErrNonMonotonicTick is returned by [Machine.Tick] when a frame timestamp
// precedes the previous one. The frame must be dropped by the caller; the
// machine state is unchanged.
var ErrNonMonotonicTick = errors.New("segment: non-monotonic tick timestamp")

// Config holds the timing knobs for a [Machine].
type Config struct {
	// MaxRecording caps how long a segment may run before it switches to the
	// awaiting-max-silence mode. Default: 7000 ms.
	MaxRecording time.Duration

	// MinRecording is the shortest segment the normal stop path will close.
	// Default: 3000 ms.
	MinRecording time.Duration

	// SilenceWindow is how much continuous silence closes a segment on the
	// normal path. User-adjustable at runtime. Default: 200 ms.
	SilenceWindow time.Duration

	// SilenceHold is how much continuous silence closes a segment once past
	// MaxRecording. Default: 150 ms.
	SilenceHold time.Duration
}

// withDefaults returns cfg with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.MaxRecording <= 0 {
		c.MaxRecording = DefaultMaxRecording
	}
	if c.MinRecording <= 0 {
		c.MinRecording = DefaultMinRecording
	}
	if c.SilenceWindow <= 0 {
		c.SilenceWindow = DefaultSilenceWindow
	}
	if c.SilenceHold <= 0 {
		c.SilenceHold = DefaultSilenceHold
	}
	return c
}

// Listener receives segment lifecycle callbacks. Callbacks are invoked with
// the machine's lock held and must return quickly without calling back into
// the [Machine].
type Listener interface {
	// SegmentStarted is called when a segment opens.
	SegmentStarted(now time.Time)

	// SegmentStopped is called when the open segment closes, for any reason.
	SegmentStopped(now time.Time, reason StopReason)
}

// Machine is the segmentation state machine. Frame ticks arrive from a single
// goroutine; a manual stop may arrive from another, so state is guarded by a
// mutex.
type Machine struct {
	listener Listener

	mu           sync.Mutex
	cfg          Config
	state        State
	segmentStart time.Time
	silenceSince time.Time // zero means no pending silence window
	lastTick     time.Time
}

// New creates a [Machine] with the supplied configuration. Zero-value config
// fields are replaced with defaults. listener must not be nil.
func New(cfg Config, listener Listener) *Machine {
	return &Machine{
		cfg:      cfg.withDefaults(),
		listener: listener,
		state:    StateIdle,
	}
}

// State returns the current [State].
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetSilenceWindow updates the normal-stop silence time at runtime. The new
// value applies from the next tick.
func (m *Machine) SetSilenceWindow(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.SilenceWindow = d
}

// Tick advances the machine by one classified frame. now must be
// monotonically non-decreasing across ticks; a timestamp earlier than the
// previous tick returns [ErrNonMonotonicTick] and leaves the state unchanged.
func (m *Machine) Tick(label vad.Label, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Before(m.lastTick) {
		return ErrNonMonotonicTick
	}
	m.lastTick = now

	if m.state == StateIdle {
		if label == vad.LabelSpeech {
			m.state = StateRecording
			m.segmentStart = now
			m.silenceSince = time.Time{}
			m.listener.SegmentStarted(now)
		}
		return nil
	}

	// Maintain the pending silence window: opened by the first silent frame,
	// cancelled by speech or ambiguous frames.
	if label == vad.LabelSilence {
		if m.silenceSince.IsZero() {
			m.silenceSince = now
		}
	} else {
		m.silenceSince = time.Time{}
	}

	// One-way mode flag once the segment runs past the maximum duration.
	if m.state == StateRecording && now.Sub(m.segmentStart) > m.cfg.MaxRecording {
		m.state = StateAwaitingMaxSilence
	}

	switch m.state {
	case StateRecording:
		if !m.silenceSince.IsZero() &&
			now.Sub(m.silenceSince) > m.cfg.SilenceWindow &&
			now.Sub(m.segmentStart) >= m.cfg.MinRecording {
			m.stopLocked(now, StopSilence)
		}
	case StateAwaitingMaxSilence:
		if !m.silenceSince.IsZero() && now.Sub(m.silenceSince) > m.cfg.SilenceHold {
			m.stopLocked(now, StopMaxHold)
		}
	}
	return nil
}

// Stop flushes any open segment through the normal handoff path and returns
// the machine to idle. Safe to call from any goroutine and when no segment is
// open (no-op).
func (m *Machine) Stop(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateIdle {
		return
	}
	m.stopLocked(now, StopManual)
}

// stopLocked closes the open segment. Must be called with m.mu held.
func (m *Machine) stopLocked(now time.Time, reason StopReason) {
	m.state = StateIdle
	m.silenceSince = time.Time{}
	m.segmentStart = time.Time{}
	m.listener.SegmentStopped(now, reason)
}
