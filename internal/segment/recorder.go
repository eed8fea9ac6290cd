package segment

import (
	"log/slog"
	"sync"
	"time"
)

// Compile-time interface assertion.
var _ Listener = (*Recorder)(nil)

// segmentChanBuf is the buffer depth of the handoff channel. Handoff happens
// outside the frame tick; if the transport consumer stalls this long, the
// segment is dropped rather than blocking the tick.
const segmentChanBuf = 8

// Segment is one completed utterance, ready for transport.
type Segment struct {
	// PCM is the raw captured audio. Ownership transfers with the segment;
	// the recorder keeps no reference after handoff.
	PCM []byte

	// Start and End are the segment boundaries as observed by the machine.
	Start, End time.Time

	// Reason records why the segment closed.
	Reason StopReason
}

// Recorder owns the active audio buffer for the segment currently being
// recorded. It implements [Listener] so the [Machine] drives its lifecycle,
// and exposes completed segments on a buffered channel so handoff never
// blocks the frame tick.
//
// Append and the Listener callbacks are safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	recording bool
	buf       []byte
	start     time.Time

	segments chan Segment
	closed   bool
}

// NewRecorder creates a [Recorder].
func NewRecorder() *Recorder {
	return &Recorder{segments: make(chan Segment, segmentChanBuf)}
}

// Segments returns the channel delivering completed segments. The channel is
// closed by [Recorder.Close].
func (r *Recorder) Segments() <-chan Segment {
	return r.segments
}

// Append adds captured audio to the active buffer. Frames arriving while no
// segment is open are discarded.
func (r *Recorder) Append(pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	r.buf = append(r.buf, pcm...)
}

// SegmentStarted implements [Listener]. It opens a fresh buffer.
func (r *Recorder) SegmentStarted(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = true
	r.buf = nil
	r.start = now
}

// SegmentStopped implements [Listener]. The buffer is transferred into the
// emitted [Segment] — not copied — and the recorder's reference is cleared
// before delivery, so a failed handoff still leaves the recorder empty and
// ready for the next segment.
func (r *Recorder) SegmentStopped(now time.Time, reason StopReason) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	seg := Segment{
		PCM:    r.buf,
		Start:  r.start,
		End:    now,
		Reason: reason,
	}
	r.recording = false
	r.buf = nil
	r.start = time.Time{}

	// Non-blocking send under the lock: the channel is buffered and Close
	// also takes the lock, so this cannot race a channel close.
	if !r.closed {
		select {
		case r.segments <- seg:
		default:
			slog.Warn("segment handoff queue full, dropping segment",
				"duration", seg.End.Sub(seg.Start),
				"bytes", len(seg.PCM),
				"reason", reason.String())
		}
	}
	r.mu.Unlock()
}

// Close closes the segments channel. Any segment still being recorded is
// discarded. Close is idempotent.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.recording = false
	r.buf = nil
	close(r.segments)
}
