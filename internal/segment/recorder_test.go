package segment

import (
	"bytes"
	"testing"
	"time"
)

func TestRecorderLifecycle(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	base := time.Unix(0, 0)

	// Audio before any segment opens is discarded.
	r.Append([]byte{1, 2, 3})

	r.SegmentStarted(base)
	r.Append([]byte{4, 5})
	r.Append([]byte{6})
	r.SegmentStopped(base.Add(time.Second), StopSilence)

	select {
	case seg := <-r.Segments():
		if !bytes.Equal(seg.PCM, []byte{4, 5, 6}) {
			t.Errorf("PCM = %v, want [4 5 6]", seg.PCM)
		}
		if !seg.Start.Equal(base) || !seg.End.Equal(base.Add(time.Second)) {
			t.Errorf("boundaries = %v..%v, want %v..%v", seg.Start, seg.End, base, base.Add(time.Second))
		}
		if seg.Reason != StopSilence {
			t.Errorf("reason = %v, want silence", seg.Reason)
		}
	default:
		t.Fatal("no segment delivered")
	}

	// Audio after the stop is discarded again.
	r.Append([]byte{7})
	r.SegmentStarted(base.Add(2 * time.Second))
	r.Append([]byte{8})
	r.SegmentStopped(base.Add(3*time.Second), StopManual)

	seg := <-r.Segments()
	if !bytes.Equal(seg.PCM, []byte{8}) {
		t.Errorf("second segment PCM = %v, want [8]", seg.PCM)
	}
	if seg.Reason != StopManual {
		t.Errorf("second segment reason = %v, want manual", seg.Reason)
	}
}

func TestRecorderStopWithoutStart(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.SegmentStopped(time.Unix(0, 0), StopSilence)

	select {
	case seg := <-r.Segments():
		t.Fatalf("unexpected segment %+v", seg)
	default:
	}
}

func TestRecorderDropsWhenHandoffFull(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	base := time.Unix(0, 0)

	// Fill the handoff buffer plus one; the overflow segment is dropped but
	// the recorder stays clean for the next one.
	for i := 0; i <= segmentChanBuf; i++ {
		r.SegmentStarted(base)
		r.Append([]byte{byte(i)})
		r.SegmentStopped(base.Add(time.Second), StopSilence)
	}

	delivered := 0
drain:
	for {
		select {
		case <-r.Segments():
			delivered++
		default:
			break drain
		}
	}
	if delivered != segmentChanBuf {
		t.Errorf("delivered = %d, want %d", delivered, segmentChanBuf)
	}

	// A dropped handoff must not leave buffered audio behind.
	r.SegmentStarted(base.Add(2 * time.Second))
	r.Append([]byte{42})
	r.SegmentStopped(base.Add(3*time.Second), StopSilence)
	seg := <-r.Segments()
	if !bytes.Equal(seg.PCM, []byte{42}) {
		t.Errorf("PCM after drop = %v, want [42]", seg.PCM)
	}
}

func TestRecorderClose(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.SegmentStarted(time.Unix(0, 0))
	r.Append([]byte{1})

	r.Close()
	r.Close() // idempotent

	if _, ok := <-r.Segments(); ok {
		t.Fatal("segments channel not closed")
	}

	// Callbacks after close are no-ops, not panics.
	r.Append([]byte{2})
	r.SegmentStopped(time.Unix(1, 0), StopManual)
	r.SegmentStarted(time.Unix(2, 0))
	r.SegmentStopped(time.Unix(3, 0), StopManual)
}
