// Package mock provides in-memory mock implementations of the [audio.Platform]
// and [audio.CaptureStream] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported
// fields that the test can set to control return values.
//
// Typical usage:
//
//	stream := mock.NewStream(16)
//	platform := &mock.Platform{OpenCaptureResult: stream}
//	got, err := platform.OpenCapture(ctx, audio.CaptureConfig{SampleRate: 16000, Channels: 1})
//	stream.Push(audio.Frame{PCM: chunk, Time: now})
//	stream.Close()
package mock

import (
	"context"
	"sync"

	"github.com/dragoon4890/siren/pkg/audio"
)

// ─── Stream ───────────────────────────────────────────────────────────────────

// Stream is a mock implementation of [audio.CaptureStream]. Frames pushed via
// [Stream.Push] are delivered on the Frames channel in order.
type Stream struct {
	mu     sync.Mutex
	frames chan audio.Frame
	closed bool

	// CallCountClose records how many times Close was called.
	CallCountClose int

	// CloseError is returned by the first call to [Stream.Close].
	CloseError error
}

// NewStream creates a mock capture stream whose Frames channel is buffered to
// the given depth.
func NewStream(buf int) *Stream {
	return &Stream{frames: make(chan audio.Frame, buf)}
}

// Push delivers one frame to the stream's consumers. Pushing to a closed
// stream is a no-op so tests can race Push against Close safely.
func (s *Stream) Push(f audio.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.frames <- f
}

// Frames implements [audio.CaptureStream].
func (s *Stream) Frames() <-chan audio.Frame { return s.frames }

// Close implements [audio.CaptureStream]. The Frames channel is closed on the
// first call; subsequent calls are no-ops returning nil.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.frames)
	return s.CloseError
}

// ─── Platform ─────────────────────────────────────────────────────────────────

// Platform is a mock implementation of [audio.Platform].
// Set the exported Result fields before use; inspect the Call* fields after.
type Platform struct {
	mu sync.Mutex

	// DevicesResult is returned by [Platform.Devices].
	DevicesResult []audio.DeviceInfo

	// DevicesError is returned by [Platform.Devices].
	DevicesError error

	// OpenCaptureResult is returned by [Platform.OpenCapture]. If nil and
	// OpenCaptureError is nil, a fresh buffered [Stream] is returned.
	OpenCaptureResult *Stream

	// OpenCaptureError is returned by [Platform.OpenCapture].
	OpenCaptureError error

	// CloseError is returned by [Platform.Close].
	CloseError error

	// CallCountDevices records how many times Devices was called.
	CallCountDevices int

	// CallCountOpenCapture records how many times OpenCapture was called.
	CallCountOpenCapture int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	// RecordedConfigs holds the configs passed to OpenCapture, in order.
	RecordedConfigs []audio.CaptureConfig
}

// Compile-time interface assertions.
var (
	_ audio.Platform      = (*Platform)(nil)
	_ audio.CaptureStream = (*Stream)(nil)
)

// Devices implements [audio.Platform].
func (p *Platform) Devices() ([]audio.DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountDevices++
	return p.DevicesResult, p.DevicesError
}

// OpenCapture implements [audio.Platform].
func (p *Platform) OpenCapture(_ context.Context, cfg audio.CaptureConfig) (audio.CaptureStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountOpenCapture++
	p.RecordedConfigs = append(p.RecordedConfigs, cfg)
	if p.OpenCaptureError != nil {
		return nil, p.OpenCaptureError
	}
	if p.OpenCaptureResult == nil {
		p.OpenCaptureResult = NewStream(64)
	}
	return p.OpenCaptureResult, nil
}

// Close implements [audio.Platform].
func (p *Platform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountClose++
	return p.CloseError
}
