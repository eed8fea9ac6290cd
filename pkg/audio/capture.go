// Package audio defines the capture interfaces and PCM utilities shared by the
// Siren client and gateway.
//
// The two primary abstractions are:
//
//   - [Platform] — enumerates capture devices and opens a [CaptureStream].
//   - [CaptureStream] — an open microphone stream delivering [Frame] values.
//
// Implementations live in platform-specific adapter packages (audio/malgo for
// real hardware, audio/mock for tests). The interfaces are intentionally narrow
// so the segmentation engine stays decoupled from device details.
//
// This package lives under pkg/ because external capture adapters are expected
// to implement [Platform] and [CaptureStream].
package audio

import "context"

// DeviceInfo describes one capture device known to a [Platform].
type DeviceInfo struct {
	// ID is the platform-specific device identifier.
	ID string

	// Name is the human-readable device name.
	Name string

	// Default reports whether this is the system default capture device.
	Default bool
}

// CaptureConfig holds the parameters for opening a capture stream.
type CaptureConfig struct {
	// SampleRate is the requested sample rate in Hz (e.g., 16000).
	SampleRate int

	// Channels is the requested channel count. Mono (1) is typical for
	// speech capture.
	Channels int

	// DeviceID selects a specific device from [Platform.Devices]. When empty
	// the system default capture device is used.
	DeviceID string
}

// CaptureStream is an open microphone stream.
//
// Implementations must be safe for concurrent use.
type CaptureStream interface {
	// Frames returns the read-only channel delivering captured audio.
	// The channel is closed when the stream ends, either via [CaptureStream.Close]
	// or because the underlying device failed.
	Frames() <-chan Frame

	// Close stops capture, closes the Frames channel, and releases device
	// resources. Close is idempotent; subsequent calls return nil.
	Close() error
}

// Platform is the entry point for an audio capture backend.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Devices lists the capture devices currently available.
	Devices() ([]DeviceInfo, error)

	// OpenCapture opens a capture stream with the given configuration. The
	// supplied ctx governs the lifetime of the open attempt only; once open,
	// the stream remains alive until [CaptureStream.Close] is called.
	OpenCapture(ctx context.Context, cfg CaptureConfig) (CaptureStream, error)

	// Close releases the backend. All streams must be closed first.
	Close() error
}
