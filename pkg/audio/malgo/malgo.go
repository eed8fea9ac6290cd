// Package malgo provides a real microphone capture adapter backed by the
// miniaudio library via github.com/gen2brain/malgo. It implements
// [audio.Platform] and [audio.CaptureStream].
package malgo

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/dragoon4890/siren/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.Platform      = (*Platform)(nil)
	_ audio.CaptureStream = (*stream)(nil)
)

// frameChanBuf is the buffer depth of a capture stream's Frames channel.
// The miniaudio callback must never block, so frames arriving while the
// consumer is behind are dropped (and counted) instead of queued unboundedly.
const frameChanBuf = 256

// Platform implements [audio.Platform] on top of a malgo context.
type Platform struct {
	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// New initialises the miniaudio backend. Call [Platform.Close] when done.
func New() (*Platform, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo: init context: %w", err)
	}
	return &Platform{ctx: ctx}, nil
}

// Devices implements [audio.Platform]. Device IDs are hex-encoded so they can
// round-trip through configuration files.
func (p *Platform) Devices() ([]audio.DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil {
		return nil, errors.New("malgo: platform is closed")
	}

	devices, err := p.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo: list capture devices: %w", err)
	}
	result := make([]audio.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		result = append(result, audio.DeviceInfo{
			ID:      hex.EncodeToString(d.ID[:]),
			Name:    d.Name(),
			Default: d.IsDefault != 0,
		})
	}
	return result, nil
}

// OpenCapture implements [audio.Platform]. It starts the device immediately;
// frames begin arriving on the returned stream's channel as soon as the
// hardware delivers them.
func (p *Platform) OpenCapture(ctx context.Context, cfg audio.CaptureConfig) (audio.CaptureStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("malgo: context already cancelled: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil {
		return nil, errors.New("malgo: platform is closed")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)

	if cfg.DeviceID != "" {
		idBytes, err := hex.DecodeString(cfg.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("malgo: invalid device ID %q: %w", cfg.DeviceID, err)
		}
		var devID malgo.DeviceID
		copy(devID[:], idBytes)
		deviceConfig.Capture.DeviceID = devID.Pointer()
	}

	s := &stream{frames: make(chan audio.Frame, frameChanBuf)}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			s.deliver(data)
		},
	}

	dev, err := malgo.InitDevice(p.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("malgo: init capture device: %w", err)
	}
	s.device = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, fmt.Errorf("malgo: start capture device: %w", err)
	}
	return s, nil
}

// Close implements [audio.Platform].
func (p *Platform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil {
		return nil
	}
	err := p.ctx.Uninit()
	p.ctx.Free()
	p.ctx = nil
	if err != nil {
		return fmt.Errorf("malgo: uninit context: %w", err)
	}
	return nil
}

// stream is a live malgo capture stream.
type stream struct {
	device *malgo.Device
	frames chan audio.Frame

	mu      sync.Mutex
	closed  bool
	dropped int
}

// deliver is invoked on the miniaudio callback thread. The data slice is owned
// by miniaudio for the duration of the callback only, so it is copied before
// being handed to the channel.
func (s *stream) deliver(data []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	pcm := make([]byte, len(data))
	copy(pcm, data)
	select {
	case s.frames <- audio.Frame{PCM: pcm, Time: time.Now()}:
	default:
		s.dropped++
		if s.dropped%100 == 1 {
			slog.Warn("malgo: capture consumer is behind, dropping frames", "dropped", s.dropped)
		}
	}
	s.mu.Unlock()
}

// Frames implements [audio.CaptureStream].
func (s *stream) Frames() <-chan audio.Frame { return s.frames }

// Close implements [audio.CaptureStream].
func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Stop the hardware before closing the channel so deliver cannot race a
	// send against the close.
	s.device.Uninit()

	s.mu.Lock()
	close(s.frames)
	s.mu.Unlock()
	return nil
}
