package malgo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/gen2brain/malgo"

	"github.com/dragoon4890/siren/pkg/audio"
	"github.com/dragoon4890/siren/pkg/audio/player"
)

// Compile-time interface assertion.
var _ player.Output = (*Speaker)(nil)

const (
	defaultPlaybackRate     = 48000
	defaultPlaybackChannels = 1

	// tailDrain gives the device buffer time to empty after the last sample
	// has been handed to the callback, so clip endings are not cut off.
	tailDrain = 60 * time.Millisecond
)

// Speaker plays clips on the default output device. It implements
// [player.Output]: Play blocks until the clip has finished or ctx is
// cancelled. Each clip opens and closes its own playback device, which keeps
// the speaker free between clips and matches the queue's one-at-a-time
// dispatch.
type Speaker struct {
	platform *Platform
}

// NewSpeaker creates a [Speaker] sharing the platform's miniaudio context.
func NewSpeaker(p *Platform) *Speaker {
	return &Speaker{platform: p}
}

// Play implements [player.Output].
func (s *Speaker) Play(ctx context.Context, item player.Item) error {
	pcm, sampleRate, channels, err := decodeClip(item)
	if err != nil {
		return err
	}
	if len(pcm) == 0 {
		return nil
	}
	return s.platform.playPCM(ctx, pcm, sampleRate, channels)
}

// decodeClip converts item into raw 16-bit little-endian PCM plus its format.
// Opus never reaches here; the playback queue decodes it to PCM16 first.
func decodeClip(item player.Item) (pcm []byte, sampleRate, channels int, err error) {
	switch item.Format {
	case player.FormatPCM16:
		sampleRate, channels = item.SampleRate, item.Channels
		if sampleRate <= 0 {
			sampleRate = defaultPlaybackRate
		}
		if channels <= 0 {
			channels = defaultPlaybackChannels
		}
		return item.Data, sampleRate, channels, nil

	case player.FormatWAV:
		info, err := audio.DecodeWAV(item.Data)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("malgo: decode wav clip: %w", err)
		}
		return item.Data[info.DataOffset : info.DataOffset+info.DataSize], info.SampleRate, info.Channels, nil

	case player.FormatMP3:
		dec, err := mp3.NewDecoder(bytes.NewReader(item.Data))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("malgo: decode mp3 clip: %w", err)
		}
		data, err := io.ReadAll(dec)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("malgo: decode mp3 clip: %w", err)
		}
		// go-mp3 always emits 16-bit stereo.
		return data, dec.SampleRate(), 2, nil

	default:
		return nil, 0, 0, fmt.Errorf("malgo: unsupported clip format %q", item.Format)
	}
}

// playPCM plays raw PCM on the default playback device and blocks until the
// clip ends or ctx is cancelled.
func (p *Platform) playPCM(ctx context.Context, pcm []byte, sampleRate, channels int) error {
	p.mu.Lock()
	mctx := p.ctx
	p.mu.Unlock()
	if mctx == nil {
		return errors.New("malgo: platform is closed")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)

	// pos is only touched on the miniaudio callback thread.
	var pos int
	done := make(chan struct{})

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			n := copy(out, pcm[pos:])
			pos += n
			if n < len(out) {
				clear(out[n:])
			}
			if pos >= len(pcm) {
				select {
				case <-done:
				default:
					close(done)
				}
			}
		},
	}

	dev, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("malgo: init playback device: %w", err)
	}
	defer dev.Uninit()

	if err := dev.Start(); err != nil {
		return fmt.Errorf("malgo: start playback device: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(tailDrain):
	}
	return nil
}
