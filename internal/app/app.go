// Package app wires the Siren client subsystems into a running engine.
//
// The Engine owns the capture-side pipeline — microphone frames are measured,
// classified against the adaptive noise floor, and fed through the
// segmentation state machine into the recording sink — and the playback side,
// where translation replies from the gateway are enqueued on the ordered
// playback queue. Completed segments leave the engine through an [Uploader]
// so the frame tick never blocks on the network.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dragoon4890/siren/internal/config"
	"github.com/dragoon4890/siren/internal/segment"
	"github.com/dragoon4890/siren/internal/vad"
	"github.com/dragoon4890/siren/pkg/audio"
	"github.com/dragoon4890/siren/pkg/audio/player"
	"github.com/dragoon4890/siren/pkg/types"
)

const (
	defaultSampleRate = 16000
	defaultChannels   = 1
)

// ErrCaptureEnded is returned by [Engine.Run] when the capture stream closes
// unexpectedly, typically because the device disappeared. Any open segment is
// flushed before Run returns; the engine is idle afterwards.
var ErrCaptureEnded = errors.New("app: capture stream ended")

// Uploader ships one encoded WAV segment towards the gateway. Implementations
// must not block; the relay client satisfies this with its bounded queue.
type Uploader interface {
	Send(segment []byte) error
}

// Engine is the client session engine. Construct with [New], start with
// [Engine.Run], and feed gateway replies to [Engine.HandleResult].
type Engine struct {
	platform audio.Platform
	uploader Uploader
	queue    *player.Queue
	recorder *segment.Recorder
	machine  *segment.Machine

	captureCfg audio.CaptureConfig

	// mu guards the classifier, which is shared between the frame loop and
	// runtime margin updates.
	mu         sync.Mutex
	classifier *vad.Classifier
}

// New assembles an Engine from the client configuration. output receives
// decoded clips from the playback queue; uploader receives completed
// segments.
func New(cfg *config.Config, platform audio.Platform, uploader Uploader, output player.Output) *Engine {
	captureCfg := audio.CaptureConfig{
		SampleRate: cfg.Capture.SampleRate,
		Channels:   cfg.Capture.Channels,
		DeviceID:   cfg.Client.Device,
	}
	if captureCfg.SampleRate <= 0 {
		captureCfg.SampleRate = defaultSampleRate
	}
	if captureCfg.Channels <= 0 {
		captureCfg.Channels = defaultChannels
	}

	recorder := segment.NewRecorder()
	machine := segment.New(segment.Config{
		MaxRecording:  time.Duration(cfg.Segmenter.MaxRecordingMs) * time.Millisecond,
		MinRecording:  time.Duration(cfg.Segmenter.MinRecordingMs) * time.Millisecond,
		SilenceWindow: time.Duration(cfg.Segmenter.SilenceTimeMs) * time.Millisecond,
		SilenceHold:   time.Duration(cfg.Segmenter.SilenceHoldMs) * time.Millisecond,
	}, recorder)

	var queueOpts []player.Option
	if cfg.Playback.GapMs > 0 {
		queueOpts = append(queueOpts, player.WithGap(time.Duration(cfg.Playback.GapMs)*time.Millisecond))
	}

	return &Engine{
		platform:   platform,
		uploader:   uploader,
		queue:      player.New(output, queueOpts...),
		recorder:   recorder,
		machine:    machine,
		captureCfg: captureCfg,
		classifier: vad.NewClassifier(vad.Config{Margin: cfg.Segmenter.SpeechMargin}),
	}
}

// Run opens the capture stream and processes frames until ctx is cancelled or
// the device fails. Pending segments are flushed on the way out.
func (e *Engine) Run(ctx context.Context) error {
	stream, err := e.platform.OpenCapture(ctx, e.captureCfg)
	if err != nil {
		return fmt.Errorf("app: open capture: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return stream.Close()
	})
	g.Go(func() error { return e.frameLoop(ctx, stream) })
	g.Go(func() error { return e.segmentLoop(ctx) })
	return g.Wait()
}

// frameLoop drives the classifier and state machine with capture frames.
func (e *Engine) frameLoop(ctx context.Context, stream audio.CaptureStream) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-stream.Frames():
			if !ok {
				// Device gone. Flush whatever was being recorded and
				// surface the failure; the machine ends up idle either way.
				e.machine.Stop(time.Now())
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrCaptureEnded
			}
			e.processFrame(frame)
		}
	}
}

// processFrame runs one frame through measure, classify, tick, append.
// The frame that opens a segment is included in its recording.
func (e *Engine) processFrame(frame audio.Frame) {
	level := audio.RMS(frame.PCM)
	recording := e.machine.State() != segment.StateIdle

	e.mu.Lock()
	label := e.classifier.Classify(level, recording)
	e.mu.Unlock()

	if err := e.machine.Tick(label, frame.Time); err != nil {
		slog.Warn("dropping out-of-order capture frame",
			slog.Time("frame_time", frame.Time),
			slog.String("error", err.Error()))
		return
	}
	e.recorder.Append(frame.PCM)
}

// segmentLoop uploads completed segments. On shutdown it drains whatever the
// recorder already handed off so a manual stop or device-failure flush is not
// lost.
func (e *Engine) segmentLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			e.drainSegments()
			return ctx.Err()
		case seg, ok := <-e.recorder.Segments():
			if !ok {
				return nil
			}
			e.upload(seg)
		}
	}
}

// drainSegments uploads segments already queued by the recorder without
// blocking.
func (e *Engine) drainSegments() {
	for {
		select {
		case seg, ok := <-e.recorder.Segments():
			if !ok {
				return
			}
			e.upload(seg)
		default:
			return
		}
	}
}

// upload encodes one segment as WAV and hands it to the uploader.
func (e *Engine) upload(seg segment.Segment) {
	wav := audio.EncodeWAV(seg.PCM, e.captureCfg.SampleRate, e.captureCfg.Channels)
	if err := e.uploader.Send(wav); err != nil {
		slog.Warn("segment upload failed",
			slog.Duration("duration", seg.End.Sub(seg.Start)),
			slog.String("reason", seg.Reason.String()),
			slog.String("error", err.Error()))
		return
	}
	slog.Info("segment uploaded",
		slog.Duration("duration", seg.End.Sub(seg.Start)),
		slog.String("reason", seg.Reason.String()),
		slog.Int("bytes", len(wav)))
}

// HandleResult enqueues the translated clip from one gateway reply. Replies
// without audio are logged only. Safe to call from the relay's read loop.
func (e *Engine) HandleResult(result types.TranslationResult) {
	slog.Info("translation received", slog.String("line", result.TranscriptLine()))
	if len(result.Audio) == 0 {
		return
	}
	e.queue.Enqueue(player.Item{
		ID:         result.Timestamp.Format("150405.000"),
		Data:       result.Audio,
		Format:     result.AudioFormat,
		SampleRate: result.SampleRate,
		Channels:   result.Channels,
	})
}

// StopSegment flushes the segment currently being recorded, if any, through
// the normal handoff path. Bound to the user's manual-stop action.
func (e *Engine) StopSegment() {
	e.machine.Stop(time.Now())
}

// Recording reports whether a segment is currently open.
func (e *Engine) Recording() bool {
	return e.machine.State() != segment.StateIdle
}

// ApplyDiff applies hot-reloadable configuration changes to the running
// engine. Intended as the config watcher's change callback target.
func (e *Engine) ApplyDiff(d config.ConfigDiff) {
	if d.SilenceTimeChanged {
		e.machine.SetSilenceWindow(time.Duration(d.NewSilenceTimeMs) * time.Millisecond)
		slog.Info("silence window updated", slog.Int("ms", d.NewSilenceTimeMs))
	}
	if d.SpeechMarginChanged {
		e.mu.Lock()
		e.classifier.SetMargin(d.NewSpeechMargin)
		e.mu.Unlock()
		slog.Info("speech margin updated", slog.Float64("margin", d.NewSpeechMargin))
	}
	if d.GapChanged {
		e.queue.SetGap(time.Duration(d.NewGapMs) * time.Millisecond)
		slog.Info("playback gap updated", slog.Int("ms", d.NewGapMs))
	}
}

// Close releases the recorder and playback queue. Call after Run has
// returned.
func (e *Engine) Close() error {
	e.recorder.Close()
	return e.queue.Close()
}
