// Package gateway implements the Siren translation gateway: a WebSocket
// endpoint that accepts utterance segments as binary WAV messages and runs
// each through the speech-to-text, translation, and text-to-speech cascade.
//
// # Architecture
//
//  1. Client uploads a completed utterance segment as one binary message.
//  2. STT transcribes the WAV and detects the spoken language.
//  3. The hallucination filter drops known recognizer false positives; a
//     dropped transcript produces no reply at all.
//  4. A Japanese utterance is translated to the configured source language,
//     anything else to the target language.
//  5. TTS synthesises the translation; PCM output is re-encoded to Opus
//     before it crosses the wire. Synthesis failure degrades to a text-only
//     reply rather than dropping the segment.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dragoon4890/siren/internal/observe"
	"github.com/dragoon4890/siren/internal/transcript"
	"github.com/dragoon4890/siren/pkg/audio"
	"github.com/dragoon4890/siren/pkg/provider/stt"
	"github.com/dragoon4890/siren/pkg/provider/translate"
	"github.com/dragoon4890/siren/pkg/provider/tts"
	"github.com/dragoon4890/siren/pkg/types"
)

// Pipeline runs one utterance segment through the STT, filter, translate, and
// TTS stages. It is safe for concurrent use; concurrent Process calls are
// independent.
type Pipeline struct {
	transcriber stt.Transcriber
	translator  translate.Translator
	synthesizer tts.Synthesizer // nil = text-only replies
	filter      *transcript.Filter
	metrics     *observe.Metrics

	sourceLang string
	targetLang string

	sttName       string
	translateName string
	ttsName       string
}

// PipelineOption is a functional option for configuring a Pipeline.
type PipelineOption func(*Pipeline)

// WithSynthesizer attaches a TTS synthesizer. Without one the pipeline
// produces text-only replies.
func WithSynthesizer(s tts.Synthesizer) PipelineOption {
	return func(p *Pipeline) { p.synthesizer = s }
}

// WithFilter overrides the default hallucination filter.
func WithFilter(f *transcript.Filter) PipelineOption {
	return func(p *Pipeline) { p.filter = f }
}

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithProviderNames sets the provider labels used in request and error
// metrics. Defaults are the stage names themselves.
func WithProviderNames(sttName, translateName, ttsName string) PipelineOption {
	return func(p *Pipeline) {
		p.sttName = sttName
		p.translateName = translateName
		p.ttsName = ttsName
	}
}

// NewPipeline constructs a Pipeline translating between sourceLang and
// targetLang. Utterances detected as Japanese are translated to sourceLang,
// everything else to targetLang.
func NewPipeline(transcriber stt.Transcriber, translator translate.Translator, sourceLang, targetLang string, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		transcriber:   transcriber,
		translator:    translator,
		filter:        transcript.NewFilter(),
		sourceLang:    sourceLang,
		targetLang:    targetLang,
		sttName:       "stt",
		translateName: "translate",
		ttsName:       "tts",
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Process runs one binary WAV segment through the full cascade.
//
// A nil result with a nil error means the transcript was rejected by the
// hallucination filter and no reply should be sent. A non-nil result always
// has valid text fields; the audio fields are empty when synthesis failed or
// no synthesizer is configured.
func (p *Pipeline) Process(ctx context.Context, wav []byte) (*types.TranslationResult, error) {
	ctx, span := observe.StartSpan(ctx, "gateway.process")
	defer span.End()
	start := time.Now()

	// ── Stage 1: STT ─────────────────────────────────────────────────────────
	sttStart := time.Now()
	rec, err := p.transcriber.Transcribe(ctx, wav)
	p.metrics.STTDuration.Record(ctx, time.Since(sttStart).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, p.sttName, "stt")
		return nil, fmt.Errorf("gateway: transcribe: %w", err)
	}
	p.metrics.RecordProviderRequest(ctx, p.sttName, "stt", "ok")

	// ── Stage 2: hallucination filter ────────────────────────────────────────
	if p.filter.Reject(rec.Text) {
		p.metrics.TranscriptsRejected.Add(ctx, 1)
		observe.Logger(ctx).Debug("transcript rejected", "text", rec.Text)
		return nil, nil
	}
	lang := transcript.NormalizeLanguage(rec.Language)

	// ── Stage 3: translate ───────────────────────────────────────────────────
	target := p.targetLang
	if lang == "ja" {
		target = p.sourceLang
	}
	trStart := time.Now()
	translated, err := p.translator.Translate(ctx, translate.Request{
		Text:       rec.Text,
		SourceLang: lang,
		TargetLang: target,
	})
	p.metrics.TranslateDuration.Record(ctx, time.Since(trStart).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, p.translateName, "translate")
		return nil, fmt.Errorf("gateway: translate: %w", err)
	}
	p.metrics.RecordProviderRequest(ctx, p.translateName, "translate", "ok")

	result := &types.TranslationResult{
		Transcript:  rec.Text,
		Language:    lang,
		Translation: translated,
		Timestamp:   time.Now(),
	}

	// ── Stage 4: TTS (best effort) ───────────────────────────────────────────
	if p.synthesizer != nil {
		p.synthesize(ctx, target, result)
	}

	p.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
	return result, nil
}

// synthesize fills the audio fields of result. Failures are logged and leave
// the text-only result intact.
func (p *Pipeline) synthesize(ctx context.Context, lang string, result *types.TranslationResult) {
	ttsStart := time.Now()
	clip, err := p.synthesizer.Synthesize(ctx, tts.Request{
		Text:     result.Translation,
		Language: lang,
	})
	p.metrics.TTSDuration.Record(ctx, time.Since(ttsStart).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, p.ttsName, "tts")
		observe.Logger(ctx).Warn("synthesis failed, sending text-only reply",
			slog.String("error", err.Error()))
		return
	}
	p.metrics.RecordProviderRequest(ctx, p.ttsName, "tts", "ok")

	switch clip.Format {
	case tts.FormatMP3:
		result.Audio = clip.Data
		result.AudioFormat = types.AudioFormatMP3
	case tts.FormatPCM16:
		enc, err := audio.NewOpusEncoder(clip.SampleRate, clip.Channels)
		if err != nil {
			observe.Logger(ctx).Warn("opus encoder init failed", slog.String("error", err.Error()))
			return
		}
		encoded, err := enc.EncodeClip(clip.Data)
		if err != nil {
			observe.Logger(ctx).Warn("opus encode failed", slog.String("error", err.Error()))
			return
		}
		result.Audio = encoded
		result.AudioFormat = types.AudioFormatOpus
		result.SampleRate = clip.SampleRate
		result.Channels = clip.Channels
	default:
		observe.Logger(ctx).Warn("unknown clip format", slog.String("format", clip.Format))
	}
}
