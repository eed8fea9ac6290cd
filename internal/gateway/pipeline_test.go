package gateway_test

import (
	"context"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/dragoon4890/siren/internal/gateway"
	"github.com/dragoon4890/siren/internal/observe"
	"github.com/dragoon4890/siren/pkg/audio"
	"github.com/dragoon4890/siren/pkg/provider/stt"
	sttmock "github.com/dragoon4890/siren/pkg/provider/stt/mock"
	translatemock "github.com/dragoon4890/siren/pkg/provider/translate/mock"
	"github.com/dragoon4890/siren/pkg/provider/tts"
	ttsmock "github.com/dragoon4890/siren/pkg/provider/tts/mock"
	"github.com/dragoon4890/siren/pkg/types"
)

func newTestMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestPipelineTranslatesToTarget(t *testing.T) {
	t.Parallel()

	transcriber := &sttmock.Transcriber{Result: stt.Result{Text: "good morning everyone", Language: "en"}}
	translator := &translatemock.Translator{Result: "みなさん、おはようございます"}
	p := gateway.NewPipeline(transcriber, translator, "en", "ja",
		gateway.WithMetrics(newTestMetrics(t)))

	result, err := p.Process(context.Background(), []byte("wav"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result == nil {
		t.Fatal("Process returned nil result")
	}
	if result.Transcript != "good morning everyone" {
		t.Errorf("transcript = %q", result.Transcript)
	}
	if result.Language != "en" {
		t.Errorf("language = %q", result.Language)
	}
	if result.Translation != "みなさん、おはようございます" {
		t.Errorf("translation = %q", result.Translation)
	}
	if len(translator.Requests) != 1 {
		t.Fatalf("translator calls = %d, want 1", len(translator.Requests))
	}
	if got := translator.Requests[0].TargetLang; got != "ja" {
		t.Errorf("target lang = %q, want ja", got)
	}
	if result.Audio != nil {
		t.Errorf("audio should be empty without a synthesizer")
	}
}

func TestPipelineJapaneseRoutesToSource(t *testing.T) {
	t.Parallel()

	transcriber := &sttmock.Transcriber{Result: stt.Result{Text: "おはよう", Language: "ja"}}
	translator := &translatemock.Translator{Result: "good morning"}
	p := gateway.NewPipeline(transcriber, translator, "en", "ja",
		gateway.WithMetrics(newTestMetrics(t)))

	result, err := p.Process(context.Background(), []byte("wav"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := translator.Requests[0].TargetLang; got != "en" {
		t.Errorf("target lang = %q, want en (japanese routes back to source)", got)
	}
	if result.Language != "ja" {
		t.Errorf("language = %q", result.Language)
	}
}

func TestPipelineNormalizesUnknownLanguage(t *testing.T) {
	t.Parallel()

	transcriber := &sttmock.Transcriber{Result: stt.Result{Text: "some longer unfiltered utterance", Language: "nn"}}
	translator := &translatemock.Translator{Result: "x"}
	p := gateway.NewPipeline(transcriber, translator, "en", "de",
		gateway.WithMetrics(newTestMetrics(t)))

	result, err := p.Process(context.Background(), []byte("wav"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Language != "en" {
		t.Errorf("language = %q, want en", result.Language)
	}
	if got := translator.Requests[0].SourceLang; got != "en" {
		t.Errorf("source lang = %q, want en", got)
	}
}

func TestPipelineRejectsHallucination(t *testing.T) {
	t.Parallel()

	transcriber := &sttmock.Transcriber{Result: stt.Result{Text: "Thank you.", Language: "en"}}
	translator := &translatemock.Translator{Result: "ありがとう"}
	p := gateway.NewPipeline(transcriber, translator, "en", "ja",
		gateway.WithMetrics(newTestMetrics(t)))

	result, err := p.Process(context.Background(), []byte("wav"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result != nil {
		t.Errorf("rejected transcript should produce no result, got %+v", result)
	}
	if len(translator.Requests) != 0 {
		t.Errorf("translator should not be called for rejected transcripts")
	}
}

func TestPipelineSTTError(t *testing.T) {
	t.Parallel()

	transcriber := &sttmock.Transcriber{Err: context.DeadlineExceeded}
	p := gateway.NewPipeline(transcriber, &translatemock.Translator{}, "en", "ja",
		gateway.WithMetrics(newTestMetrics(t)))

	_, err := p.Process(context.Background(), []byte("wav"))
	if err == nil {
		t.Fatal("expected error from failed transcription")
	}
	if !strings.Contains(err.Error(), "transcribe") {
		t.Errorf("error %q does not mention the stage", err)
	}
}

func TestPipelineTTSFailureDegradesToTextOnly(t *testing.T) {
	t.Parallel()

	transcriber := &sttmock.Transcriber{Result: stt.Result{Text: "a perfectly normal sentence", Language: "en"}}
	translator := &translatemock.Translator{Result: "ein ganz normaler satz"}
	synth := &ttsmock.Synthesizer{Err: context.DeadlineExceeded}
	p := gateway.NewPipeline(transcriber, translator, "en", "de",
		gateway.WithSynthesizer(synth),
		gateway.WithMetrics(newTestMetrics(t)))

	result, err := p.Process(context.Background(), []byte("wav"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result == nil {
		t.Fatal("tts failure must not drop the segment")
	}
	if result.Translation != "ein ganz normaler satz" {
		t.Errorf("translation = %q", result.Translation)
	}
	if result.Audio != nil || result.AudioFormat != "" {
		t.Errorf("audio fields should be empty after synthesis failure")
	}
}

func TestPipelineMP3Passthrough(t *testing.T) {
	t.Parallel()

	transcriber := &sttmock.Transcriber{Result: stt.Result{Text: "a perfectly normal sentence", Language: "en"}}
	translator := &translatemock.Translator{Result: "translated"}
	synth := &ttsmock.Synthesizer{Clip: tts.Clip{Data: []byte{0xFF, 0xFB, 0x01}, Format: tts.FormatMP3}}
	p := gateway.NewPipeline(transcriber, translator, "en", "ja",
		gateway.WithSynthesizer(synth),
		gateway.WithMetrics(newTestMetrics(t)))

	result, err := p.Process(context.Background(), []byte("wav"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.AudioFormat != types.AudioFormatMP3 {
		t.Errorf("audio format = %q, want mp3", result.AudioFormat)
	}
	if len(result.Audio) != 3 {
		t.Errorf("audio = %d bytes, want 3", len(result.Audio))
	}
	if len(synth.Requests) != 1 || synth.Requests[0].Text != "translated" {
		t.Errorf("synthesizer requests = %+v", synth.Requests)
	}
}

func TestPipelinePCMEncodesToOpus(t *testing.T) {
	t.Parallel()

	// One 20 ms frame of mono PCM at 48 kHz.
	pcm := make([]byte, audio.OpusFrameSize(48000)*2)
	transcriber := &sttmock.Transcriber{Result: stt.Result{Text: "a perfectly normal sentence", Language: "en"}}
	translator := &translatemock.Translator{Result: "translated"}
	synth := &ttsmock.Synthesizer{Clip: tts.Clip{
		Data:       pcm,
		Format:     tts.FormatPCM16,
		SampleRate: 48000,
		Channels:   1,
	}}
	p := gateway.NewPipeline(transcriber, translator, "en", "ja",
		gateway.WithSynthesizer(synth),
		gateway.WithMetrics(newTestMetrics(t)))

	result, err := p.Process(context.Background(), []byte("wav"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.AudioFormat != types.AudioFormatOpus {
		t.Fatalf("audio format = %q, want opus", result.AudioFormat)
	}
	if result.SampleRate != 48000 {
		t.Errorf("sample rate = %d, want 48000", result.SampleRate)
	}

	dec, err := audio.NewOpusDecoder(48000, 1)
	if err != nil {
		t.Fatalf("NewOpusDecoder: %v", err)
	}
	decoded, err := dec.DecodeClip(result.Audio)
	if err != nil {
		t.Fatalf("DecodeClip: %v", err)
	}
	if len(decoded) != len(pcm) {
		t.Errorf("decoded %d bytes, want %d", len(decoded), len(pcm))
	}
}
