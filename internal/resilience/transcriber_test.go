package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dragoon4890/siren/pkg/provider/stt"
	sttmock "github.com/dragoon4890/siren/pkg/provider/stt/mock"
	"github.com/dragoon4890/siren/pkg/provider/tts"
	ttsmock "github.com/dragoon4890/siren/pkg/provider/tts/mock"
)

func TestTranscriberFailover(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Transcriber{Err: errors.New("model not loaded")}
	fallback := &sttmock.Transcriber{Result: stt.Result{Text: "hello", Language: "en"}}

	tr := NewTranscriber(primary, "native", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	tr.AddFallback("http", fallback)

	res, err := tr.Transcribe(context.Background(), []byte("wav"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "hello" {
		t.Errorf("Text = %q, want hello", res.Text)
	}
	if primary.CallCount != 1 || fallback.CallCount != 1 {
		t.Errorf("calls primary=%d fallback=%d, want 1/1", primary.CallCount, fallback.CallCount)
	}
}

func TestTranscriberOpenBreakerSkipsPrimary(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Transcriber{Err: errors.New("down")}
	fallback := &sttmock.Transcriber{Result: stt.Result{Text: "ok"}}

	tr := NewTranscriber(primary, "native", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	tr.AddFallback("http", fallback)

	for i := 0; i < 3; i++ {
		if _, err := tr.Transcribe(context.Background(), nil); err != nil {
			t.Fatalf("Transcribe %d: %v", i, err)
		}
	}
	// After two failures the primary's breaker is open, so the third call
	// never reaches it.
	if primary.CallCount != 2 {
		t.Errorf("primary calls = %d, want 2", primary.CallCount)
	}
	if fallback.CallCount != 3 {
		t.Errorf("fallback calls = %d, want 3", fallback.CallCount)
	}
}

func TestTranscriberAllFail(t *testing.T) {
	t.Parallel()

	tr := NewTranscriber(&sttmock.Transcriber{Err: errors.New("down")}, "native", FallbackConfig{})
	_, err := tr.Transcribe(context.Background(), nil)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestSynthesizerFailover(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Synthesizer{Err: errors.New("quota")}
	fallback := &ttsmock.Synthesizer{Clip: tts.Clip{Data: []byte{1}, Format: tts.FormatMP3}}

	s := NewSynthesizer(primary, "soundoftext", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	s.AddFallback("coqui", fallback)

	clip, err := s.Synthesize(context.Background(), tts.Request{Text: "hi", Language: "en"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if clip.Format != tts.FormatMP3 || len(clip.Data) != 1 {
		t.Errorf("clip = %+v, want fallback clip", clip)
	}
}
