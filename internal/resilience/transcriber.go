package resilience

import (
	"context"

	"github.com/dragoon4890/siren/pkg/provider/stt"
)

// Transcriber implements [stt.Transcriber] with automatic failover across
// multiple STT backends, typically a native whisper.cpp model as primary and
// an HTTP whisper-server as fallback. Each backend has its own circuit
// breaker.
type Transcriber struct {
	group *FallbackGroup[stt.Transcriber]
}

// Compile-time interface assertion.
var _ stt.Transcriber = (*Transcriber)(nil)

// NewTranscriber creates a [Transcriber] with primary as the preferred
// backend.
func NewTranscriber(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *Transcriber {
	return &Transcriber{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT backend as a fallback.
func (t *Transcriber) AddFallback(name string, backend stt.Transcriber) {
	t.group.AddFallback(name, backend)
}

// Transcribe runs recognition against the first healthy backend.
func (t *Transcriber) Transcribe(ctx context.Context, wav []byte) (stt.Result, error) {
	return ExecuteWithResult(t.group, func(b stt.Transcriber) (stt.Result, error) {
		return b.Transcribe(ctx, wav)
	})
}
