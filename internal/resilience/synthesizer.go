package resilience

import (
	"context"

	"github.com/dragoon4890/siren/pkg/provider/tts"
)

// Synthesizer implements [tts.Synthesizer] with automatic failover across
// multiple TTS backends, e.g. Sound of Text as primary and a local Coqui
// server as fallback. Each backend has its own circuit breaker.
type Synthesizer struct {
	group *FallbackGroup[tts.Synthesizer]
}

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Synthesizer)(nil)

// NewSynthesizer creates a [Synthesizer] with primary as the preferred
// backend.
func NewSynthesizer(primary tts.Synthesizer, primaryName string, cfg FallbackConfig) *Synthesizer {
	return &Synthesizer{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS backend as a fallback.
func (s *Synthesizer) AddFallback(name string, backend tts.Synthesizer) {
	s.group.AddFallback(name, backend)
}

// Synthesize renders the request against the first healthy backend.
func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) (tts.Clip, error) {
	return ExecuteWithResult(s.group, func(b tts.Synthesizer) (tts.Clip, error) {
		return b.Synthesize(ctx, req)
	})
}
