// Package mock provides a test double for the tts.Synthesizer interface.
package mock

import (
	"context"
	"sync"

	"github.com/dragoon4890/siren/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Synthesizer)(nil)

// Synthesizer is a configurable tts.Synthesizer for tests.
type Synthesizer struct {
	mu sync.Mutex

	// Clip is returned by Synthesize when Err is nil.
	Clip tts.Clip

	// Err, when non-nil, is returned by every Synthesize call.
	Err error

	// Requests accumulates every request passed to Synthesize.
	Requests []tts.Request
}

// Synthesize records the call and returns the configured clip.
func (m *Synthesizer) Synthesize(ctx context.Context, req tts.Request) (tts.Clip, error) {
	if err := ctx.Err(); err != nil {
		return tts.Clip{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return tts.Clip{}, m.Err
	}
	return m.Clip, nil
}
