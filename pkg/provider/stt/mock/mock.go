// Package mock provides a test double for the stt.Transcriber interface.
package mock

import (
	"context"
	"sync"

	"github.com/dragoon4890/siren/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Transcriber = (*Transcriber)(nil)

// Transcriber is a configurable stt.Transcriber for tests. The zero value
// returns an empty result for every call.
type Transcriber struct {
	mu sync.Mutex

	// Result is returned by Transcribe when Err is nil.
	Result stt.Result

	// Err, when non-nil, is returned by every Transcribe call.
	Err error

	// Received accumulates the WAV payloads passed to Transcribe.
	Received [][]byte

	// CallCount is the number of Transcribe invocations.
	CallCount int
}

// Transcribe records the call and returns the configured result.
func (m *Transcriber) Transcribe(ctx context.Context, wav []byte) (stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return stt.Result{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	m.Received = append(m.Received, wav)
	if m.Err != nil {
		return stt.Result{}, m.Err
	}
	return m.Result, nil
}
