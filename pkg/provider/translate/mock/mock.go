// Package mock provides a test double for the translate.Translator interface.
package mock

import (
	"context"
	"sync"

	"github.com/dragoon4890/siren/pkg/provider/translate"
)

// Compile-time interface assertion.
var _ translate.Translator = (*Translator)(nil)

// Translator is a configurable translate.Translator for tests.
type Translator struct {
	mu sync.Mutex

	// Result is returned by Translate when Err is nil and Fn is nil.
	Result string

	// Err, when non-nil, is returned by every Translate call.
	Err error

	// Fn, when non-nil, computes the translation from the request.
	Fn func(translate.Request) string

	// Requests accumulates every request passed to Translate.
	Requests []translate.Request
}

// Translate records the call and returns the configured translation.
func (m *Translator) Translate(ctx context.Context, req translate.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	if m.Fn != nil {
		return m.Fn(req), nil
	}
	return m.Result, nil
}
