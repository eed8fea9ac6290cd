// Package translate defines the Translator interface for text translation
// backends.
//
// Siren translates one transcript at a time, so the interface is a single
// call: source text plus a language pair in, translated text out.
// Implementations must be safe for concurrent use.
package translate

import "context"

// Request is one translation job.
type Request struct {
	// Text is the source-language text.
	Text string

	// SourceLang and TargetLang are language codes (e.g., "en", "ja").
	SourceLang string
	TargetLang string
}

// Translator is the abstraction over any translation backend.
type Translator interface {
	// Translate returns the translation of req.Text into req.TargetLang.
	Translate(ctx context.Context, req Request) (string, error)
}
