// Package transcript post-processes speech-to-text output before it is
// translated. Whisper models hallucinate filler phrases on near-silent audio
// ("Thank you.", broadcast sign-offs picked up from training data); the filter
// drops those so they never reach the translation stage.
package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// defaultSimilarity is the Jaro-Winkler score above which a transcript counts
// as a known hallucination phrase.
const defaultSimilarity = 0.93

// defaultHallucinations are phrases whisper reliably produces on silence or
// background noise. Matched fuzzily so trailing punctuation and small
// transcription variants still hit.
var defaultHallucinations = []string{
	"you",
	"thank you",
	"thanks for watching",
	"MBC뉴스 이덕영입니다",
}

// defaultSubstrings are markers that flag a hallucination anywhere in the
// text, regardless of the overall similarity score.
var defaultSubstrings = []string{
	"MBC뉴스",
}

// Option is a functional option for configuring a [Filter].
type Option func(*Filter)

// WithPhrases replaces the default hallucination phrase list.
func WithPhrases(phrases []string) Option {
	return func(f *Filter) {
		f.phrases = phrases
	}
}

// WithSimilarity sets the Jaro-Winkler similarity threshold for phrase
// matches. Default: 0.93.
func WithSimilarity(threshold float64) Option {
	return func(f *Filter) {
		f.similarity = threshold
	}
}

// Filter decides whether a transcript is real speech or a recognizer
// hallucination. Filter is safe for concurrent use; its state is immutable
// after construction.
type Filter struct {
	phrases    []string
	substrings []string
	similarity float64
}

// NewFilter creates a [Filter] with the default phrase list.
func NewFilter(opts ...Option) *Filter {
	f := &Filter{
		phrases:    defaultHallucinations,
		substrings: defaultSubstrings,
		similarity: defaultSimilarity,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Reject reports whether the transcript should be dropped. Empty and
// whitespace-only transcripts are always rejected.
func (f *Filter) Reject(text string) bool {
	cleaned := normalize(text)
	if cleaned == "" {
		return true
	}
	for _, s := range f.substrings {
		if strings.Contains(text, s) {
			return true
		}
	}
	for _, phrase := range f.phrases {
		if matchr.JaroWinkler(cleaned, normalize(phrase), false) >= f.similarity {
			return true
		}
	}
	return false
}

// normalize lowercases and strips surrounding whitespace and terminal
// punctuation so "Thank you." matches "thank you".
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimRight(s, ".!?,… ")
}

// NormalizeLanguage maps recognizer language quirks to usable BCP-47-ish
// codes. Whisper reports "nn" (Norwegian Nynorsk) for a range of noise inputs;
// downstream voices have no mapping for it, so it falls back to English. Empty
// input also falls back to English.
func NormalizeLanguage(lang string) string {
	switch lang {
	case "", "nn":
		return "en"
	default:
		return lang
	}
}
