package anyllm

import (
	"testing"

	"github.com/dragoon4890/siren/pkg/provider/translate"
)

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	got := buildPrompt(translate.Request{
		Text:       "good morning",
		SourceLang: "en",
		TargetLang: "ja",
	})
	want := "Translate from en to ja and only include translation as output: good morning"
	if got != want {
		t.Errorf("buildPrompt = %q, want %q", got, want)
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "gemini-2.0-flash"); err == nil {
		t.Error("expected error for empty provider name")
	}
	if _, err := New("gemini", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("smoke-signals", "m"); err == nil {
		t.Error("expected error for unsupported provider")
	}
}
