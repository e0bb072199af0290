package usecase

import (
	"context"
	"errors"
	"testing"

	"dualchat/internal/domain"
)

func TestTranslationPipelineUsesOppositeSource(t *testing.T) {
	t.Parallel()

	translator := &fakeTranslator{results: map[string]string{"Cancer is a disease.": " ক্যান্সার একটি রোগ। "}}
	pipeline := NewTranslationPipeline(translator, nil)

	got := pipeline.Translate(context.Background(), "Cancer is a disease.", domain.LanguageBengali)
	if got != "ক্যান্সার একটি রোগ।" {
		t.Fatalf("unexpected translation: %q", got)
	}
	call := translator.calls[0]
	if call.source != domain.LanguageEnglish || call.target != domain.LanguageBengali {
		t.Fatalf("unexpected language pair: %+v", call)
	}
	if pipeline.Translating() {
		t.Fatalf("expected no translation in flight")
	}
}

func TestTranslationPipelineDegrades(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		translator *fakeTranslator
		text       string
		want       string
	}{
		"error": {
			translator: &fakeTranslator{err: errors.New("quota exceeded")},
			text:       "Hello",
			want:       "Hello [translation unavailable]",
		},
		"empty result": {
			translator: &fakeTranslator{results: map[string]string{"Hello": "  "}},
			text:       "Hello",
			want:       "Hello [translation unavailable]",
		},
		"panic": {
			translator: &fakeTranslator{panics: true},
			text:       "Hello",
			want:       "Hello [translation unavailable]",
		},
		"empty text": {
			translator: &fakeTranslator{},
			text:       "",
			want:       "[translation unavailable]",
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			pipeline := NewTranslationPipeline(tc.translator, nil)
			if got := pipeline.Translate(context.Background(), tc.text, domain.LanguageBengali); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
			if pipeline.Translating() {
				t.Fatalf("expected in-flight counter to be released")
			}
		})
	}
}

func TestTranslationPipelineWithoutTranslator(t *testing.T) {
	t.Parallel()

	pipeline := NewTranslationPipeline(nil, nil)
	if got := pipeline.Translate(context.Background(), "নমস্কার", domain.LanguageEnglish); got != "নমস্কার [translation unavailable]" {
		t.Fatalf("unexpected result: %q", got)
	}
}
