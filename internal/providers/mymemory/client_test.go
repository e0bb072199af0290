package mymemory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dualchat/internal/domain"
)

func TestClientTranslate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if r.URL.Path != "/get" || query.Get("q") != "What is cancer?" || query.Get("langpair") != "en|bn" || query.Get("de") != "ops@example.com" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"responseData":{"translatedText":"ক্যান্সার কি?","match":0.98},"responseStatus":200,"responseDetails":""}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "ops@example.com", time.Second)
	got, err := client.Translate(context.Background(), "What is cancer?", domain.LanguageEnglish, domain.LanguageBengali)
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if got != "ক্যান্সার কি?" {
		t.Fatalf("unexpected translation: %q", got)
	}
}

func TestClientTranslateHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, err := NewClient(server.URL, "", time.Second).Translate(context.Background(), "hi", domain.LanguageEnglish, domain.LanguageBengali); err == nil {
		t.Fatalf("expected error for non-2xx status")
	}
}

func TestClientRejectsUnsupportedPair(t *testing.T) {
	t.Parallel()

	if _, err := NewClient("http://unused", "", time.Second).Translate(context.Background(), "hi", "fr", domain.LanguageBengali); err == nil {
		t.Fatalf("expected unsupported pair error")
	}
}

func TestParseEnvelope(t *testing.T) {
	t.Parallel()

	if _, err := parseEnvelope([]byte(`{"responseData":{"translatedText":"QUOTA EXCEEDED"},"responseStatus":"429","responseDetails":"MYMEMORY WARNING"}`)); !errors.Is(err, ErrTranslationRejected) {
		t.Fatalf("expected rejection for string status, got %v", err)
	}
	if _, err := parseEnvelope([]byte(`{"responseStatus":403,"responseDetails":"INVALID LANGUAGE PAIR"}`)); !errors.Is(err, ErrTranslationRejected) {
		t.Fatalf("expected rejection for numeric status, got %v", err)
	}
	if _, err := parseEnvelope([]byte(`<html>`)); err == nil {
		t.Fatalf("expected invalid JSON error")
	}
	if _, err := parseEnvelope([]byte(`{"responseStatus":200}`)); err == nil {
		t.Fatalf("expected missing text error")
	}
	got, err := parseEnvelope([]byte(`{"responseData":{"translatedText":"Hello"},"responseStatus":200}`))
	if err != nil || got != "Hello" {
		t.Fatalf("unexpected parse result: %q %v", got, err)
	}
}
