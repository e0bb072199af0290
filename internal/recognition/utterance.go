package recognition

import (
	"strings"
	"sync"

	"dualchat/internal/ports"
)

// utterance accumulates the provider's transcript segments for one session.
type utterance struct {
	mu       sync.Mutex
	segments []string
	latest   string
}

func (u *utterance) Add(event ports.TranscriptEvent) {
	text := strings.TrimSpace(event.Text)
	if text == "" {
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.latest = text
	if event.Kind == ports.TranscriptKindFinal {
		u.segments = append(u.segments, text)
	}
}

// Text joins final segments, falling back to the latest partial when nothing
// was finalized or the partial ran past the finals.
func (u *utterance) Text() string {
	u.mu.Lock()
	defer u.mu.Unlock()

	final := strings.TrimSpace(strings.Join(u.segments, " "))
	switch {
	case final == "":
		return u.latest
	case u.latest == "", strings.HasSuffix(final, u.latest):
		return final
	case len(u.latest) > len(final):
		return final + " " + u.latest
	default:
		return final
	}
}

// collectTranscripts drains stream into u and calls onSpeechFinal whenever the
// provider marks the end of speech. done is closed when the stream's events end.
func collectTranscripts(stream ports.StreamingSession, u *utterance, onSpeechFinal func(), done chan<- struct{}) {
	defer close(done)

	for event := range stream.Events() {
		u.Add(event)
		if event.Kind == ports.TranscriptKindFinal && event.IsSpeechFinal && strings.TrimSpace(event.Text) != "" {
			onSpeechFinal()
		}
	}
}
