package main

import (
	"fmt"
	"io"
	"sync"

	"dualchat/internal/domain"
)

// terminal prints conversation events as plain lines.
type terminal struct {
	mu      sync.Mutex
	out     io.Writer
	printed map[string]bool
	last    string
}

func newTerminal(out io.Writer) *terminal {
	return &terminal{out: out, printed: map[string]bool{}}
}

func (t *terminal) TranscriptChanged(messages []domain.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, msg := range messages {
		if t.printed[msg.ID] {
			continue
		}
		t.printed[msg.ID] = true
		if msg.Role == domain.RoleUser {
			continue
		}
		fmt.Fprintf(t.out, "[%d] bot (%s): %s\n", i+1, msg.Language, msg.Text)
		if msg.TranslatedQuestion != "" {
			fmt.Fprintf(t.out, "    you asked: %s\n", msg.TranslatedQuestion)
		}
	}
}

func (t *terminal) DraftChanged(text string) {
	if text == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "draft: %s  (/send to submit)\n", text)
}

func (t *terminal) CaptureStateChanged(state domain.CaptureState) {
	t.line("capture: " + string(state))
}

func (t *terminal) TurnStateChanged(state domain.TurnState) {
	switch state {
	case domain.TurnStateAwaitingAnswer:
		t.line("thinking...")
	case domain.TurnStateAwaitingTranslation:
		t.line("translating...")
	}
}

func (t *terminal) NotificationChanged(notification *domain.Notification) {
	if notification == nil {
		return
	}
	marker := "i"
	if notification.Kind == domain.NotificationError {
		marker = "!"
	}
	t.line(fmt.Sprintf("%s %s: %s", marker, notification.Title, notification.Description))
}

// line prints text unless it repeats the previous status line.
func (t *terminal) line(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if text == t.last {
		return
	}
	t.last = text
	fmt.Fprintln(t.out, text)
}
