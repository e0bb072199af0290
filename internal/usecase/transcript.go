package usecase

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"dualchat/internal/domain"
)

// TranscriptStore is the append-only, ordered log of exchanged messages.
// Speaking is the only field mutated after append.
type TranscriptStore struct {
	mu       sync.RWMutex
	messages []domain.ChatMessage
	index    map[string]int
	now      func() time.Time
	onChange func([]domain.ChatMessage)
}

func NewTranscriptStore(onChange func([]domain.ChatMessage)) *TranscriptStore {
	return &TranscriptStore{
		index:    make(map[string]int),
		now:      time.Now,
		onChange: onChange,
	}
}

// Append stores msg at the end of the transcript and returns the stored copy.
func (s *TranscriptStore) Append(msg domain.ChatMessage) domain.ChatMessage {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.Speaking = false

	s.mu.Lock()
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return msg
}

// MarkSpeaking sets id speaking and clears every other entry in one update.
func (s *TranscriptStore) MarkSpeaking(id string) bool {
	s.mu.Lock()
	target, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	for i := range s.messages {
		s.messages[i].Speaking = i == target
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return true
}

// ClearSpeaking clears the speaking flag of id, if set.
func (s *TranscriptStore) ClearSpeaking(id string) {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok || !s.messages[i].Speaking {
		s.mu.Unlock()
		return
	}
	s.messages[i].Speaking = false
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot)
}

func (s *TranscriptStore) Get(id string) (domain.ChatMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.ChatMessage{}, false
	}
	return s.messages[i], true
}

// SpeakingID returns the id of the speaking message, or "".
func (s *TranscriptStore) SpeakingID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := lo.Find(s.messages, func(m domain.ChatMessage) bool { return m.Speaking })
	if !ok {
		return ""
	}
	return msg.ID
}

func (s *TranscriptStore) Messages() []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *TranscriptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *TranscriptStore) snapshotLocked() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *TranscriptStore) notify(snapshot []domain.ChatMessage) {
	if s.onChange != nil {
		s.onChange(snapshot)
	}
}
