package domain

import "time"

// Language is one of the two supported conversation languages.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageBengali Language = "bn"
)

// DefaultLanguage is used whenever text carries no second-language script.
const DefaultLanguage = LanguageEnglish

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	return l == LanguageEnglish || l == LanguageBengali
}

// Opposite returns the other supported language.
func (l Language) Opposite() Language {
	if l == LanguageBengali {
		return LanguageEnglish
	}
	return LanguageBengali
}

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// ChatMessage is one transcript entry.
type ChatMessage struct {
	ID       string   `json:"id"`
	Role     Role     `json:"role"`
	Text     string   `json:"text"`
	Language Language `json:"language"`

	// Bot messages only.
	OriginalQuestion   string   `json:"originalQuestion,omitempty"`
	TranslatedQuestion string   `json:"translatedQuestion,omitempty"`
	QuestionLanguage   Language `json:"questionLanguage,omitempty"`

	Speaking  bool      `json:"speaking"`
	CreatedAt time.Time `json:"createdAt"`
}

// CaptureState models the speech-to-text session lifecycle.
type CaptureState string

const (
	CaptureStateIdle      CaptureState = "idle"
	CaptureStateListening CaptureState = "listening"
)

// TurnState models one question/answer turn.
type TurnState string

const (
	TurnStateIdle                TurnState = "idle"
	TurnStateAwaitingAnswer      TurnState = "awaiting_answer"
	TurnStateAwaitingTranslation TurnState = "awaiting_translation"
)

// CaptureErrorCode classifies a failed capture session.
type CaptureErrorCode string

const (
	CaptureErrorNoSpeech                CaptureErrorCode = "no_speech"
	CaptureErrorAudioCaptureUnavailable CaptureErrorCode = "audio_capture_unavailable"
	CaptureErrorPermissionDenied        CaptureErrorCode = "permission_denied"
	CaptureErrorOther                   CaptureErrorCode = "other"
)

// ErrorCode identifies the class of a surfaced, non-fatal failure.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeCapture       ErrorCode = "capture"
	ErrorCodeConfiguration ErrorCode = "configuration"
	ErrorCodeUnsupported   ErrorCode = "unsupported"
)

// NotificationKind controls how a notification is rendered.
type NotificationKind string

const (
	NotificationInfo  NotificationKind = "info"
	NotificationError NotificationKind = "error"
)

// Notification is the single active user-facing alert.
type Notification struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Kind        NotificationKind `json:"kind"`
	ExpiresAt   time.Time        `json:"expiresAt"`
}

// Snapshot is a read-only view of the conversation for front ends.
type Snapshot struct {
	Messages         []ChatMessage `json:"messages"`
	Draft            string        `json:"draft"`
	Capture          CaptureState  `json:"capture"`
	CaptureSupported bool          `json:"captureSupported"`
	Turn             TurnState     `json:"turn"`
	Loading          bool          `json:"loading"`
	Translating      bool          `json:"translating"`
	SelectedLanguage string        `json:"selectedLanguage"`
	SpeakingID       string        `json:"speakingId,omitempty"`
	Notification     *Notification `json:"notification,omitempty"`
}
