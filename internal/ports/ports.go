package ports

import (
	"context"
	"io"

	"dualchat/internal/domain"
)

// KnowledgeService answers a question.
type KnowledgeService interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Translator converts text between the two supported languages.
type Translator interface {
	Translate(ctx context.Context, text string, source, target domain.Language) (string, error)
}

// RemoteSpeech synthesizes speech remotely and returns an inline data payload.
type RemoteSpeech interface {
	Configured() bool
	Synthesize(ctx context.Context, text string, lang domain.Language) (string, error)
}

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Available() bool
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	Language       string
	InterimResults bool
}

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental transcription output from a provider.
type TranscriptEvent struct {
	Kind          TranscriptKind
	Text          string
	IsSpeechFinal bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	Available() bool
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// RecognitionEventKind is the kind of event a recognition session fires.
type RecognitionEventKind string

const (
	RecognitionResult RecognitionEventKind = "result"
	RecognitionError  RecognitionEventKind = "error"
	RecognitionEnd    RecognitionEventKind = "end"
)

// Platform recognition error codes.
const (
	RecognitionCodeNoSpeech     = "no-speech"
	RecognitionCodeAudioCapture = "audio-capture"
	RecognitionCodeNotAllowed   = "not-allowed"
	RecognitionCodeNetwork      = "network"
)

// RecognitionEvent is fired by a recognition session. A session fires at most
// one result or error, followed by exactly one end.
type RecognitionEvent struct {
	Kind       RecognitionEventKind
	Transcript string
	Code       string
	Detail     string
}

// RecognitionSession is one activation of the speech-to-text capability.
type RecognitionSession interface {
	Events() <-chan RecognitionEvent
	// Stop asks the session to finish; the end event follows asynchronously.
	Stop()
}

// SpeechRecognizer is the platform speech-to-text capability.
type SpeechRecognizer interface {
	Available() bool
	Start(ctx context.Context, languageTag string) (RecognitionSession, error)
}

// Permission is the answer of a permission query.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionPrompt  Permission = "prompt"
)

// PermissionChecker queries microphone permission where the platform supports it.
type PermissionChecker interface {
	MicrophonePermission(ctx context.Context) (Permission, error)
}

// Voice is one platform synthesis voice.
type Voice struct {
	ID       string
	Name     string
	Language string
}

// Playback is an active audio output.
type Playback interface {
	Done() <-chan struct{}
	// Err reports why playback ended; nil after a normal finish or Stop.
	Err() error
	Stop() error
}

// SpeechSynthesizer is the platform text-to-speech capability.
type SpeechSynthesizer interface {
	Voices() []Voice
	Speak(ctx context.Context, text string, voice Voice, rate float64) (Playback, error)
}

// AudioPlayer plays encoded audio bytes.
type AudioPlayer interface {
	Play(ctx context.Context, audio []byte) (Playback, error)
}

// EventSink emits conversation state to the UI.
type EventSink interface {
	TranscriptChanged(messages []domain.ChatMessage)
	DraftChanged(text string)
	CaptureStateChanged(state domain.CaptureState)
	TurnStateChanged(state domain.TurnState)
	NotificationChanged(notification *domain.Notification)
}
