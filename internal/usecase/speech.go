package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"dualchat/internal/domain"
	"dualchat/internal/language"
	"dualchat/internal/metrics"
	"dualchat/internal/ports"
)

// AudioPayloadPrefix marks a successful remote speech payload.
const AudioPayloadPrefix = "data:audio/mpeg;base64,"

const defaultSpeechRate = 0.9

var (
	ErrUnknownMessage      = errors.New("unknown message")
	ErrMissingAudioPrefix  = errors.New("remote speech payload is missing the audio prefix")
	ErrEmptyAudioPayload   = errors.New("remote speech payload is empty")
	errSpeechNotConfigured = errors.New("remote speech provider is not configured")
)

// SpeechConfig controls provider selection.
type SpeechConfig struct {
	// Rate is relative to normal speed; values <= 0 use 0.9.
	Rate float64
	// RemoteLanguage is the only language eligible for the remote provider.
	RemoteLanguage domain.Language
}

type activePlayback struct {
	seq       uint64
	messageID string
	provider  string
	cancel    context.CancelFunc
	playback  ports.Playback
}

// SpeechOutputSelector picks a speech provider per message and keeps at most
// one playback active.
type SpeechOutputSelector struct {
	transcript *TranscriptStore
	synth      ports.SpeechSynthesizer
	remote     ports.RemoteSpeech
	player     ports.AudioPlayer
	notifier   Notifier
	cfg        SpeechConfig
	logger     *zap.Logger

	mu     sync.Mutex
	seq    uint64
	active *activePlayback
}

func NewSpeechOutputSelector(
	transcript *TranscriptStore,
	synth ports.SpeechSynthesizer,
	remote ports.RemoteSpeech,
	player ports.AudioPlayer,
	notifier Notifier,
	cfg SpeechConfig,
	logger *zap.Logger,
) *SpeechOutputSelector {
	if cfg.Rate <= 0 {
		cfg.Rate = defaultSpeechRate
	}
	if !cfg.RemoteLanguage.Valid() {
		cfg.RemoteLanguage = domain.DefaultLanguage.Opposite()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpeechOutputSelector{
		transcript: transcript,
		synth:      synth,
		remote:     remote,
		player:     player,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger,
	}
}

// Speak cancels any active playback and speaks the given message.
func (s *SpeechOutputSelector) Speak(ctx context.Context, messageID string) error {
	msg, ok := s.transcript.Get(messageID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMessage, messageID)
	}

	playCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancelLocked()
	s.seq++
	seq := s.seq
	s.active = &activePlayback{seq: seq, messageID: msg.ID, cancel: cancel}
	s.transcript.MarkSpeaking(msg.ID)
	s.mu.Unlock()

	if voice, ok := s.voiceFor(msg.Language); ok {
		s.speakPlatform(playCtx, seq, msg, voice)
		return nil
	}
	if msg.Language == s.cfg.RemoteLanguage {
		s.speakRemote(playCtx, seq, msg)
		return nil
	}

	metrics.SpeechRequestsTotal.WithLabelValues("none").Inc()
	s.finish(seq, nil)
	s.notify("Speech unavailable", fmt.Sprintf("No voice is available for %s.", languageName(msg.Language)))
	return nil
}

// Stop cancels the active playback, if any.
func (s *SpeechOutputSelector) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// ActiveMessage returns the id of the message being spoken, or "".
func (s *SpeechOutputSelector) ActiveMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ""
	}
	return s.active.messageID
}

func (s *SpeechOutputSelector) speakPlatform(ctx context.Context, seq uint64, msg domain.ChatMessage, voice ports.Voice) {
	metrics.SpeechRequestsTotal.WithLabelValues("platform").Inc()
	playback, err := s.synth.Speak(ctx, msg.Text, voice, s.cfg.Rate)
	if err != nil {
		s.fail(seq, "Speech failed", err)
		return
	}
	s.attach(seq, "platform", playback)
}

func (s *SpeechOutputSelector) speakRemote(ctx context.Context, seq uint64, msg domain.ChatMessage) {
	metrics.SpeechRequestsTotal.WithLabelValues("remote").Inc()
	if s.remote == nil || !s.remote.Configured() || s.player == nil {
		s.logger.Warn("remote speech skipped", zap.Error(errSpeechNotConfigured))
		if s.finish(seq, nil) {
			s.notify("Speech not configured", "Remote speech for "+languageName(msg.Language)+" needs an API key.")
		}
		return
	}

	payload, err := s.remote.Synthesize(ctx, msg.Text, msg.Language)
	if err != nil {
		metrics.CollaboratorFailuresTotal.WithLabelValues("remote_speech").Inc()
		s.fail(seq, "Speech failed", err)
		return
	}
	audio, err := DecodeAudioPayload(payload)
	if err != nil {
		metrics.CollaboratorFailuresTotal.WithLabelValues("remote_speech").Inc()
		s.fail(seq, "Speech failed", err)
		return
	}

	playback, err := s.player.Play(ctx, audio)
	if err != nil {
		s.fail(seq, "Playback failed", err)
		return
	}
	s.attach(seq, "remote", playback)
}

// attach records playback as active unless a newer request superseded it.
func (s *SpeechOutputSelector) attach(seq uint64, provider string, playback ports.Playback) {
	s.mu.Lock()
	if s.active == nil || s.active.seq != seq {
		s.mu.Unlock()
		_ = playback.Stop()
		return
	}
	s.active.playback = playback
	s.active.provider = provider
	s.mu.Unlock()

	go func() {
		<-playback.Done()
		if err := playback.Err(); err != nil {
			s.fail(seq, "Speech failed", err)
			return
		}
		s.finish(seq, nil)
	}()
}

// fail finishes seq and notifies, unless seq was already superseded or cancelled.
func (s *SpeechOutputSelector) fail(seq uint64, title string, err error) {
	if !s.finish(seq, err) {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	s.notify(title, err.Error())
}

// finish clears the speaking flag for seq. It reports whether seq was still
// the active request.
func (s *SpeechOutputSelector) finish(seq uint64, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.seq != seq {
		return false
	}
	if err != nil {
		s.logger.Warn("speech output failed",
			zap.String("message", s.active.messageID),
			zap.String("provider", s.active.provider),
			zap.Error(err),
		)
	}
	s.active.cancel()
	s.transcript.ClearSpeaking(s.active.messageID)
	s.active = nil
	return true
}

func (s *SpeechOutputSelector) cancelLocked() {
	if s.active == nil {
		return
	}
	prev := s.active
	s.active = nil
	prev.cancel()
	if prev.playback != nil {
		if err := prev.playback.Stop(); err != nil {
			s.logger.Debug("stop playback", zap.Error(err))
		}
	}
	s.transcript.ClearSpeaking(prev.messageID)
}

func (s *SpeechOutputSelector) voiceFor(lang domain.Language) (ports.Voice, bool) {
	if s.synth == nil {
		return ports.Voice{}, false
	}
	return lo.Find(s.synth.Voices(), func(v ports.Voice) bool {
		return language.Matches(v.Language, lang)
	})
}

func (s *SpeechOutputSelector) notify(title, description string) {
	if s.notifier != nil {
		s.notifier.Notify(title, description, domain.NotificationError)
	}
}

// DecodeAudioPayload decodes a "data:audio/mpeg;base64," payload.
func DecodeAudioPayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, AudioPayloadPrefix) {
		return nil, ErrMissingAudioPrefix
	}
	encoded := strings.TrimPrefix(payload, AudioPayloadPrefix)
	if encoded == "" {
		return nil, ErrEmptyAudioPayload
	}
	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode remote speech payload: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudioPayload
	}
	return audio, nil
}

func languageName(lang domain.Language) string {
	switch lang {
	case domain.LanguageBengali:
		return "Bengali"
	case domain.LanguageEnglish:
		return "English"
	default:
		return string(lang)
	}
}
