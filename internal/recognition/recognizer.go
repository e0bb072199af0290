// Package recognition provides the speech-to-text capability on top of a
// microphone capture and a streaming transcription provider.
package recognition

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dualchat/internal/ports"
)

// Config controls capture and streaming for recognition sessions.
type Config struct {
	Audio          ports.AudioConfig
	Streaming      ports.StreamingConfig
	ChunkSize      int
	StreamingGrace time.Duration
	StreamTimeout  time.Duration
}

// StreamingRecognizer implements ports.SpeechRecognizer. Each session is a
// single utterance: it ends on Stop, when the provider marks speech final, or
// when the microphone stream ends.
type StreamingRecognizer struct {
	audio    ports.AudioCapture
	provider ports.TranscriptionProvider
	cfg      Config
	logger   *zap.Logger
}

func NewStreamingRecognizer(
	audio ports.AudioCapture,
	provider ports.TranscriptionProvider,
	cfg Config,
	logger *zap.Logger,
) *StreamingRecognizer {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 4 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamingRecognizer{audio: audio, provider: provider, cfg: cfg, logger: logger}
}

// Available reports whether both the microphone and the provider are usable.
func (r *StreamingRecognizer) Available() bool {
	return r.audio != nil && r.provider != nil && r.audio.Available() && r.provider.Available()
}

// Start opens the provider stream and the microphone for one utterance.
func (r *StreamingRecognizer) Start(ctx context.Context, languageTag string) (ports.RecognitionSession, error) {
	sessionCtx, cancel := context.WithCancel(ctx)

	streamCfg := r.cfg.Streaming
	streamCfg.Language = languageTag
	stream, err := r.provider.StartStreaming(sessionCtx, streamCfg)
	if err != nil {
		cancel()
		return nil, err
	}

	audioSession, err := r.audio.Start(sessionCtx, r.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		return nil, err
	}

	s := &session{
		cancel:        cancel,
		audio:         audioSession,
		stream:        stream,
		transcript:    &utterance{},
		grace:         r.cfg.StreamingGrace,
		streamTimeout: r.cfg.StreamTimeout,
		logger:        r.logger.With(zap.String("language", languageTag)),
		events:        make(chan ports.RecognitionEvent, 2),
		stopCh:        make(chan struct{}),
		speechFinal:   make(chan struct{}),
		eventsDone:    make(chan struct{}),
		audioDone:     make(chan struct{}),
	}

	go collectTranscripts(stream, s.transcript, s.markSpeechFinal, s.eventsDone)
	go func() {
		defer close(s.audioDone)
		if err := forwardAudio(audioSession, stream, r.cfg.ChunkSize); err != nil && !s.stopping.Load() {
			s.setAudioErr(err)
		}
	}()
	go s.run(sessionCtx)

	s.logger.Debug("recognition session started")
	return s, nil
}

type session struct {
	cancel        context.CancelFunc
	audio         ports.AudioSession
	stream        ports.StreamingSession
	transcript    *utterance
	grace         time.Duration
	streamTimeout time.Duration
	logger        *zap.Logger

	events      chan ports.RecognitionEvent
	stopCh      chan struct{}
	stopOnce    sync.Once
	speechFinal chan struct{}
	finalOnce   sync.Once
	eventsDone  chan struct{}
	audioDone   chan struct{}
	stopping    atomic.Bool

	errMu    sync.Mutex
	audioErr error
}

func (s *session) Events() <-chan ports.RecognitionEvent {
	return s.events
}

func (s *session) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *session) markSpeechFinal() {
	s.finalOnce.Do(func() { close(s.speechFinal) })
}

func (s *session) run(ctx context.Context) {
	defer close(s.events)
	defer s.cancel()

	requested := false
	select {
	case <-s.stopCh:
		requested = true
	case <-s.speechFinal:
	case <-s.audioDone:
	case <-ctx.Done():
		s.abort()
		s.events <- ports.RecognitionEvent{Kind: ports.RecognitionEnd}
		return
	}

	s.stopping.Store(true)
	if err := s.audio.Stop(); err != nil {
		s.logger.Debug("audio stop", zap.Error(err))
	}

	if requested && s.grace > 0 {
		timer := time.NewTimer(s.grace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	_ = s.stream.CloseSend()
	streamErr := awaitStream(s.stream, s.streamTimeout)
	<-s.eventsDone
	<-s.audioDone

	if event, ok := s.outcome(requested, streamErr); ok {
		s.events <- event
	}
	s.events <- ports.RecognitionEvent{Kind: ports.RecognitionEnd}
}

// outcome picks the single result or error event, if any, for a finished session.
func (s *session) outcome(requested bool, streamErr error) (ports.RecognitionEvent, bool) {
	if raw := s.transcript.Text(); raw != "" {
		return ports.RecognitionEvent{Kind: ports.RecognitionResult, Transcript: raw}, true
	}
	if err := s.getAudioErr(); err != nil {
		if errors.Is(err, errStreamSend) {
			return ports.RecognitionEvent{Kind: ports.RecognitionError, Code: ports.RecognitionCodeNetwork, Detail: err.Error()}, true
		}
		return ports.RecognitionEvent{Kind: ports.RecognitionError, Code: ports.RecognitionCodeAudioCapture, Detail: err.Error()}, true
	}
	if streamErr != nil {
		return ports.RecognitionEvent{Kind: ports.RecognitionError, Code: ports.RecognitionCodeNetwork, Detail: streamErr.Error()}, true
	}
	if !requested {
		return ports.RecognitionEvent{Kind: ports.RecognitionError, Code: ports.RecognitionCodeNoSpeech}, true
	}
	return ports.RecognitionEvent{}, false
}

func (s *session) abort() {
	s.stopping.Store(true)
	_ = s.audio.Stop()
	_ = s.stream.Close()
	<-s.eventsDone
	<-s.audioDone
}

func (s *session) setAudioErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.audioErr == nil {
		s.audioErr = err
	}
}

func (s *session) getAudioErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.audioErr
}
