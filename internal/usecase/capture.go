package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"dualchat/internal/domain"
	"dualchat/internal/metrics"
	"dualchat/internal/ports"
)

var (
	ErrCaptureUnsupported = errors.New("speech capture is not supported on this device")
	ErrPermissionDenied   = errors.New("microphone permission denied")

	errCaptureClosed = errors.New("capture controller is closed")
)

// CaptureController owns the lifecycle of a single speech-to-text session.
type CaptureController struct {
	recognizer  ports.SpeechRecognizer
	permissions ports.PermissionChecker
	draft       *Draft
	notifier    Notifier
	onChange    func(domain.CaptureState)
	logger      *zap.Logger

	mu          sync.Mutex
	state       domain.CaptureState
	languageTag string
	session     ports.RecognitionSession
	watchers    sync.WaitGroup
	starting    bool
	stopPending bool
	closed      bool
}

// NewCaptureController builds a controller. recognizer and permissions may be
// nil when the platform lacks the capability.
func NewCaptureController(
	recognizer ports.SpeechRecognizer,
	permissions ports.PermissionChecker,
	draft *Draft,
	notifier Notifier,
	languageTag string,
	onChange func(domain.CaptureState),
	logger *zap.Logger,
) *CaptureController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaptureController{
		recognizer:  recognizer,
		permissions: permissions,
		draft:       draft,
		notifier:    notifier,
		onChange:    onChange,
		logger:      logger,
		state:       domain.CaptureStateIdle,
		languageTag: languageTag,
	}
}

// Supported reports whether the platform offers speech capture.
func (c *CaptureController) Supported() bool {
	return c.recognizer != nil && c.recognizer.Available()
}

func (c *CaptureController) State() domain.CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetLanguage selects the tag used by the next Start. An in-progress session
// keeps its tag.
func (c *CaptureController) SetLanguage(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.languageTag = tag
}

func (c *CaptureController) LanguageTag() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.languageTag
}

// Start begins a capture session. It is a no-op while already listening or
// starting. The lock is released while the recognizer connects.
func (c *CaptureController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errCaptureClosed
	}
	if c.starting || c.state == domain.CaptureStateListening {
		c.mu.Unlock()
		return nil
	}
	if !c.Supported() {
		c.mu.Unlock()
		c.notify("Voice input unavailable", "Speech recognition is not supported on this device.")
		return ErrCaptureUnsupported
	}
	c.starting = true
	c.stopPending = false
	tag := c.languageTag
	c.mu.Unlock()

	session, err := c.open(ctx, tag)

	c.mu.Lock()
	c.starting = false
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if c.closed || c.stopPending {
		c.mu.Unlock()
		session.Stop()
		go drain(session)
		return nil
	}
	c.session = session
	c.setStateLocked(domain.CaptureStateListening)
	c.watchers.Add(1)
	c.mu.Unlock()

	go c.watch(session)
	return nil
}

// open checks the microphone permission and starts recognition in tag.
func (c *CaptureController) open(ctx context.Context, tag string) (ports.RecognitionSession, error) {
	if c.permissions != nil {
		permission, err := c.permissions.MicrophonePermission(ctx)
		if err != nil {
			c.logger.Debug("permission query failed", zap.Error(err))
		} else if permission == ports.PermissionDenied {
			c.notifyCaptureError(domain.CaptureErrorPermissionDenied, "")
			return nil, ErrPermissionDenied
		}
	}

	session, err := c.recognizer.Start(ctx, tag)
	if err != nil {
		c.logger.Warn("capture start failed", zap.Error(err))
		c.notifyCaptureError(domain.CaptureErrorAudioCaptureUnavailable, err.Error())
		return nil, fmt.Errorf("start capture: %w", err)
	}
	return session, nil
}

// Stop requests the active session to finish. A Stop during start ends the
// session as soon as it opens; otherwise it is a no-op while idle.
func (c *CaptureController) Stop() {
	c.mu.Lock()
	if c.starting {
		c.stopPending = true
		c.mu.Unlock()
		return
	}
	session := c.session
	listening := c.state == domain.CaptureStateListening
	c.mu.Unlock()

	if !listening || session == nil {
		return
	}
	session.Stop()
}

// Close stops any session and detaches its listener.
func (c *CaptureController) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopPending = true
	session := c.session
	c.session = nil
	if c.state != domain.CaptureStateIdle {
		c.setStateLocked(domain.CaptureStateIdle)
	}
	c.mu.Unlock()

	if session != nil {
		session.Stop()
	}
	c.watchers.Wait()
}

func (c *CaptureController) watch(session ports.RecognitionSession) {
	defer c.watchers.Done()

	for event := range session.Events() {
		switch event.Kind {
		case ports.RecognitionResult:
			c.handleResult(session, event.Transcript)
		case ports.RecognitionError:
			c.handleError(session, event.Code, event.Detail)
		case ports.RecognitionEnd:
			c.handleEnd(session)
		}
	}
	c.handleEnd(session)
}

// drain discards the events of a session nobody listens to.
func drain(session ports.RecognitionSession) {
	for range session.Events() {
	}
}

func (c *CaptureController) handleResult(session ports.RecognitionSession, transcript string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != session {
		return
	}
	c.detachLocked()

	transcript = strings.TrimSpace(transcript)
	if transcript != "" {
		c.draft.Append(transcript)
	}
	metrics.CaptureSessionsTotal.WithLabelValues("result").Inc()
}

func (c *CaptureController) handleError(session ports.RecognitionSession, code string, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != session {
		return
	}
	c.detachLocked()

	mapped := MapRecognitionError(code)
	metrics.CaptureSessionsTotal.WithLabelValues(string(mapped)).Inc()
	c.logger.Info("capture failed", zap.String("code", code), zap.String("detail", detail))
	c.notifyCaptureError(mapped, detail)
}

func (c *CaptureController) handleEnd(session ports.RecognitionSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != session {
		return
	}
	c.detachLocked()
	metrics.CaptureSessionsTotal.WithLabelValues("cancelled").Inc()
}

func (c *CaptureController) detachLocked() {
	c.session = nil
	c.setStateLocked(domain.CaptureStateIdle)
}

func (c *CaptureController) setStateLocked(state domain.CaptureState) {
	c.state = state
	if c.onChange != nil {
		c.onChange(state)
	}
}

func (c *CaptureController) notifyCaptureError(code domain.CaptureErrorCode, detail string) {
	title, description := captureErrorMessage(code)
	if code == domain.CaptureErrorOther && detail != "" {
		description = detail
	}
	c.notify(title, description)
}

func (c *CaptureController) notify(title, description string) {
	if c.notifier != nil {
		c.notifier.Notify(title, description, domain.NotificationError)
	}
}

// MapRecognitionError maps a platform error code onto the capture taxonomy.
func MapRecognitionError(code string) domain.CaptureErrorCode {
	switch code {
	case ports.RecognitionCodeNoSpeech:
		return domain.CaptureErrorNoSpeech
	case ports.RecognitionCodeAudioCapture:
		return domain.CaptureErrorAudioCaptureUnavailable
	case ports.RecognitionCodeNotAllowed, "service-not-allowed":
		return domain.CaptureErrorPermissionDenied
	default:
		return domain.CaptureErrorOther
	}
}

func captureErrorMessage(code domain.CaptureErrorCode) (string, string) {
	switch code {
	case domain.CaptureErrorNoSpeech:
		return "No speech detected", "Nothing was heard. Please try again."
	case domain.CaptureErrorAudioCaptureUnavailable:
		return "Microphone unavailable", "Audio capture could not be started."
	case domain.CaptureErrorPermissionDenied:
		return "Microphone blocked", "Allow microphone access to use voice input."
	default:
		return "Voice input error", "Speech recognition failed."
	}
}
