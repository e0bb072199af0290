package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"dualchat/internal/bootstrap"
	"dualchat/internal/config"
	"dualchat/internal/domain"
	"dualchat/internal/language"
	"dualchat/internal/usecase"
)

const (
	eventTranscript   = "dualchat:transcript"
	eventDraft        = "dualchat:draft"
	eventCapture      = "dualchat:capture"
	eventTurn         = "dualchat:turn"
	eventNotification = "dualchat:notification"
	eventError        = "dualchat:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	orchestrator *usecase.Orchestrator
	services     bootstrap.Services
	bootErr      error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, a)
	if err != nil {
		a.bootErr = err
		code := domain.ErrorCodeStartup
		if errors.Is(err, config.ErrInvalidConfig) {
			code = domain.ErrorCodeConfiguration
		}
		a.SessionError(code, err.Error())
		return
	}

	a.services = services
	a.orchestrator = services.Orchestrator
	if err := services.Start(); err != nil {
		services.Logger.Warn("diagnostics listener failed", zap.Error(err))
	}
	a.CaptureStateChanged(domain.CaptureStateIdle)
}

func (a *App) shutdown(_ context.Context) {
	if a.orchestrator == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = a.services.Close(ctx)
}

// SetDraft mirrors the text field into the conversation draft.
func (a *App) SetDraft(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.orchestrator.SetDraft(text)
	return nil
}

// SubmitQuestion runs one turn and returns the bot reply.
func (a *App) SubmitQuestion() (domain.ChatMessage, error) {
	if err := a.requireReady(); err != nil {
		return domain.ChatMessage{}, err
	}
	return a.orchestrator.SubmitQuestion(a.ctx)
}

// StartCapture starts voice input in the selected language.
func (a *App) StartCapture() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.orchestrator.StartCapture(a.ctx); err != nil {
		a.SessionError(errorCodeFor(err), err.Error())
		return err
	}
	return nil
}

// StopCapture stops voice input.
func (a *App) StopCapture() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.orchestrator.StopCapture()
	return nil
}

// Speak plays a transcript entry aloud.
func (a *App) Speak(messageID string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.orchestrator.Speak(a.ctx, messageID)
}

// StopSpeaking cancels playback.
func (a *App) StopSpeaking() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.orchestrator.StopSpeaking()
	return nil
}

// DismissNotification clears the visible notification.
func (a *App) DismissNotification() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.orchestrator.DismissNotification()
	return nil
}

// SetLanguage selects the recognition language tag.
func (a *App) SetLanguage(tag string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.orchestrator.SetLanguage(tag); err != nil {
		a.SessionError(errorCodeFor(err), err.Error())
		return err
	}
	return nil
}

// GetSnapshot returns the full conversation state.
func (a *App) GetSnapshot() domain.Snapshot {
	if a.orchestrator == nil {
		snapshot := domain.Snapshot{
			Capture:          domain.CaptureStateIdle,
			Turn:             domain.TurnStateIdle,
			SelectedLanguage: "en-US",
		}
		if a.bootErr != nil {
			snapshot.Notification = &domain.Notification{
				Title:       errorMessage(domain.ErrorCodeStartup, ""),
				Description: a.bootErr.Error(),
				Kind:        domain.NotificationError,
			}
		}
		return snapshot
	}
	return a.orchestrator.Snapshot()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if a.orchestrator == nil {
		return map[string]string{}
	}
	return a.services.Config.RuntimeInfo()
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.orchestrator == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// TranscriptChanged emits the full transcript to the frontend.
func (a *App) TranscriptChanged(messages []domain.ChatMessage) {
	a.emit(eventTranscript, map[string]any{"messages": messages})
}

func (a *App) DraftChanged(text string) {
	a.emit(eventDraft, map[string]string{"text": text})
}

func (a *App) CaptureStateChanged(state domain.CaptureState) {
	a.emit(eventCapture, map[string]string{"state": string(state)})
}

func (a *App) TurnStateChanged(state domain.TurnState) {
	a.emit(eventTurn, map[string]any{
		"state":   string(state),
		"loading": state != domain.TurnStateIdle,
	})
}

// NotificationChanged emits the visible notification; nil clears it.
func (a *App) NotificationChanged(notification *domain.Notification) {
	a.emit(eventNotification, map[string]any{"notification": notification})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.emit(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (a *App) emit(name string, payload any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, name, payload)
}

func errorCodeFor(err error) domain.ErrorCode {
	switch {
	case errors.Is(err, usecase.ErrCaptureUnsupported), errors.Is(err, language.ErrUnsupportedLanguage):
		return domain.ErrorCodeUnsupported
	case errors.Is(err, usecase.ErrPermissionDenied):
		return domain.ErrorCodeCapture
	case errors.Is(err, config.ErrInvalidConfig):
		return domain.ErrorCodeConfiguration
	default:
		return domain.ErrorCodeCapture
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCapture:
		return "Voice input failed"
	case domain.ErrorCodeConfiguration:
		return "Configuration error"
	case domain.ErrorCodeUnsupported:
		return "Not supported"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
