package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dualchat/internal/domain"
	"dualchat/internal/language"
	"dualchat/internal/metrics"
	"dualchat/internal/ports"
)

var (
	ErrTurnInFlight  = errors.New("a question is already being answered")
	ErrEmptyQuestion = errors.New("question is empty")
)

// Config controls conversation behavior.
type Config struct {
	DefaultLanguageTag string
	// TranslateQuestion also renders the user's question in the answer language.
	TranslateQuestion bool
	NotificationTTL   time.Duration
	Speech            SpeechConfig
}

// Collaborators groups the external capabilities the orchestrator drives.
// Any of them may be nil when unavailable.
type Collaborators struct {
	Knowledge    ports.KnowledgeService
	Translator   ports.Translator
	Recognizer   ports.SpeechRecognizer
	Permissions  ports.PermissionChecker
	Synthesizer  ports.SpeechSynthesizer
	RemoteSpeech ports.RemoteSpeech
	Player       ports.AudioPlayer
}

// Orchestrator composes capture, dispatch, translation and speech output into
// conversation turns. Front ends use only its commands and snapshots.
type Orchestrator struct {
	transcript    *TranscriptStore
	draft         *Draft
	notifications *NotificationCenter
	capture       *CaptureController
	dispatcher    *QueryDispatcher
	translation   *TranslationPipeline
	speech        *SpeechOutputSelector
	events        ports.EventSink
	cfg           Config
	logger        *zap.Logger

	mu          sync.Mutex
	turn        domain.TurnState
	selectedTag string
}

func NewOrchestrator(collab Collaborators, events ports.EventSink, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = noopEventSink{}
	}
	tag, err := language.Canonical(cfg.DefaultLanguageTag)
	if err != nil {
		tag = "en-US"
	}

	o := &Orchestrator{
		events:      events,
		cfg:         cfg,
		logger:      logger,
		turn:        domain.TurnStateIdle,
		selectedTag: tag,
	}
	o.transcript = NewTranscriptStore(events.TranscriptChanged)
	o.draft = NewDraft(events.DraftChanged)
	o.notifications = NewNotificationCenter(cfg.NotificationTTL, events.NotificationChanged, logger.Named("notifications"))
	o.capture = NewCaptureController(
		collab.Recognizer,
		collab.Permissions,
		o.draft,
		o.notifications,
		tag,
		events.CaptureStateChanged,
		logger.Named("capture"),
	)
	o.dispatcher = NewQueryDispatcher(collab.Knowledge, logger.Named("knowledge"))
	o.translation = NewTranslationPipeline(collab.Translator, logger.Named("translation"))
	o.speech = NewSpeechOutputSelector(
		o.transcript,
		collab.Synthesizer,
		collab.RemoteSpeech,
		collab.Player,
		o.notifications,
		cfg.Speech,
		logger.Named("speech"),
	)
	return o
}

// SetDraft replaces the pending question.
func (o *Orchestrator) SetDraft(text string) {
	o.draft.Set(text)
}

// SubmitQuestion runs one turn for the pending question and returns the bot
// message appended at its end.
func (o *Orchestrator) SubmitQuestion(ctx context.Context) (domain.ChatMessage, error) {
	started := time.Now()

	o.mu.Lock()
	if o.turn != domain.TurnStateIdle {
		o.mu.Unlock()
		return domain.ChatMessage{}, ErrTurnInFlight
	}
	if strings.TrimSpace(o.draft.Text()) == "" {
		o.mu.Unlock()
		return domain.ChatMessage{}, ErrEmptyQuestion
	}
	question := o.draft.Take()
	questionLang := language.Detect(question)
	o.transcript.Append(domain.ChatMessage{
		Role:     domain.RoleUser,
		Text:     question,
		Language: questionLang,
	})
	o.setTurnLocked(domain.TurnStateAwaitingAnswer)
	o.mu.Unlock()

	defer o.setTurn(domain.TurnStateIdle)

	o.logger.Debug("turn started", zap.String("language", string(questionLang)))
	answer := o.dispatcher.Ask(ctx, question)
	metrics.TurnDuration.WithLabelValues("answer").Observe(float64(time.Since(started).Milliseconds()))

	o.setTurn(domain.TurnStateAwaitingTranslation)
	answerLang := questionLang.Opposite()
	apology := answer == ApologyAnswer
	translatedAnswer, translatedQuestion := o.translateTurn(ctx, answer, question, answerLang, !apology)

	bot := o.transcript.Append(domain.ChatMessage{
		Role:               domain.RoleBot,
		Text:               translatedAnswer,
		Language:           answerLang,
		OriginalQuestion:   question,
		TranslatedQuestion: translatedQuestion,
		QuestionLanguage:   questionLang,
	})

	outcome := "answered"
	if apology {
		outcome = "apology"
	}
	metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	metrics.TurnDuration.WithLabelValues("total").Observe(float64(time.Since(started).Milliseconds()))
	return bot, nil
}

// translateTurn translates the answer and, when enabled, the question
// concurrently. Both settle before it returns. The apology is inserted as is.
func (o *Orchestrator) translateTurn(ctx context.Context, answer, question string, target domain.Language, translateAnswer bool) (string, string) {
	translatedAnswer, translatedQuestion := answer, ""

	var group errgroup.Group
	if translateAnswer {
		group.Go(func() error {
			translatedAnswer = o.translation.Translate(ctx, answer, target)
			return nil
		})
	}
	if o.cfg.TranslateQuestion {
		group.Go(func() error {
			translatedQuestion = o.translation.Translate(ctx, question, target)
			return nil
		})
	}
	_ = group.Wait()

	return translatedAnswer, translatedQuestion
}

// StartCapture begins voice input in the selected language.
func (o *Orchestrator) StartCapture(ctx context.Context) error {
	return o.capture.Start(ctx)
}

// StopCapture ends voice input; the recognized text lands in the draft.
func (o *Orchestrator) StopCapture() {
	o.capture.Stop()
}

// Speak plays the given transcript entry aloud.
func (o *Orchestrator) Speak(ctx context.Context, messageID string) error {
	return o.speech.Speak(ctx, messageID)
}

// StopSpeaking cancels the active playback.
func (o *Orchestrator) StopSpeaking() {
	o.speech.Stop()
}

func (o *Orchestrator) DismissNotification() {
	o.notifications.Dismiss()
}

// SetLanguage selects the recognition language tag (e.g. "bn-BD").
func (o *Orchestrator) SetLanguage(tag string) error {
	canonical, err := language.Canonical(tag)
	if err != nil {
		o.notifications.Notify("Unsupported language", fmt.Sprintf("%q is not a supported language.", tag), domain.NotificationError)
		return err
	}

	o.mu.Lock()
	o.selectedTag = canonical
	o.mu.Unlock()

	o.capture.SetLanguage(canonical)
	return nil
}

// Snapshot returns a read-only view of the conversation state.
func (o *Orchestrator) Snapshot() domain.Snapshot {
	o.mu.Lock()
	turn := o.turn
	tag := o.selectedTag
	o.mu.Unlock()

	snapshot := domain.Snapshot{
		Messages:         o.transcript.Messages(),
		Draft:            o.draft.Text(),
		Capture:          o.capture.State(),
		CaptureSupported: o.capture.Supported(),
		Turn:             turn,
		Loading:          turn != domain.TurnStateIdle,
		Translating:      o.translation.Translating(),
		SelectedLanguage: tag,
		SpeakingID:       o.transcript.SpeakingID(),
	}
	if n, ok := o.notifications.Current(); ok {
		snapshot.Notification = &n
	}
	return snapshot
}

// Notify surfaces a notification on behalf of outer layers.
func (o *Orchestrator) Notify(title, description string, kind domain.NotificationKind) {
	o.notifications.Notify(title, description, kind)
}

// Close stops capture and playback and cancels pending notification expiry.
func (o *Orchestrator) Close() {
	o.capture.Close()
	o.speech.Stop()
	o.notifications.Close()
}

func (o *Orchestrator) setTurn(state domain.TurnState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setTurnLocked(state)
}

func (o *Orchestrator) setTurnLocked(state domain.TurnState) {
	o.turn = state
	o.events.TurnStateChanged(state)
}

type noopEventSink struct{}

func (noopEventSink) TranscriptChanged(_ []domain.ChatMessage)   {}
func (noopEventSink) DraftChanged(_ string)                      {}
func (noopEventSink) CaptureStateChanged(_ domain.CaptureState)  {}
func (noopEventSink) TurnStateChanged(_ domain.TurnState)        {}
func (noopEventSink) NotificationChanged(_ *domain.Notification) {}
