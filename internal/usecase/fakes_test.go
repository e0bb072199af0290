package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"dualchat/internal/domain"
	"dualchat/internal/ports"
)

type fakeKnowledge struct {
	mu        sync.Mutex
	answer    string
	err       error
	block     chan struct{}
	questions []string
}

func (f *fakeKnowledge) Ask(ctx context.Context, question string) (string, error) {
	f.mu.Lock()
	f.questions = append(f.questions, question)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.answer, f.err
}

type translateCall struct {
	text   string
	source domain.Language
	target domain.Language
}

type fakeTranslator struct {
	mu      sync.Mutex
	results map[string]string
	err     error
	panics  bool
	calls   []translateCall
}

func (f *fakeTranslator) Translate(_ context.Context, text string, source, target domain.Language) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, translateCall{text: text, source: source, target: target})
	if f.panics {
		panic("translator exploded")
	}
	if f.err != nil {
		return "", f.err
	}
	if out, ok := f.results[text]; ok {
		return out, nil
	}
	return "translated: " + text, nil
}

func (f *fakeTranslator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type notification struct {
	title       string
	description string
	kind        domain.NotificationKind
}

type fakeNotifier struct {
	mu    sync.Mutex
	items []notification
}

func (f *fakeNotifier) Notify(title, description string, kind domain.NotificationKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, notification{title: title, description: description, kind: kind})
}

func (f *fakeNotifier) all() []notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notification(nil), f.items...)
}

// fakePlayback finishes when finish or Stop is called.
type fakePlayback struct {
	mu        sync.Mutex
	done      chan struct{}
	once      sync.Once
	err       error
	stopCalls int
}

func newFakePlayback() *fakePlayback {
	return &fakePlayback{done: make(chan struct{})}
}

func (p *fakePlayback) Done() <-chan struct{} { return p.done }

func (p *fakePlayback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakePlayback) Stop() error {
	p.mu.Lock()
	p.stopCalls++
	if p.err == nil {
		p.err = context.Canceled
	}
	p.mu.Unlock()
	p.once.Do(func() { close(p.done) })
	return nil
}

func (p *fakePlayback) finish(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	p.once.Do(func() { close(p.done) })
}

func (p *fakePlayback) stopped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopCalls
}

type spokenText struct {
	text  string
	voice ports.Voice
	rate  float64
}

type fakeSynthesizer struct {
	mu        sync.Mutex
	voices    []ports.Voice
	err       error
	playbacks []*fakePlayback
	spoken    []spokenText
}

func (f *fakeSynthesizer) Voices() []ports.Voice { return f.voices }

func (f *fakeSynthesizer) Speak(_ context.Context, text string, voice ports.Voice, rate float64) (ports.Playback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, spokenText{text: text, voice: voice, rate: rate})
	if f.err != nil {
		return nil, f.err
	}
	playback := newFakePlayback()
	f.playbacks = append(f.playbacks, playback)
	return playback, nil
}

func (f *fakeSynthesizer) playback(i int) *fakePlayback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playbacks[i]
}

type fakeRemoteSpeech struct {
	configured bool
	payload    string
	err        error
	calls      int
}

func (f *fakeRemoteSpeech) Configured() bool { return f.configured }

func (f *fakeRemoteSpeech) Synthesize(_ context.Context, _ string, _ domain.Language) (string, error) {
	f.calls++
	return f.payload, f.err
}

type fakePlayer struct {
	mu       sync.Mutex
	played   [][]byte
	err      error
	playback *fakePlayback
}

func (f *fakePlayer) Play(_ context.Context, audio []byte) (ports.Playback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.played = append(f.played, audio)
	f.playback = newFakePlayback()
	return f.playback, nil
}

type fakeRecognitionSession struct {
	events   chan ports.RecognitionEvent
	stopOnce sync.Once
	stopped  chan struct{}
	// onStop, when set, is sent before the channel closes on Stop.
	onStop []ports.RecognitionEvent
}

func newFakeRecognitionSession(onStop ...ports.RecognitionEvent) *fakeRecognitionSession {
	return &fakeRecognitionSession{
		events:  make(chan ports.RecognitionEvent, 4),
		stopped: make(chan struct{}),
		onStop:  onStop,
	}
}

func (s *fakeRecognitionSession) Events() <-chan ports.RecognitionEvent { return s.events }

func (s *fakeRecognitionSession) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
		for _, event := range s.onStop {
			s.events <- event
		}
		s.events <- ports.RecognitionEvent{Kind: ports.RecognitionEnd}
		close(s.events)
	})
}

// emit delivers events and closes the session as the platform would.
func (s *fakeRecognitionSession) emit(events ...ports.RecognitionEvent) {
	s.stopOnce.Do(func() {
		for _, event := range events {
			s.events <- event
		}
		close(s.events)
	})
}

type fakeRecognizer struct {
	mu          sync.Mutex
	unavailable bool
	err         error
	sessions    []*fakeRecognitionSession
	tags        []string

	// entered and release, when set, hold Start open until release is closed.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeRecognizer) Available() bool { return !f.unavailable }

func (f *fakeRecognizer) Start(_ context.Context, tag string) (ports.RecognitionSession, error) {
	if f.release != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags = append(f.tags, tag)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.sessions) == 0 {
		return nil, errors.New("no recognition session configured")
	}
	session := f.sessions[0]
	f.sessions = f.sessions[1:]
	return session, nil
}

func (f *fakeRecognizer) startedTags() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tags...)
}

type fakePermissions struct {
	permission ports.Permission
	err        error
}

func (f fakePermissions) MicrophonePermission(_ context.Context) (ports.Permission, error) {
	return f.permission, f.err
}

type fakeEventSink struct {
	mu            sync.Mutex
	transcripts   [][]domain.ChatMessage
	drafts        []string
	captureStates []domain.CaptureState
	turnStates    []domain.TurnState
	notifications []*domain.Notification
}

func (f *fakeEventSink) TranscriptChanged(messages []domain.ChatMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, messages)
}

func (f *fakeEventSink) DraftChanged(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, text)
}

func (f *fakeEventSink) CaptureStateChanged(state domain.CaptureState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captureStates = append(f.captureStates, state)
}

func (f *fakeEventSink) TurnStateChanged(state domain.TurnState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turnStates = append(f.turnStates, state)
}

func (f *fakeEventSink) NotificationChanged(n *domain.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, n)
}

func (f *fakeEventSink) turns() []domain.TurnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TurnState(nil), f.turnStates...)
}

func (f *fakeEventSink) captures() []domain.CaptureState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.CaptureState(nil), f.captureStates...)
}

// eventually polls cond until it holds or a second passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}
