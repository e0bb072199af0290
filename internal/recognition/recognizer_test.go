package recognition

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"dualchat/internal/ports"
)

func TestRecognizerStopEmitsResultThenEnd(t *testing.T) {
	t.Parallel()

	stream := newFakeStreamingSession()
	stream.events <- ports.TranscriptEvent{Kind: ports.TranscriptKindPartial, Text: "hello"}
	stream.events <- ports.TranscriptEvent{Kind: ports.TranscriptKindFinal, Text: "hello world"}
	audio := newFakeAudioSession([]byte("abc"))
	provider := &fakeProvider{sessions: []ports.StreamingSession{stream}}

	recognizer := NewStreamingRecognizer(&fakeAudioCapture{sessions: []ports.AudioSession{audio}}, provider, Config{}, nil)
	session, err := recognizer.Start(context.Background(), "bn-BD")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if provider.lastCfg.Language != "bn-BD" {
		t.Fatalf("expected session language to be forwarded, got %q", provider.lastCfg.Language)
	}

	waitForChunk(t, stream)
	session.Stop()
	events := collect(t, session)

	if len(events) != 2 {
		t.Fatalf("expected result and end, got %+v", events)
	}
	if events[0].Kind != ports.RecognitionResult || events[0].Transcript != "hello world" {
		t.Fatalf("unexpected result event: %+v", events[0])
	}
	if events[1].Kind != ports.RecognitionEnd {
		t.Fatalf("expected end event, got %+v", events[1])
	}
	if audio.stopCount() == 0 {
		t.Fatalf("expected audio capture to be stopped")
	}
}

func TestRecognizerEndsOnSpeechFinal(t *testing.T) {
	t.Parallel()

	stream := newFakeStreamingSession()
	stream.events <- ports.TranscriptEvent{Kind: ports.TranscriptKindFinal, Text: "what is a mammogram", IsSpeechFinal: true}
	audio := newFakeAudioSession()

	recognizer := NewStreamingRecognizer(
		&fakeAudioCapture{sessions: []ports.AudioSession{audio}},
		&fakeProvider{sessions: []ports.StreamingSession{stream}},
		Config{},
		nil,
	)
	session, err := recognizer.Start(context.Background(), "en-US")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	events := collect(t, session)
	if len(events) != 2 || events[0].Transcript != "what is a mammogram" || events[1].Kind != ports.RecognitionEnd {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestRecognizerStopWithoutSpeechOnlyEnds(t *testing.T) {
	t.Parallel()

	stream := newFakeStreamingSession()
	audio := newFakeAudioSession()
	recognizer := NewStreamingRecognizer(
		&fakeAudioCapture{sessions: []ports.AudioSession{audio}},
		&fakeProvider{sessions: []ports.StreamingSession{stream}},
		Config{},
		nil,
	)

	session, err := recognizer.Start(context.Background(), "en-US")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	session.Stop()
	session.Stop()

	events := collect(t, session)
	if len(events) != 1 || events[0].Kind != ports.RecognitionEnd {
		t.Fatalf("expected a silent end, got %+v", events)
	}
}

func TestRecognizerMicrophoneEndWithoutSpeechIsNoSpeech(t *testing.T) {
	t.Parallel()

	stream := newFakeStreamingSession()
	audio := newFakeAudioSession()
	audio.endAfterChunks = true

	recognizer := NewStreamingRecognizer(
		&fakeAudioCapture{sessions: []ports.AudioSession{audio}},
		&fakeProvider{sessions: []ports.StreamingSession{stream}},
		Config{},
		nil,
	)
	session, err := recognizer.Start(context.Background(), "en-US")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	events := collect(t, session)
	if len(events) != 2 || events[0].Kind != ports.RecognitionError || events[0].Code != ports.RecognitionCodeNoSpeech {
		t.Fatalf("expected no-speech error then end, got %+v", events)
	}
}

func TestRecognizerStreamFailureIsNetworkError(t *testing.T) {
	t.Parallel()

	stream := newFakeStreamingSession()
	stream.waitErr = errors.New("stream failed")
	audio := newFakeAudioSession()

	recognizer := NewStreamingRecognizer(
		&fakeAudioCapture{sessions: []ports.AudioSession{audio}},
		&fakeProvider{sessions: []ports.StreamingSession{stream}},
		Config{},
		nil,
	)
	session, err := recognizer.Start(context.Background(), "en-US")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	session.Stop()

	events := collect(t, session)
	if len(events) != 2 || events[0].Code != ports.RecognitionCodeNetwork || events[0].Detail != "stream failed" {
		t.Fatalf("expected network error then end, got %+v", events)
	}
}

func TestRecognizerContextCancelAborts(t *testing.T) {
	t.Parallel()

	stream := newFakeStreamingSession()
	stream.events <- ports.TranscriptEvent{Kind: ports.TranscriptKindFinal, Text: "discarded"}
	audio := newFakeAudioSession()

	recognizer := NewStreamingRecognizer(
		&fakeAudioCapture{sessions: []ports.AudioSession{audio}},
		&fakeProvider{sessions: []ports.StreamingSession{stream}},
		Config{},
		nil,
	)
	ctx, cancel := context.WithCancel(context.Background())
	session, err := recognizer.Start(ctx, "en-US")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	cancel()

	events := collect(t, session)
	if len(events) != 1 || events[0].Kind != ports.RecognitionEnd {
		t.Fatalf("expected only end after abort, got %+v", events)
	}
	if stream.closeCount() == 0 {
		t.Fatalf("expected stream to be closed on abort")
	}
}

func TestRecognizerStartFailures(t *testing.T) {
	t.Parallel()

	providerErr := errors.New("no key")
	recognizer := NewStreamingRecognizer(&fakeAudioCapture{}, &fakeProvider{err: providerErr}, Config{}, nil)
	if _, err := recognizer.Start(context.Background(), "en-US"); !errors.Is(err, providerErr) {
		t.Fatalf("expected provider error, got %v", err)
	}

	stream := newFakeStreamingSession()
	audioErr := errors.New("no microphone")
	recognizer = NewStreamingRecognizer(
		&fakeAudioCapture{err: audioErr},
		&fakeProvider{sessions: []ports.StreamingSession{stream}},
		Config{},
		nil,
	)
	if _, err := recognizer.Start(context.Background(), "en-US"); !errors.Is(err, audioErr) {
		t.Fatalf("expected audio error, got %v", err)
	}
	if stream.closeCount() == 0 {
		t.Fatalf("expected stream to be closed when audio fails")
	}
}

func TestRecognizerAvailable(t *testing.T) {
	t.Parallel()

	if NewStreamingRecognizer(nil, nil, Config{}, nil).Available() {
		t.Fatalf("expected unavailable without capabilities")
	}
	if NewStreamingRecognizer(&fakeAudioCapture{}, &fakeProvider{unavailable: true}, Config{}, nil).Available() {
		t.Fatalf("expected unavailable when provider is not configured")
	}
	if !NewStreamingRecognizer(&fakeAudioCapture{}, &fakeProvider{}, Config{}, nil).Available() {
		t.Fatalf("expected available")
	}
}

func collect(t *testing.T, session ports.RecognitionSession) []ports.RecognitionEvent {
	t.Helper()

	var events []ports.RecognitionEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case event, ok := <-session.Events():
			if !ok {
				return events
			}
			events = append(events, event)
		case <-timeout:
			t.Fatalf("timed out waiting for session events, got %+v", events)
		}
	}
}

func waitForChunk(t *testing.T, stream *fakeStreamingSession) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if stream.sentCount() > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("audio was never streamed")
}

type fakeAudioCapture struct {
	sessions []ports.AudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Available() bool { return true }

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

// fakeAudioSession serves its chunks, then blocks until Stop unless
// endAfterChunks is set.
type fakeAudioSession struct {
	mu             sync.Mutex
	chunks         [][]byte
	index          int
	stopCalls      int
	endAfterChunks bool
	stopped        chan struct{}
	stopOnce       sync.Once
}

func newFakeAudioSession(chunks ...[]byte) *fakeAudioSession {
	return &fakeAudioSession{chunks: chunks, stopped: make(chan struct{})}
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.index < len(f.chunks) {
		n := copy(p, f.chunks[f.index])
		f.index++
		f.mu.Unlock()
		return n, nil
	}
	end := f.endAfterChunks
	f.mu.Unlock()

	if !end {
		<-f.stopped
	}
	return 0, io.EOF
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stopped) })
	return nil
}

func (f *fakeAudioSession) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeProvider struct {
	sessions    []ports.StreamingSession
	err         error
	unavailable bool
	calls       int
	lastCfg     ports.StreamingConfig
}

func (f *fakeProvider) Available() bool { return !f.unavailable }

func (f *fakeProvider) StartStreaming(_ context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no stream session configured")
	}
	f.lastCfg = cfg
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeStreamingSession struct {
	mu         sync.Mutex
	events     chan ports.TranscriptEvent
	waitErr    error
	sent       int
	closeCalls int
	closed     bool
}

func newFakeStreamingSession() *fakeStreamingSession {
	return &fakeStreamingSession{events: make(chan ports.TranscriptEvent, 16)}
}

func (f *fakeStreamingSession) SendAudio(_ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent++
	return nil
}

func (f *fakeStreamingSession) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

func (f *fakeStreamingSession) Events() <-chan ports.TranscriptEvent { return f.events }

func (f *fakeStreamingSession) Wait() error {
	time.Sleep(5 * time.Millisecond)
	return f.waitErr
}

func (f *fakeStreamingSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

func (f *fakeStreamingSession) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent
}

func (f *fakeStreamingSession) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}
