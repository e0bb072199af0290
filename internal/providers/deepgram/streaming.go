// Package deepgram streams microphone audio to Deepgram's live transcription
// websocket.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"dualchat/internal/ports"
)

const defaultBaseURL = "https://api.deepgram.com/v1"

var errMissingAPIKey = errors.New("DEEPGRAM_API_KEY is not configured")

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey     string
	APIBaseURL string
	Model      string
	// Language is used when a session does not name one.
	Language    string
	SmartFormat bool
	// EndpointingMS is the silence, in milliseconds, that marks speech final.
	EndpointingMS int
}

// Provider implements ports.TranscriptionProvider for Deepgram.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *zap.Logger
}

func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.EndpointingMS <= 0 {
		cfg.EndpointingMS = 800
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer, logger: logger}
}

// Available reports whether an API key is configured.
func (p *Provider) Available() bool {
	return strings.TrimSpace(p.cfg.APIKey) != ""
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if !p.Available() {
		return nil, errMissingAPIKey
	}

	wsURL, err := buildListenURL(p.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, _, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("connect to Deepgram websocket: %w", err)
	}

	session := &streamingSession{
		conn:   conn,
		logger: p.logger,
		events: make(chan ports.TranscriptEvent, 64),
		audio:  make(chan []byte, 32),
		done:   make(chan struct{}),
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-session.done:
		}
	}()

	p.logger.Debug("deepgram stream opened", zap.String("language", cfg.Language))
	return session, nil
}

type streamingSession struct {
	conn   *websocket.Conn
	logger *zap.Logger

	events chan ports.TranscriptEvent
	audio  chan []byte
	done   chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *streamingSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	closed := s.sendClosed
	s.sendMu.RUnlock()
	if closed {
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("session closed")
	}
}

func (s *streamingSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *streamingSession) Events() <-chan ports.TranscriptEvent {
	return s.events
}

func (s *streamingSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *streamingSession) setErr(err error) {
	if err == nil || isNormalClose(err) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// isNormalClose reports whether err, possibly wrapped, is an orderly websocket
// close or the local side closing the connection.
func isNormalClose(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	switch closeErr.Code {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
		return true
	default:
		return false
	}
}

func (s *streamingSession) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(fmt.Errorf("send audio: %w", err))
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setErr(fmt.Errorf("close stream: %w", err))
	}
}

func (s *streamingSession) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("read provider event: %w", err))
			return
		}

		msg := parseMessage(payload)
		if msg.err != nil {
			s.setErr(msg.err)
			return
		}
		if !msg.ok {
			continue
		}
		s.emit(msg.event)
	}
}

func (s *streamingSession) emit(event ports.TranscriptEvent) {
	select {
	case s.events <- event:
	case <-s.done:
	default:
		s.logger.Debug("transcript event dropped", zap.String("kind", string(event.Kind)))
	}
}

type message struct {
	event ports.TranscriptEvent
	ok    bool
	err   error
}

// parseMessage reads one provider message. Metadata and empty transcripts
// yield ok=false; an Error message yields err.
func parseMessage(payload []byte) message {
	if !gjson.ValidBytes(payload) {
		return message{}
	}
	root := gjson.ParseBytes(payload)

	if strings.EqualFold(root.Get("type").String(), "Error") {
		text := strings.TrimSpace(root.Get("message").String())
		if text == "" {
			text = strings.TrimSpace(root.Get("description").String())
		}
		if text == "" {
			text = "deepgram returned an unknown error"
		}
		return message{err: errors.New(text)}
	}

	transcript := extractTranscript(root)
	if transcript == "" {
		return message{}
	}

	speechFinal := root.Get("speech_final").Bool()
	event := ports.TranscriptEvent{Text: transcript, IsSpeechFinal: speechFinal}
	if root.Get("is_final").Bool() || speechFinal {
		event.Kind = ports.TranscriptKindFinal
	} else {
		event.Kind = ports.TranscriptKindPartial
	}
	return message{event: event, ok: true}
}

func extractTranscript(root gjson.Result) string {
	if text := strings.TrimSpace(root.Get("channel.alternatives.0.transcript").String()); text != "" {
		return text
	}
	return strings.TrimSpace(root.Get("results.channels.0.alternatives.0.transcript").String())
}

func buildListenURL(providerCfg Config, streamCfg ports.StreamingConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	if streamCfg.Encoding == "" {
		streamCfg.Encoding = "linear16"
	}
	if streamCfg.SampleRate <= 0 {
		streamCfg.SampleRate = 16000
	}
	if streamCfg.Channels <= 0 {
		streamCfg.Channels = 1
	}

	query := listenURL.Query()
	query.Set("model", providerCfg.Model)
	query.Set("encoding", streamCfg.Encoding)
	query.Set("sample_rate", strconv.Itoa(streamCfg.SampleRate))
	query.Set("channels", strconv.Itoa(streamCfg.Channels))
	query.Set("interim_results", strconv.FormatBool(streamCfg.InterimResults))
	query.Set("smart_format", strconv.FormatBool(providerCfg.SmartFormat))
	if providerCfg.EndpointingMS > 0 {
		query.Set("endpointing", strconv.Itoa(providerCfg.EndpointingMS))
	}

	lang := strings.TrimSpace(streamCfg.Language)
	if lang == "" {
		lang = providerCfg.Language
	}
	if lang != "" {
		query.Set("language", lang)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
