// Package bootstrap assembles the runtime graph from configuration.
package bootstrap

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"dualchat/internal/audio"
	"dualchat/internal/config"
	"dualchat/internal/diag"
	"dualchat/internal/logging"
	"dualchat/internal/ports"
	"dualchat/internal/providers/deepgram"
	"dualchat/internal/providers/espeak"
	"dualchat/internal/providers/knowledge"
	"dualchat/internal/providers/mymemory"
	"dualchat/internal/providers/voicerss"
	"dualchat/internal/recognition"
	"dualchat/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Orchestrator *usecase.Orchestrator
	Config       config.Config
	Logger       *zap.Logger
	// Diagnostics is nil unless a listen address is configured.
	Diagnostics *diag.Server
	Voices      *espeak.Synthesizer
}

// Build wires all backend dependencies for the current runtime. Platform
// voices start loading in the background under ctx.
func Build(ctx context.Context, eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return Services{}, err
	}
	return BuildWith(ctx, cfg, eventSink, logger), nil
}

// BuildWith wires the graph from an already loaded configuration.
func BuildWith(ctx context.Context, cfg config.Config, eventSink ports.EventSink, logger *zap.Logger) Services {
	if logger == nil {
		logger = zap.NewNop()
	}

	recognizer := recognition.NewStreamingRecognizer(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		deepgram.NewProvider(deepgram.Config{
			APIKey:        cfg.Deepgram.APIKey,
			APIBaseURL:    cfg.Deepgram.APIBaseURL,
			Model:         cfg.Deepgram.Model,
			Language:      cfg.Conversation.DefaultTag,
			SmartFormat:   cfg.Deepgram.SmartFormat,
			EndpointingMS: cfg.Deepgram.EndpointingMS,
		}, logger.Named("deepgram")),
		recognition.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Streaming: ports.StreamingConfig{
				SampleRate:     cfg.Audio.SampleRate,
				Channels:       cfg.Audio.Channels,
				Encoding:       "linear16",
				InterimResults: true,
			},
			ChunkSize:      cfg.Session.ChunkSize,
			StreamingGrace: cfg.Session.StreamingGrace,
		},
		logger.Named("recognition"),
	)

	voices := espeak.NewSynthesizer(espeak.Config{
		Command:        cfg.Speech.Command,
		WordsPerMinute: cfg.Speech.WordsPerMinute,
		Languages:      cfg.Speech.VoiceLanguages,
	}, logger.Named("espeak"))
	voices.LoadAsync(ctx)

	orchestrator := usecase.NewOrchestrator(usecase.Collaborators{
		Knowledge:  knowledge.NewClient(cfg.Knowledge.BaseURL, cfg.Knowledge.Timeout),
		Translator: mymemory.NewClient(cfg.Translation.BaseURL, cfg.Translation.Email, cfg.Translation.Timeout),
		Recognizer: recognizer,
		RemoteSpeech: voicerss.NewClient(voicerss.Config{
			APIKey:    cfg.RemoteSpeech.APIKey,
			BaseURL:   cfg.RemoteSpeech.BaseURL,
			Format:    cfg.RemoteSpeech.Format,
			Languages: cfg.RemoteSpeech.Languages,
			Timeout:   cfg.RemoteSpeech.Timeout,
		}),
		Synthesizer: voices,
		Player:      audio.NewFFPlayPlayer(cfg.Audio.PlayerCommand),
	}, eventSink, usecase.Config{
		DefaultLanguageTag: cfg.Conversation.DefaultTag,
		TranslateQuestion:  cfg.Conversation.TranslateQuestion,
		NotificationTTL:    cfg.Conversation.NotificationTTL,
		Speech: usecase.SpeechConfig{
			Rate: cfg.Speech.Rate,
		},
	}, logger.Named("conversation"))

	if cfg.Conversation.SelectedTag != cfg.Conversation.DefaultTag {
		if err := orchestrator.SetLanguage(cfg.Conversation.SelectedTag); err != nil {
			logger.Warn("selected language ignored", zap.Error(err))
		}
	}

	services := Services{
		Orchestrator: orchestrator,
		Config:       cfg,
		Logger:       logger,
		Voices:       voices,
	}
	if cfg.Diagnostics.Addr != "" {
		services.Diagnostics = diag.NewServer(cfg.Diagnostics.Addr, orchestrator, cfg.RuntimeInfo, logger.Named("diag"))
	}
	return services
}

// Start brings up the optional diagnostics listener.
func (s Services) Start() error {
	if s.Diagnostics == nil {
		return nil
	}
	return s.Diagnostics.Start()
}

// Close disposes the orchestrator and stops the diagnostics listener.
func (s Services) Close(ctx context.Context) error {
	var errs []error
	if s.Orchestrator != nil {
		s.Orchestrator.Close()
	}
	if s.Diagnostics != nil {
		errs = append(errs, s.Diagnostics.Shutdown(ctx))
	}
	if s.Logger != nil {
		_ = s.Logger.Sync()
	}
	return errors.Join(errs...)
}
