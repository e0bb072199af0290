// Package config resolves runtime configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"dualchat/internal/domain"
	"dualchat/internal/language"
)

// ErrInvalidConfig wraps values that cannot be used at all.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config stores runtime configuration.
type Config struct {
	Knowledge    KnowledgeConfig
	Translation  TranslationConfig
	RemoteSpeech RemoteSpeechConfig
	Deepgram     DeepgramConfig
	Audio        AudioConfig
	Speech       SpeechConfig
	Session      SessionConfig
	Conversation ConversationConfig
	Diagnostics  DiagnosticsConfig
	Log          LogConfig
	// EnvFile is the .env file that was loaded, if any.
	EnvFile string
}

type KnowledgeConfig struct {
	BaseURL string
	Timeout time.Duration
}

type TranslationConfig struct {
	BaseURL string
	Email   string
	Timeout time.Duration
}

type RemoteSpeechConfig struct {
	APIKey    string
	BaseURL   string
	Format    string
	Languages map[domain.Language]string
	Timeout   time.Duration
}

type DeepgramConfig struct {
	APIKey        string
	APIBaseURL    string
	Model         string
	SmartFormat   bool
	EndpointingMS int
}

type AudioConfig struct {
	RecorderCommand string
	PlayerCommand   string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type SpeechConfig struct {
	Command        string
	WordsPerMinute int
	Rate           float64
	// VoiceLanguages limits which languages use platform voices.
	VoiceLanguages []domain.Language
}

type SessionConfig struct {
	ChunkSize      int
	StreamingGrace time.Duration
}

type ConversationConfig struct {
	DefaultTag        string
	SelectedTag       string
	TranslateQuestion bool
	NotificationTTL   time.Duration
}

type DiagnosticsConfig struct {
	Addr string
}

type LogConfig struct {
	Level       string
	Development bool
}

// Load resolves configuration from environment variables and sensible
// defaults. Values from a .env file never override the process environment.
func Load() (Config, error) {
	envFile, err := loadEnvFile()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Knowledge: KnowledgeConfig{
			BaseURL: envOrDefault("DUALCHAT_KNOWLEDGE_URL", "http://127.0.0.1:8000"),
			Timeout: envOrDefaultDuration("DUALCHAT_KNOWLEDGE_TIMEOUT_MS", 20*time.Second),
		},
		Translation: TranslationConfig{
			BaseURL: envOrDefault("DUALCHAT_TRANSLATION_URL", "https://api.mymemory.translated.net"),
			Email:   strings.TrimSpace(os.Getenv("DUALCHAT_TRANSLATION_EMAIL")),
			Timeout: envOrDefaultDuration("DUALCHAT_TRANSLATION_TIMEOUT_MS", 20*time.Second),
		},
		RemoteSpeech: RemoteSpeechConfig{
			APIKey:  strings.TrimSpace(os.Getenv("VOICERSS_API_KEY")),
			BaseURL: envOrDefault("VOICERSS_API_BASE", "https://api.voicerss.org"),
			Format:  envOrDefault("VOICERSS_FORMAT", "44khz_16bit_stereo"),
			Languages: map[domain.Language]string{
				domain.LanguageBengali: envOrDefault("VOICERSS_BENGALI_CODE", "bn-in"),
				domain.LanguageEnglish: envOrDefault("VOICERSS_ENGLISH_CODE", "en-us"),
			},
			Timeout: envOrDefaultDuration("VOICERSS_TIMEOUT_MS", 20*time.Second),
		},
		Deepgram: DeepgramConfig{
			APIKey:        strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:    envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:         envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			SmartFormat:   envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
			EndpointingMS: envOrDefaultInt("DEEPGRAM_ENDPOINTING_MS", 800),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("DUALCHAT_FFMPEG_COMMAND", "ffmpeg"),
			PlayerCommand:   envOrDefault("DUALCHAT_FFPLAY_COMMAND", "ffplay"),
			InputFormat:     envOrDefault("DUALCHAT_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice: firstNonEmpty(
				os.Getenv("DUALCHAT_AUDIO_INPUT_DEVICE"),
				os.Getenv("PULSE_SOURCE"),
				"default",
			),
			SampleRate: envOrDefaultInt("DUALCHAT_SAMPLE_RATE", 16000),
			Channels:   envOrDefaultInt("DUALCHAT_CHANNELS", 1),
		},
		Speech: SpeechConfig{
			Command:        envOrDefault("DUALCHAT_ESPEAK_COMMAND", "espeak-ng"),
			WordsPerMinute: envOrDefaultInt("DUALCHAT_SPEECH_WPM", 175),
			Rate:           envOrDefaultFloat("DUALCHAT_SPEECH_RATE", 0.9),
			VoiceLanguages: languageList(envOrDefault("DUALCHAT_PLATFORM_VOICE_LANGUAGES", "en,bn")),
		},
		Session: SessionConfig{
			ChunkSize:      envOrDefaultInt("DUALCHAT_AUDIO_CHUNK_SIZE", 4096),
			StreamingGrace: time.Duration(firstNonNegativeInt("DUALCHAT_STREAMING_GRACE_MS", "DEEPGRAM_STREAMING_GRACE_MS", 300)) * time.Millisecond,
		},
		Conversation: ConversationConfig{
			DefaultTag:        envOrDefault("DUALCHAT_DEFAULT_LANGUAGE", "en-US"),
			SelectedTag:       strings.TrimSpace(os.Getenv("DUALCHAT_SELECTED_LANGUAGE")),
			TranslateQuestion: envOrDefaultBool("DUALCHAT_TRANSLATE_QUESTION", false),
			NotificationTTL:   envOrDefaultDuration("DUALCHAT_NOTIFICATION_MS", 5*time.Second),
		},
		Diagnostics: DiagnosticsConfig{
			Addr: strings.TrimSpace(os.Getenv("DUALCHAT_DIAG_ADDR")),
		},
		Log: LogConfig{
			Level:       envOrDefault("DUALCHAT_LOG_LEVEL", "info"),
			Development: envOrDefaultBool("DUALCHAT_LOG_DEV", false),
		},
		EnvFile: envFile,
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Speech.Rate <= 0 {
		cfg.Speech.Rate = 0.9
	}
	if cfg.Speech.WordsPerMinute <= 0 {
		cfg.Speech.WordsPerMinute = 175
	}

	if err := cfg.resolveLanguages(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// resolveLanguages canonicalizes the conversation tags. The default tag must
// be English; the selected tag may name either supported language.
func (c *Config) resolveLanguages() error {
	defaultTag, err := language.Canonical(c.Conversation.DefaultTag)
	if err != nil {
		return fmt.Errorf("%w: DUALCHAT_DEFAULT_LANGUAGE: %w", ErrInvalidConfig, err)
	}
	if !language.Matches(defaultTag, domain.DefaultLanguage) {
		return fmt.Errorf("%w: DUALCHAT_DEFAULT_LANGUAGE must be an English tag, got %s", ErrInvalidConfig, defaultTag)
	}
	c.Conversation.DefaultTag = defaultTag

	if c.Conversation.SelectedTag == "" {
		c.Conversation.SelectedTag = defaultTag
		return nil
	}
	selected, err := language.Canonical(c.Conversation.SelectedTag)
	if err != nil {
		return fmt.Errorf("%w: DUALCHAT_SELECTED_LANGUAGE: %w", ErrInvalidConfig, err)
	}
	c.Conversation.SelectedTag = selected
	return nil
}

// RuntimeInfo lists non-sensitive settings for display.
func (c Config) RuntimeInfo() map[string]string {
	return map[string]string{
		"knowledgeURL":       c.Knowledge.BaseURL,
		"translationURL":     c.Translation.BaseURL,
		"remoteSpeech":       configured(c.RemoteSpeech.APIKey),
		"speechToText":       configured(c.Deepgram.APIKey),
		"deepgramModel":      c.Deepgram.Model,
		"recorderCommand":    c.Audio.RecorderCommand,
		"playerCommand":      c.Audio.PlayerCommand,
		"speechCommand":      c.Speech.Command,
		"defaultLanguage":    c.Conversation.DefaultTag,
		"translateQuestion":  strconv.FormatBool(c.Conversation.TranslateQuestion),
		"notificationMillis": strconv.FormatInt(c.Conversation.NotificationTTL.Milliseconds(), 10),
		"diagnosticsAddr":    c.Diagnostics.Addr,
		"envFile":            c.EnvFile,
	}
}

func configured(secret string) string {
	if secret == "" {
		return "not configured"
	}
	return "configured"
}

// loadEnvFile loads DUALCHAT_ENV_FILE when set, which must exist, and
// otherwise the first of ./.env and ~/.config/dualchat/env that exists.
func loadEnvFile() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("DUALCHAT_ENV_FILE")); explicit != "" {
		if err := godotenv.Load(explicit); err != nil {
			return "", fmt.Errorf("%w: load %s: %w", ErrInvalidConfig, explicit, err)
		}
		return explicit, nil
	}

	candidates := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "dualchat", "env"))
	}
	path := firstExisting(candidates...)
	if path == "" {
		return "", nil
	}
	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("%w: load %s: %w", ErrInvalidConfig, path, err)
	}
	return path, nil
}

func languageList(value string) []domain.Language {
	var out []domain.Language
	for _, part := range strings.Split(value, ",") {
		lang, err := language.FromTag(part)
		if err != nil {
			continue
		}
		out = append(out, lang)
	}
	return out
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// envOrDefaultDuration reads a positive millisecond count.
func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	ms := envOrDefaultInt(key, -1)
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func firstNonNegativeInt(primary string, secondary string, fallback int) int {
	for _, key := range []string{primary, secondary} {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err == nil && parsed >= 0 {
			return parsed
		}
	}
	return fallback
}
