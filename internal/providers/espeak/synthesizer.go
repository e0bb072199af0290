// Package espeak provides platform text-to-speech through the espeak-ng
// command line.
package espeak

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"dualchat/internal/audio"
	"dualchat/internal/domain"
	"dualchat/internal/language"
	"dualchat/internal/ports"
)

const defaultWordsPerMinute = 175

// Config controls the synthesizer.
type Config struct {
	Command string
	// WordsPerMinute is the normal speaking speed; Speak scales it by rate.
	WordsPerMinute int
	// Languages restricts the offered voices. Empty means every supported
	// conversation language.
	Languages []domain.Language
}

// Synthesizer implements ports.SpeechSynthesizer. Voices are empty until
// Load completes.
type Synthesizer struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.RWMutex
	voices []ports.Voice

	loadOnce sync.Once
	loaded   chan struct{}
}

func NewSynthesizer(cfg Config, logger *zap.Logger) *Synthesizer {
	if cfg.Command == "" {
		cfg.Command = "espeak-ng"
	}
	if cfg.WordsPerMinute <= 0 {
		cfg.WordsPerMinute = defaultWordsPerMinute
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []domain.Language{domain.LanguageEnglish, domain.LanguageBengali}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{cfg: cfg, logger: logger, loaded: make(chan struct{})}
}

// Available reports whether the synthesis command can be found.
func (s *Synthesizer) Available() bool {
	_, err := exec.LookPath(s.cfg.Command)
	return err == nil
}

// LoadAsync enumerates voices in the background.
func (s *Synthesizer) LoadAsync(ctx context.Context) {
	go func() {
		if err := s.Load(ctx); err != nil {
			s.logger.Warn("platform voices unavailable", zap.Error(err))
		}
	}()
}

// Load enumerates the installed voices once. Later calls are no-ops.
func (s *Synthesizer) Load(ctx context.Context) error {
	var err error
	s.loadOnce.Do(func() {
		defer close(s.loaded)

		var out []byte
		out, err = exec.CommandContext(ctx, s.cfg.Command, "--voices").Output()
		if err != nil {
			err = fmt.Errorf("list voices: %w", err)
			return
		}

		voices := s.filter(parseVoices(out))
		s.mu.Lock()
		s.voices = voices
		s.mu.Unlock()
		s.logger.Info("platform voices loaded", zap.Int("count", len(voices)))
	})
	return err
}

// Loaded is closed once voice enumeration has finished, successfully or not.
func (s *Synthesizer) Loaded() <-chan struct{} {
	return s.loaded
}

func (s *Synthesizer) Voices() []ports.Voice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ports.Voice(nil), s.voices...)
}

func (s *Synthesizer) Speak(ctx context.Context, text string, voice ports.Voice, rate float64) (ports.Playback, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("nothing to speak")
	}
	if rate <= 0 {
		rate = 1
	}
	wpm := int(math.Round(float64(s.cfg.WordsPerMinute) * rate))
	args := []string{"-v", voice.ID, "-s", strconv.Itoa(wpm), "--", text}
	return audio.StartProcess(ctx, s.cfg.Command, args, nil)
}

func (s *Synthesizer) filter(voices []ports.Voice) []ports.Voice {
	out := voices[:0]
	for _, voice := range voices {
		for _, lang := range s.cfg.Languages {
			if language.Matches(voice.Language, lang) {
				out = append(out, voice)
				break
			}
		}
	}
	return out
}

// parseVoices reads the table printed by "espeak-ng --voices":
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  bn              --/M      Bengali            inc/bn
func parseVoices(out []byte) []ports.Voice {
	var voices []ports.Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		voices = append(voices, ports.Voice{
			ID:       fields[1],
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: fields[1],
		})
	}
	return voices
}
