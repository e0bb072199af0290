package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"dualchat/internal/domain"
	"dualchat/internal/metrics"
	"dualchat/internal/ports"
)

// TranslationUnavailableMarker tags text that could not be translated.
const TranslationUnavailableMarker = "[translation unavailable]"

// TranslationPipeline wraps the translation collaborator; it never fails.
type TranslationPipeline struct {
	translator ports.Translator
	logger     *zap.Logger

	inFlight atomic.Int32
}

func NewTranslationPipeline(translator ports.Translator, logger *zap.Logger) *TranslationPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranslationPipeline{translator: translator, logger: logger}
}

// Translate converts text into target, translating from the other supported
// language. Any failure yields the original text wrapped with the marker.
func (p *TranslationPipeline) Translate(ctx context.Context, text string, target domain.Language) (result string) {
	release := p.acquire()
	defer release()

	defer func() {
		if r := recover(); r != nil {
			p.degrade(text, target, fmt.Errorf("translator panic: %v", r))
			result = unavailable(text)
		}
	}()

	if p.translator == nil {
		p.degrade(text, target, fmt.Errorf("translator is not configured"))
		return unavailable(text)
	}
	if strings.TrimSpace(text) == "" {
		return unavailable(text)
	}

	translated, err := p.translator.Translate(ctx, text, target.Opposite(), target)
	if err != nil {
		p.degrade(text, target, err)
		return unavailable(text)
	}
	translated = strings.TrimSpace(translated)
	if translated == "" {
		p.degrade(text, target, fmt.Errorf("empty translation"))
		return unavailable(text)
	}
	return translated
}

// Translating reports whether any translation call is in flight.
func (p *TranslationPipeline) Translating() bool {
	return p.inFlight.Load() > 0
}

func (p *TranslationPipeline) acquire() func() {
	p.inFlight.Add(1)
	metrics.Translating.Inc()
	return func() {
		p.inFlight.Add(-1)
		metrics.Translating.Dec()
	}
}

func (p *TranslationPipeline) degrade(text string, target domain.Language, err error) {
	metrics.CollaboratorFailuresTotal.WithLabelValues("translation").Inc()
	p.logger.Warn("translation degraded",
		zap.String("target", string(target)),
		zap.Int("chars", len(text)),
		zap.Error(err),
	)
}

func unavailable(text string) string {
	return strings.TrimSpace(text + " " + TranslationUnavailableMarker)
}
