package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dualchat/internal/metrics"
	"dualchat/internal/ports"
)

// ApologyAnswer replaces the answer whenever the knowledge service fails.
const ApologyAnswer = "I'm sorry, I'm having trouble connecting right now. Please try again in a moment."

// QueryDispatcher sends questions to the knowledge collaborator.
type QueryDispatcher struct {
	knowledge ports.KnowledgeService
	logger    *zap.Logger
}

func NewQueryDispatcher(knowledge ports.KnowledgeService, logger *zap.Logger) *QueryDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryDispatcher{knowledge: knowledge, logger: logger}
}

// Ask returns the collaborator's answer, or ApologyAnswer on any failure.
func (d *QueryDispatcher) Ask(ctx context.Context, question string) (answer string) {
	defer func() {
		if r := recover(); r != nil {
			answer = d.fail(fmt.Errorf("knowledge service panic: %v", r))
		}
	}()

	if d.knowledge == nil {
		return d.fail(errors.New("knowledge service is not configured"))
	}
	answer, err := d.knowledge.Ask(ctx, question)
	if err != nil {
		return d.fail(err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return d.fail(errors.New("empty answer"))
	}
	return answer
}

func (d *QueryDispatcher) fail(err error) string {
	metrics.CollaboratorFailuresTotal.WithLabelValues("knowledge").Inc()
	d.logger.Warn("knowledge query failed", zap.Error(err))
	return ApologyAnswer
}
