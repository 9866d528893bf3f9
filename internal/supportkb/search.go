// Package supportkb searches the support knowledge bases for answers to a
// problem statement.
package supportkb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"service-desk-bot/internal/integrations/qnamaker"
	"service-desk-bot/internal/recognizer"
)

// Dispatch intents naming each knowledge base.
const (
	IntentPCAndLaptopIssues = "q_kb_pc_and_laptop_issues"
	IntentPrinterIssues     = "q_kb_printer_issues"
)

// AnswerSource is one knowledge base.
type AnswerSource interface {
	GenerateAnswer(ctx context.Context, question string, top int) ([]qnamaker.Answer, error)
}

// Service picks the knowledge base for a problem with a dispatch
// recognizer and queries it.
type Service struct {
	dispatch recognizer.Recognizer
	kbs      map[string]AnswerSource
	logger   *slog.Logger
}

// New creates a Service. kbs maps a dispatch intent to its knowledge base.
func New(dispatch recognizer.Recognizer, kbs map[string]AnswerSource, logger *slog.Logger) (*Service, error) {
	if dispatch == nil {
		return nil, errors.New("supportkb: dispatch recognizer must not be nil")
	}
	if len(kbs) == 0 {
		return nil, errors.New("supportkb: at least one knowledge base is required")
	}
	for intent, kb := range kbs {
		if kb == nil {
			return nil, fmt.Errorf("supportkb: knowledge base for %q is nil", intent)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{dispatch: dispatch, kbs: kbs, logger: logger}, nil
}

// Search returns up to top answers for problem, or nil when the problem
// maps to no knowledge base or the knowledge base has no answer.
func (s *Service) Search(ctx context.Context, problem string, top int) ([]qnamaker.Answer, error) {
	res, err := s.dispatch.Recognize(ctx, problem)
	if err != nil {
		return nil, fmt.Errorf("supportkb: dispatch: %w", err)
	}
	intent := recognizer.TopIntent(&res, "", 0)
	s.logger.DebugContext(ctx, "support kb dispatch", "intent", intent)

	kb, ok := s.kbs[intent]
	if !ok {
		return nil, nil
	}
	answers, err := kb.GenerateAnswer(ctx, problem, top)
	if err != nil {
		return nil, fmt.Errorf("supportkb: search %s: %w", intent, err)
	}
	if len(answers) == 0 {
		return nil, nil
	}
	return answers, nil
}
