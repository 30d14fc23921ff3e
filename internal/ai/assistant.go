// Package ai lets a language model answer fallback prompts.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/formfill/internal/fallback"
	"github.com/spigell/formfill/internal/logger"
)

// Suggestion is a model's answer to a form question.
type Suggestion struct {
	Answer    string
	Confident bool
	Reason    string
	Raw       string
}

type Answerer interface {
	Suggest(ctx context.Context, prompt fallback.Prompt) (*Suggestion, error)
}

// Assistant is a fallback.Prompter backed by an Answerer.
//
// Without a Human it answers on its own and only when the model is
// confident. With a Human the model's answer becomes the suggested value and
// the human has the last word.
type Assistant struct {
	answerer Answerer
	human    fallback.Prompter
	logger   *zap.Logger
}

func NewAssistant(answerer Answerer, human fallback.Prompter, log *zap.Logger) *Assistant {
	return &Assistant{
		answerer: answerer,
		human:    human,
		logger:   logger.WithFields(log),
	}
}

func (a *Assistant) Ask(ctx context.Context, p fallback.Prompt) (string, error) {
	log := logger.WithQuestion(a.logger, string(p.Category), p.Question)

	suggestion, err := a.answerer.Suggest(ctx, p)
	if err != nil {
		log.Warn("ai suggestion failed", zap.Error(err))
	}

	if suggestion != nil {
		log.Debug("ai suggestion",
			zap.String("answer", suggestion.Answer),
			zap.Bool("confident", suggestion.Confident),
			zap.String("reason", suggestion.Reason),
		)
	}

	if a.human != nil {
		if suggestion != nil && suggestion.Answer != "" && (suggestion.Confident || p.Suggested == "") {
			p.Suggested = suggestion.Answer
		}
		return a.human.Ask(ctx, p)
	}

	switch {
	case err != nil:
		return "", fmt.Errorf("%w: %w", fallback.ErrUnavailable, err)
	case suggestion == nil || !suggestion.Confident || strings.TrimSpace(suggestion.Answer) == "":
		return "", fallback.ErrUnavailable
	default:
		return strings.TrimSpace(suggestion.Answer), nil
	}
}

// ErrOptionMismatch is returned when a model picks an answer that is not one
// of the offered options.
var ErrOptionMismatch = errors.New("answer is not one of the options")

// MatchOption returns the option equal to answer, ignoring case and
// surrounding whitespace. Without options any answer is accepted.
func MatchOption(options []string, answer string) (string, error) {
	answer = strings.TrimSpace(answer)
	if len(options) == 0 {
		return answer, nil
	}

	for _, option := range options {
		if strings.EqualFold(strings.TrimSpace(option), answer) {
			return option, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrOptionMismatch, answer)
}
