// Package fallback answers questions the answer store could not match.
//
// A Policy runs an ordered list of steps (rule checks, profile lookups, the
// category default) and, when allowed, hands the result to an interactive
// Prompter for confirmation. Without a result and without a prompter it
// returns ErrUnavailable instead of an empty answer.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/formfill/internal/answers"
	"github.com/spigell/formfill/internal/logger"
	"github.com/spigell/formfill/internal/profile"
	"github.com/spigell/formfill/internal/rules"
)

// ErrUnavailable means no rule produced an answer and nobody could be asked.
var ErrUnavailable = errors.New("answer unavailable")

// Answer sources reported to callers.
const (
	SourceRule    = "rule"
	SourceProfile = "profile"
	SourceDefault = "default"
	SourcePrompt  = "prompt"
)

// Prompt is what an interactive channel is asked.
type Prompt struct {
	Category  answers.Category
	Question  string
	Suggested string
	Options   []string
	Profile   *profile.Profile
}

// Prompter is the interactive capability. Implementations return
// ErrUnavailable when they cannot or will not answer.
type Prompter interface {
	Ask(ctx context.Context, prompt Prompt) (string, error)
}

// Phraser canonicalizes questions and vocabulary phrases.
type Phraser interface {
	Phrase(text string) string
}

type Answer struct {
	Value  string
	Source string
	Rule   string
}

// Request carries everything one resolution needs. Profile and Prompter are
// optional.
type Request struct {
	Question string
	Profile  *profile.Profile
	Options  []string
	Prompter Prompter
}

// CategoryConfig parameterizes one Policy.
type CategoryConfig struct {
	Category      answers.Category
	Threshold     float64
	Rules         []rules.Rule
	DefaultAnswer string
	Confirm       bool
	Options       []string
}

// FromRules converts a vocabulary rule table into a CategoryConfig.
func FromRules(category answers.Category, cfg rules.CategoryRules) CategoryConfig {
	return CategoryConfig{
		Category:      category,
		Threshold:     cfg.Threshold,
		Rules:         cfg.Rules,
		DefaultAnswer: cfg.Default,
		Confirm:       cfg.Confirm,
		Options:       cfg.Options,
	}
}

type Policy struct {
	config CategoryConfig
	steps  []Step
	logger *zap.Logger
}

// New compiles cfg into a Policy.
func New(cfg CategoryConfig, phraser Phraser, log *zap.Logger) (*Policy, error) {
	log = logger.WithFields(log)

	steps := make([]Step, 0, len(cfg.Rules)+1)
	for i, rule := range cfg.Rules {
		step, err := newRuleStep(rule, phraser)
		if err != nil {
			return nil, fmt.Errorf("%s rule %d (%s): %w", cfg.Category, i, rule.Name, err)
		}
		steps = append(steps, step)
	}
	steps = append(steps, newDefaultStep(cfg.DefaultAnswer))

	return &Policy{config: cfg, steps: steps, logger: log}, nil
}

func (p *Policy) Category() answers.Category { return p.config.Category }

func (p *Policy) Threshold() float64 { return p.config.Threshold }

func (p *Policy) Steps() []Step { return p.steps }

// Resolve runs the steps in order. The first step producing a value wins.
func (p *Policy) Resolve(ctx context.Context, req Request) (Answer, error) {
	log := logger.WithQuestion(p.logger, string(p.config.Category), req.Question)

	input := Input{
		Question: req.Question,
		Lower:    strings.ToLower(req.Question),
		Profile:  req.Profile,
	}

	var (
		answer Answer
		found  bool
	)

	for _, step := range p.steps {
		if !step.IsEnabled() {
			continue
		}

		value, ok := step.Apply(ctx, input)
		if !ok {
			continue
		}

		answer, found = value, true
		log.Debug("fallback step answered",
			zap.String("fallback_step", step.Name()),
			zap.String(logger.FieldSource, answer.Source),
		)
		break
	}

	if found && (!p.config.Confirm || req.Prompter == nil) {
		return answer, nil
	}

	if req.Prompter == nil {
		log.Debug("no fallback step answered and no prompter available")
		return Answer{}, ErrUnavailable
	}

	options := req.Options
	if len(options) == 0 {
		options = p.config.Options
	}

	value, err := req.Prompter.Ask(ctx, Prompt{
		Category:  p.config.Category,
		Question:  req.Question,
		Suggested: answer.Value,
		Options:   options,
		Profile:   req.Profile,
	})

	switch {
	case errors.Is(err, ErrUnavailable):
		if found {
			return answer, nil
		}
		return Answer{}, ErrUnavailable
	case err != nil:
		return Answer{}, fmt.Errorf("asking for %s answer: %w", p.config.Category, err)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		if found {
			return answer, nil
		}
		return Answer{}, ErrUnavailable
	}

	if found && value == answer.Value {
		return answer, nil
	}

	return Answer{Value: value, Source: SourcePrompt}, nil
}

// Status represents runtime information about a step.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by steps that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Describe returns status entries for the policy's steps followed by the
// prompt stage.
func (p *Policy) Describe() []Status {
	statuses := make([]Status, 0, len(p.steps)+1)
	for _, step := range p.steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}

	statuses = append(statuses, Status{
		Name:    "prompt",
		Enabled: true,
		Details: map[string]string{
			"confirm": strconv.FormatBool(p.config.Confirm),
			"options": strings.Join(p.config.Options, ","),
		},
	})

	return statuses
}

// DisableByName marks the step with the provided name as disabled while keeping it in the list.
func (p *Policy) DisableByName(name, reason string) {
	for _, step := range p.steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}
