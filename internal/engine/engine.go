// Package engine answers form questions: stored answers first, then fallback
// rules and prompts, learning every new answer on the way.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/formfill/internal/answers"
	"github.com/spigell/formfill/internal/fallback"
	"github.com/spigell/formfill/internal/logger"
	"github.com/spigell/formfill/internal/matching"
	"github.com/spigell/formfill/internal/profile"
	"github.com/spigell/formfill/internal/rules"
	"github.com/spigell/formfill/internal/similarity"
	"github.com/spigell/formfill/internal/textnorm"
)

type Status string

const (
	StatusMatched     Status = "MATCHED"
	StatusLearned     Status = "LEARNED"
	StatusUnavailable Status = "UNAVAILABLE"
)

// Sources of matched answers; fallback answers carry fallback.Source* values.
const (
	SourceExact   = "exact"
	SourceSimilar = "similar"
)

var ErrEmptyQuestion = errors.New("question must not be empty")

type Request struct {
	Category answers.Category
	Question string
	// Profile is the active profile for this resolution; nil disables
	// profile-driven rules.
	Profile *profile.Profile
	// Options are the choices offered by the form, passed to prompters.
	Options []string
	// Prompter overrides the engine's prompter for this request.
	Prompter fallback.Prompter
}

type Result struct {
	Status          Status  `json:"status"`
	Value           string  `json:"value,omitempty"`
	Score           float64 `json:"score"`
	MatchedQuestion string  `json:"matched_question,omitempty"`
	Source          string  `json:"source,omitempty"`
	Rule            string  `json:"rule,omitempty"`
}

// compiled is everything derived from one vocabulary.
type compiled struct {
	resolver *matching.Resolver
	policies map[answers.Category]*fallback.Policy
}

type Engine struct {
	stores   map[answers.Category]*answers.Store
	learner  *LearningLoop
	prompter fallback.Prompter
	logger   *zap.Logger

	current atomic.Pointer[compiled]
}

type Option func(*Engine)

// WithPrompter sets the interactive channel used when fallback rules need a human.
func WithPrompter(prompter fallback.Prompter) Option {
	return func(e *Engine) {
		e.prompter = prompter
	}
}

// New builds an Engine over stores, which must hold every category.
func New(vocabulary *rules.Vocabulary, stores map[answers.Category]*answers.Store, log *zap.Logger, opts ...Option) (*Engine, error) {
	for _, category := range answers.Categories() {
		if stores[category] == nil {
			return nil, fmt.Errorf("missing %s answer store", category)
		}
	}

	e := &Engine{
		stores:  stores,
		learner: NewLearningLoop(log),
		logger:  logger.WithFields(log),
	}

	for _, opt := range opts {
		opt(e)
	}

	if err := e.Reload(vocabulary); err != nil {
		return nil, err
	}

	return e, nil
}

// OpenStores loads every category from backend concurrently.
func OpenStores(ctx context.Context, backend answers.Backend, log *zap.Logger) (map[answers.Category]*answers.Store, error) {
	categories := answers.Categories()
	opened := make([]*answers.Store, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, category := range categories {
		g.Go(func() error {
			opened[i] = answers.Open(gctx, category, backend, log)
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("opening answer stores: %w", err)
	}

	stores := make(map[answers.Category]*answers.Store, len(categories))
	for i, category := range categories {
		stores[category] = opened[i]
	}

	return stores, nil
}

// Reload compiles vocabulary and swaps it in. On error the previous
// vocabulary stays active.
func (e *Engine) Reload(vocabulary *rules.Vocabulary) error {
	if vocabulary == nil {
		return errors.New("vocabulary is required")
	}

	normalizer := textnorm.New(vocabulary.Boilerplate)
	keywords := matching.NewKeywordSet(normalizer, vocabulary.Keywords, vocabulary.ExactKeywords)
	resolver := matching.New(normalizer, similarity.New(normalizer), keywords, matching.WithBoost(vocabulary.Boost))

	policies := make(map[answers.Category]*fallback.Policy, len(e.stores))
	for _, category := range answers.Categories() {
		policy, err := fallback.New(fallback.FromRules(category, vocabulary.For(category)), normalizer, e.logger)
		if err != nil {
			return fmt.Errorf("compiling fallback rules: %w", err)
		}
		policies[category] = policy
	}

	e.current.Store(&compiled{resolver: resolver, policies: policies})

	e.logger.Debug("vocabulary compiled",
		zap.Int("keywords", keywords.Len()),
		zap.Int("boilerplate", len(vocabulary.Boilerplate)),
	)

	return nil
}

// Resolve answers one question. Unavailable answers are reported through
// the result status, not as errors.
func (e *Engine) Resolve(ctx context.Context, req Request) (Result, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Result{}, ErrEmptyQuestion
	}

	store, err := e.Store(req.Category)
	if err != nil {
		return Result{}, err
	}

	log := logger.WithQuestion(e.logger, string(req.Category), question)
	current := e.current.Load()
	policy := current.policies[req.Category]

	match := current.resolver.Resolve(question, store.Snapshot(), policy.Threshold())
	if match.Found {
		source := SourceExact
		if !match.Exact {
			source = SourceSimilar
			e.learner.Record(ctx, store, question, match.Answer)
		}

		log.Debug("answer matched",
			zap.String(logger.FieldSource, source),
			zap.Float64("score", match.Score),
			zap.String("matched_question", match.Question),
		)

		return Result{
			Status:          StatusMatched,
			Value:           match.Answer,
			Score:           match.Score,
			MatchedQuestion: match.Question,
			Source:          source,
		}, nil
	}

	prompter := req.Prompter
	if prompter == nil {
		prompter = e.prompter
	}

	answer, err := policy.Resolve(ctx, fallback.Request{
		Question: question,
		Profile:  req.Profile,
		Options:  req.Options,
		Prompter: prompter,
	})
	if errors.Is(err, fallback.ErrUnavailable) {
		log.Info("answer unavailable", zap.Float64("best_score", match.Score))
		return Result{Status: StatusUnavailable, Score: match.Score, MatchedQuestion: match.Question}, nil
	}
	if err != nil {
		return Result{}, err
	}

	e.learner.Record(ctx, store, question, answer.Value)

	log.Info("answer learned",
		zap.String(logger.FieldSource, answer.Source),
		zap.String("rule", answer.Rule),
	)

	return Result{
		Status: StatusLearned,
		Value:  answer.Value,
		Source: answer.Source,
		Rule:   answer.Rule,
	}, nil
}

// Store returns the answer store of category.
func (e *Engine) Store(category answers.Category) (*answers.Store, error) {
	store, ok := e.stores[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", answers.ErrUnknownCategory, category)
	}
	return store, nil
}

// Describe reports the fallback steps of category.
func (e *Engine) Describe(category answers.Category) ([]fallback.Status, error) {
	policy, ok := e.current.Load().policies[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", answers.ErrUnknownCategory, category)
	}
	return policy.Describe(), nil
}
