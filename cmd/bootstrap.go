package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/formfill/internal/ai"
	"github.com/spigell/formfill/internal/ai/gemini"
	"github.com/spigell/formfill/internal/answers"
	"github.com/spigell/formfill/internal/engine"
	"github.com/spigell/formfill/internal/fallback"
	"github.com/spigell/formfill/internal/logger"
	"github.com/spigell/formfill/internal/profile"
	"github.com/spigell/formfill/internal/prompt"
	"github.com/spigell/formfill/internal/rules"
	"github.com/spigell/formfill/internal/secrets"
)

// runtime is everything a command needs to resolve questions.
type runtime struct {
	config   *Config
	logger   *zap.Logger
	backend  answers.Backend
	profiles *profile.Set
	engine   *engine.Engine
}

// newLogger builds the application logger from the persistent flags.
func newLogger() *zap.Logger {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return logger
}

func loadProfiles() (*profile.Set, error) {
	return profile.Load(viper.Get("profiles"))
}

// setup loads config, profiles, vocabulary and stores, and builds the engine.
func setup(ctx context.Context, logger *zap.Logger, opts ...engine.Option) (*runtime, error) {
	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("getting a config: %w", err)
	}

	profiles, err := loadProfiles()
	if err != nil {
		return nil, err
	}

	vocabulary, err := rules.Load(config.Vocabulary)
	if err != nil {
		return nil, err
	}

	backend, err := openBackend(ctx, config.Answers, logger)
	if err != nil {
		return nil, err
	}

	stores, err := engine.OpenStores(ctx, backend, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}

	eng, err := engine.New(vocabulary, stores, logger, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}

	logger.Debug("engine ready",
		zap.String("backend", config.Answers.Backend),
		zap.Int("profiles", profiles.Len()),
		zap.String("vocabulary", vocabularyName(config.Vocabulary)),
	)

	return &runtime{
		config:   config,
		logger:   logger,
		backend:  backend,
		profiles: profiles,
		engine:   eng,
	}, nil
}

func (r *runtime) Close() {
	if err := r.backend.Close(); err != nil {
		r.logger.Warn("closing answer backend", zap.Error(err))
	}
}

// activeProfile selects the profile named by flag, config or FORMFILL_PROFILE.
// No configured profiles means no profile.
func (r *runtime) activeProfile(name string) (*profile.Profile, error) {
	if name == "" {
		name = r.config.Profile
	}

	if r.profiles.Len() == 0 && name == "" {
		return nil, nil
	}

	return r.profiles.Select(name)
}

// reloadVocabulary re-reads the configured vocabulary into the engine.
func (r *runtime) reloadVocabulary() error {
	vocabulary, err := rules.Load(r.config.Vocabulary)
	if err != nil {
		return err
	}
	return r.engine.Reload(vocabulary)
}

func vocabularyName(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}

func openBackend(ctx context.Context, cfg *AnswersConfig, logger *zap.Logger) (answers.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "file":
		return answers.NewFileBackend(cfg.Dir, logger)
	case "sqlite":
		return answers.OpenSQLite(cfg.SQLitePath)
	case "postgres", "postgresql":
		dsn, err := secrets.Load(secrets.Source{
			Name:  "postgres dsn",
			File:  cfg.PostgresDSNFile,
			Value: cfg.PostgresDSN,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set answers.postgres-dsn-file or FORMFILL_POSTGRES_DSN_FILE)", err)
		}
		return answers.OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported answers backend: %s", cfg.Backend)
	}
}

// newPrompter returns the human channel, optionally fronted by the AI assistant.
// A failing assistant setup is logged and skipped.
func newPrompter(ctx context.Context, cfg *AIConfig, interactive bool, logger *zap.Logger) fallback.Prompter {
	var human fallback.Prompter
	if interactive {
		human = prompt.NewTerminal()
	}

	if cfg == nil || !cfg.Enabled {
		if human == nil {
			return prompt.None{}
		}
		return human
	}

	answerer, err := newAIAnswerer(ctx, cfg, logger)
	if err != nil {
		logger.Warn("skipping AI assistant", zap.Error(err))
		if human == nil {
			return prompt.None{}
		}
		return human
	}

	return ai.NewAssistant(answerer, human, logger.With(zap.String("component", "assistant")))
}

func newAIAnswerer(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Answerer, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.Gemini.APIKeyFile,
		Value: cfg.Gemini.APIKey,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	answererLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", generator.Model()),
	)

	return gemini.NewAnswerer(generator, cfg.Instructions, cfg.Gemini.MaxLogLength, answererLogger), nil
}
