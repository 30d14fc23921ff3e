// Package rules loads the matching vocabulary and the per-category fallback
// rule tables.
package rules

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/spigell/formfill/internal/answers"
)

//go:embed defaults.yaml
var defaultVocabulary []byte

// Source selects where a rule takes its answer from.
type Source string

const (
	SourceLiteral    Source = "literal"
	SourceExperience Source = "profile_experience"
	SourceSalary     Source = "profile_salary"
)

var ErrInvalidVocabulary = errors.New("invalid vocabulary")

// DefaultThresholds are used when a category leaves its threshold unset.
var DefaultThresholds = map[answers.Category]float64{
	answers.Numeric:  0.5,
	answers.Binary:   0.4,
	answers.Dropdown: 0.4,
}

type Rule struct {
	Name     string   `mapstructure:"name"`
	Contains []string `mapstructure:"contains"`
	Pattern  string   `mapstructure:"pattern"`
	Answer   string   `mapstructure:"answer"`
	Source   Source   `mapstructure:"source"`
}

type CategoryRules struct {
	Threshold float64  `mapstructure:"threshold"`
	Default   string   `mapstructure:"default"`
	Confirm   bool     `mapstructure:"confirm"`
	Options   []string `mapstructure:"options"`
	Rules     []Rule   `mapstructure:"rules"`
}

type Vocabulary struct {
	Boost       float64                  `mapstructure:"boost"`
	Keywords    []string                 `mapstructure:"keywords"`
	Boilerplate []string                 `mapstructure:"boilerplate"`
	Categories  map[string]CategoryRules `mapstructure:"categories"`

	// ExactKeywords are compared word for word, without stemming.
	ExactKeywords []string `mapstructure:"exact_keywords"`
}

// Default returns the embedded vocabulary.
func Default() (*Vocabulary, error) {
	return parse(defaultVocabulary)
}

// Load reads the vocabulary file at path, or the embedded defaults when path is empty.
func Load(path string) (*Vocabulary, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary file: %w", err)
	}

	vocabulary, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return vocabulary, nil
}

func parse(data []byte) (*Vocabulary, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidVocabulary, err)
	}

	var vocabulary Vocabulary
	if err := v.Unmarshal(&vocabulary); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidVocabulary, err)
	}

	if err := vocabulary.normalize(); err != nil {
		return nil, err
	}

	return &vocabulary, nil
}

// normalize re-keys categories by canonical name, fills defaults and
// validates every rule.
func (v *Vocabulary) normalize() error {
	categories := make(map[string]CategoryRules, len(v.Categories))

	for name, cfg := range v.Categories {
		category, err := answers.ParseCategory(name)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidVocabulary, err)
		}

		if cfg.Threshold <= 0 {
			cfg.Threshold = DefaultThresholds[category]
		}

		for i := range cfg.Rules {
			if err := validateRule(&cfg.Rules[i]); err != nil {
				return fmt.Errorf("%w: %s rule %d: %w", ErrInvalidVocabulary, category, i, err)
			}
		}

		categories[string(category)] = cfg
	}

	v.Categories = categories
	return nil
}

func validateRule(rule *Rule) error {
	if rule.Source == "" {
		rule.Source = SourceLiteral
	}

	if len(rule.Contains) == 0 && strings.TrimSpace(rule.Pattern) == "" {
		return errors.New("either contains or pattern is required")
	}

	if rule.Pattern != "" {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("pattern: %w", err)
		}
	}

	switch rule.Source {
	case SourceLiteral:
		if strings.TrimSpace(rule.Answer) == "" {
			return errors.New("literal rule needs an answer")
		}
	case SourceExperience, SourceSalary:
	default:
		return fmt.Errorf("unknown source %q", rule.Source)
	}

	if rule.Name == "" {
		rule.Name = string(rule.Source)
	}

	return nil
}

// For returns the rule table of category. Categories missing from the file
// get the default threshold and no rules.
func (v *Vocabulary) For(category answers.Category) CategoryRules {
	cfg, ok := v.Categories[string(category)]
	if !ok {
		return CategoryRules{Threshold: DefaultThresholds[category]}
	}
	return cfg
}
