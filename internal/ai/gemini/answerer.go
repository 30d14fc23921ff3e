package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/formfill/internal/ai"
	"github.com/spigell/formfill/internal/fallback"
	"github.com/spigell/formfill/internal/logger"
	"github.com/spigell/formfill/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength   = 200
	maxInstructionRunes   = 500
	instructionsHolder    = "{{USER_INSTRUCTIONS}}"
	instructionLinePrefix = "  - "
)

// Answerer asks Gemini to answer form questions from the candidate profile.
type Answerer struct {
	generator contentGenerator
	system    string
	logger    *zap.Logger
	maxLogLen int
}

// NewAnswerer builds an Answerer. instructions are free-form candidate notes
// appended to the system prompt after sanitization.
func NewAnswerer(generator contentGenerator, instructions string, maxLogLength int, log *zap.Logger) *Answerer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Answerer{
		generator: generator,
		system:    strings.ReplaceAll(promptTemplate, instructionsHolder, sanitizeInstructions(instructions)),
		logger:    logger.WithFields(log),
		maxLogLen: maxLogLength,
	}
}

type promptProfile struct {
	Title                  string         `json:"title,omitempty"`
	Location               string         `json:"location,omitempty"`
	SearchQueries          []string       `json:"search_queries,omitempty"`
	DefaultYearsExperience *int           `json:"default_years_experience,omitempty"`
	SkillExperience        map[string]int `json:"skill_experience,omitempty"`
	ExpectedSalary         string         `json:"expected_salary,omitempty"`
}

type promptPayload struct {
	Category  string         `json:"category"`
	Question  string         `json:"question"`
	Suggested string         `json:"suggested"`
	Options   []string       `json:"options"`
	Profile   *promptProfile `json:"profile,omitempty"`
}

func (a *Answerer) Suggest(ctx context.Context, p fallback.Prompt) (*ai.Suggestion, error) {
	message, err := buildMessage(p)
	if err != nil {
		return nil, err
	}

	log := logger.WithQuestion(a.logger, string(p.Category), p.Question)
	log.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(message, a.maxLogLen)),
	)

	raw, err := a.generator.GenerateContent(ctx, a.system, message)
	if err != nil {
		return nil, err
	}

	log.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	suggestion, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	if suggestion.Answer != "" {
		option, err := ai.MatchOption(p.Options, suggestion.Answer)
		if err != nil {
			log.Debug("gemini answer rejected", zap.Error(err))
			suggestion.Confident = false
		} else {
			suggestion.Answer = option
		}
	}

	suggestion.Raw = raw
	return suggestion, nil
}

func buildMessage(p fallback.Prompt) (string, error) {
	payload := promptPayload{
		Category:  string(p.Category),
		Question:  strings.TrimSpace(p.Question),
		Suggested: p.Suggested,
		Options:   p.Options,
	}
	if payload.Options == nil {
		payload.Options = []string{}
	}

	if p.Profile != nil {
		payload.Profile = &promptProfile{
			Title:                  p.Profile.Title,
			Location:               p.Profile.Location,
			SearchQueries:          p.Profile.SearchQueries,
			DefaultYearsExperience: p.Profile.DefaultYearsExperience,
			SkillExperience:        p.Profile.SkillExperience,
			ExpectedSalary:         p.Profile.ExpectedSalary,
		}
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal prompt payload: %w", err)
	}

	return string(data), nil
}

// sanitizeInstructions renders free-form notes as a bullet list that cannot
// pose as a system section.
func sanitizeInstructions(input string) string {
	replacer := strings.NewReplacer("[", "(", "]", ")", "{", "(", "}", ")")

	var lines []string
	budget := maxInstructionRunes
	for _, line := range strings.Split(input, "\n") {
		line = strings.Join(strings.Fields(replacer.Replace(line)), " ")
		if line == "" || budget <= 0 {
			continue
		}

		runes := []rune(line)
		if len(runes) > budget {
			runes = runes[:budget]
		}
		budget -= len(runes)

		lines = append(lines, instructionLinePrefix+string(runes))
	}

	if len(lines) == 0 {
		return instructionLinePrefix + "none"
	}

	return strings.Join(lines, "\n")
}

func parseResponse(raw string) (*ai.Suggestion, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	return &ai.Suggestion{
		Answer:    coerceString(data["answer"]),
		Confident: coerceBool(data["confident"]),
		Reason:    coerceString(data["reason"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64, bool:
		return fmt.Sprint(val)
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
