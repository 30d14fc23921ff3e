package fallback

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spigell/formfill/internal/profile"
	"github.com/spigell/formfill/internal/rules"
	"github.com/spigell/formfill/internal/textnorm"
)

// Step is a single fallback check.
type Step interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Apply(ctx context.Context, in Input) (Answer, bool)
}

// Input is the question as seen by steps.
type Input struct {
	Question string
	Lower    string
	Profile  *profile.Profile
}

type ruleStep struct {
	rule     rules.Rule
	contains []string
	pattern  *regexp.Regexp
	phraser  Phraser

	disabled bool
	reason   string
}

func newRuleStep(rule rules.Rule, phraser Phraser) (*ruleStep, error) {
	step := &ruleStep{rule: rule, phraser: phraser}

	for _, needle := range rule.Contains {
		if needle = strings.ToLower(strings.TrimSpace(needle)); needle != "" {
			step.contains = append(step.contains, needle)
		}
	}

	if rule.Pattern != "" {
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern: %w", err)
		}
		step.pattern = pattern
	}

	if len(step.contains) == 0 && step.pattern == nil {
		return nil, errors.New("rule has neither contains nor pattern")
	}

	if rule.Source == rules.SourceExperience && phraser == nil {
		return nil, errors.New("experience rule needs a phraser")
	}

	return step, nil
}

func (s *ruleStep) Name() string {
	if s.rule.Name != "" {
		return s.rule.Name
	}
	return string(s.rule.Source)
}

func (s *ruleStep) Disable(reason string) {
	s.disabled = true
	s.reason = reason
}

func (s *ruleStep) IsEnabled() bool { return !s.disabled }

func (s *ruleStep) matches(lower string) bool {
	for _, needle := range s.contains {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return s.pattern != nil && s.pattern.MatchString(lower)
}

func (s *ruleStep) Apply(_ context.Context, in Input) (Answer, bool) {
	if !s.matches(in.Lower) {
		return Answer{}, false
	}

	switch s.rule.Source {
	case rules.SourceExperience:
		years, ok := s.experience(in)
		if !ok {
			return Answer{}, false
		}
		return Answer{Value: years, Source: SourceProfile, Rule: s.Name()}, true

	case rules.SourceSalary:
		salary, ok := in.Profile.Salary()
		if !ok {
			return Answer{}, false
		}
		return Answer{Value: salary, Source: SourceProfile, Rule: s.Name()}, true

	default:
		return Answer{Value: s.rule.Answer, Source: SourceRule, Rule: s.Name()}, true
	}
}

// experience looks up the per-skill years of the longest skill named in the
// question and falls back to the profile's default years.
func (s *ruleStep) experience(in Input) (string, bool) {
	if in.Profile == nil {
		return "", false
	}

	canonical := s.phraser.Phrase(in.Question)

	skills := make([]string, 0, len(in.Profile.SkillExperience))
	for skill := range in.Profile.SkillExperience {
		skills = append(skills, skill)
	}
	sort.Strings(skills)

	best, bestLen := "", 0
	for _, skill := range skills {
		phrase := s.phraser.Phrase(skill)
		if !textnorm.ContainsPhrase(canonical, phrase) {
			continue
		}
		if length := len(strings.Fields(phrase)); length > bestLen {
			best, bestLen = skill, length
		}
	}

	if best != "" {
		return strconv.Itoa(in.Profile.SkillExperience[best]), true
	}

	return in.Profile.DefaultYears()
}

func (s *ruleStep) Status() Status {
	details := map[string]string{"source": string(s.rule.Source)}
	if len(s.contains) > 0 {
		details["contains"] = strings.Join(s.contains, ",")
	}
	if s.pattern != nil {
		details["pattern"] = s.pattern.String()
	}
	if s.rule.Answer != "" {
		details["answer"] = s.rule.Answer
	}
	return Status{Name: s.Name(), Enabled: s.IsEnabled(), Reason: s.reason, Details: details}
}

type defaultStep struct {
	answer   string
	disabled bool
	reason   string
}

func newDefaultStep(answer string) *defaultStep {
	return &defaultStep{answer: strings.TrimSpace(answer)}
}

func (s *defaultStep) Name() string { return "default" }

func (s *defaultStep) Disable(reason string) {
	s.disabled = true
	s.reason = reason
}

func (s *defaultStep) IsEnabled() bool { return !s.disabled && s.answer != "" }

func (s *defaultStep) Apply(context.Context, Input) (Answer, bool) {
	if s.answer == "" {
		return Answer{}, false
	}
	return Answer{Value: s.answer, Source: SourceDefault, Rule: s.Name()}, true
}

func (s *defaultStep) Status() Status {
	reason := s.reason
	if reason == "" && s.answer == "" {
		reason = "no default answer configured"
	}
	return Status{
		Name:    s.Name(),
		Enabled: s.IsEnabled(),
		Reason:  reason,
		Details: map[string]string{"answer": s.answer},
	}
}
