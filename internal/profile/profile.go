// Package profile holds the job-search personas consulted by fallback rules.
package profile

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var (
	ErrInvalidProfile  = errors.New("invalid profile config")
	ErrNoProfiles      = errors.New("no profiles configured")
	ErrProfileNotFound = errors.New("profile not found")
)

// Profile is read-only once loaded.
type Profile struct {
	Name                   string         `mapstructure:"name" json:"name"`
	Title                  string         `mapstructure:"title" json:"title" validate:"required"`
	SearchQueries          []string       `mapstructure:"search_queries" json:"search_queries" validate:"required,min=1,dive,required"`
	Location               string         `mapstructure:"location" json:"location,omitempty"`
	DefaultYearsExperience *int           `mapstructure:"default_years_experience" json:"default_years_experience,omitempty" validate:"omitempty,gte=0"`
	SkillExperience        map[string]int `mapstructure:"skill_experience" json:"skill_experience,omitempty" validate:"omitempty,dive,gte=0"`
	ExpectedSalary         string         `mapstructure:"expected_salary" json:"expected_salary,omitempty"`
}

// DefaultYears returns the configured default years as an answer value.
func (p *Profile) DefaultYears() (string, bool) {
	if p == nil || p.DefaultYearsExperience == nil {
		return "", false
	}
	return strconv.Itoa(*p.DefaultYearsExperience), true
}

// Salary returns the expected salary as an answer value.
func (p *Profile) Salary() (string, bool) {
	if p == nil {
		return "", false
	}
	salary := strings.TrimSpace(p.ExpectedSalary)
	return salary, salary != ""
}

// Set is the ordered list of configured profiles.
type Set struct {
	profiles []Profile
}

// fieldAliases maps squashed keys ("jobsearchqueries") to field names.
// Viper lower-cases every key, so camelCase spellings arrive squashed.
var fieldAliases = map[string]string{
	"name":                   "name",
	"title":                  "title",
	"searchqueries":          "search_queries",
	"jobsearchqueries":       "search_queries",
	"location":               "location",
	"defaultyearsexperience": "default_years_experience",
	"yearsexperience":        "default_years_experience",
	"skillexperience":        "skill_experience",
	"expectedsalary":         "expected_salary",
	"salary":                 "expected_salary",
}

var keySquasher = strings.NewReplacer("_", "", "-", "")

// Load decodes and validates the raw "profiles" config value, a list of maps.
func Load(raw any) (*Set, error) {
	if raw == nil {
		return &Set{}, nil
	}

	entries, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: profiles must be a list, got %T", ErrInvalidProfile, raw)
	}

	validate := newValidator()
	set := &Set{profiles: make([]Profile, 0, len(entries))}

	for i, entry := range entries {
		fields, ok := toStringMap(entry)
		if !ok {
			return nil, fmt.Errorf("%w: profile #%d must be a mapping, got %T", ErrInvalidProfile, i+1, entry)
		}

		var p Profile
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &p,
		})
		if err != nil {
			return nil, err
		}

		if err := decoder.Decode(canonicalKeys(fields)); err != nil {
			return nil, fmt.Errorf("%w: profile #%d: %w", ErrInvalidProfile, i+1, err)
		}

		if err := validate.Struct(&p); err != nil {
			return nil, fmt.Errorf("%w: profile #%d (%s): %s", ErrInvalidProfile, i+1, label(&p), describe(err))
		}

		if p.Name == "" {
			p.Name = p.Title
		}

		set.profiles = append(set.profiles, p)
	}

	return set, nil
}

// Select returns the profile called name (matched against name, then title,
// case-insensitively). An empty name selects the first profile.
func (s *Set) Select(name string) (*Profile, error) {
	if s == nil || len(s.profiles) == 0 {
		return nil, ErrNoProfiles
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return &s.profiles[0], nil
	}

	for i := range s.profiles {
		if strings.EqualFold(s.profiles[i].Name, name) {
			return &s.profiles[i], nil
		}
	}
	for i := range s.profiles {
		if strings.EqualFold(s.profiles[i].Title, name) {
			return &s.profiles[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %q (available: %s)", ErrProfileNotFound, name, strings.Join(s.Names(), ", "))
}

func (s *Set) All() []Profile {
	if s == nil {
		return nil
	}
	return append([]Profile(nil), s.profiles...)
}

func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.profiles))
	for _, p := range s.profiles {
		names = append(names, p.Name)
	}
	return names
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.profiles)
}

func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" {
			return field.Name
		}
		return name
	})
	return validate
}

func describe(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err.Error()
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", fe.Field()))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must not be empty", fe.Field()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}

	return strings.Join(messages, "; ")
}

func label(p *Profile) string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Title != "":
		return p.Title
	default:
		return "unnamed"
	}
}

func toStringMap(entry any) (map[string]any, bool) {
	switch typed := entry.(type) {
	case map[string]any:
		return typed, true
	case map[any]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	default:
		return nil, false
	}
}

func canonicalKeys(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if alias, ok := fieldAliases[keySquasher.Replace(strings.ToLower(key))]; ok {
			key = alias
		}
		out[key] = value
	}
	return out
}
