package answers

import (
	"errors"
	"fmt"
	"strings"
)

// Category selects one of the independent answer stores.
type Category string

const (
	// Numeric holds free-text and numeric answers (years of experience, salary).
	Numeric Category = "numeric"
	// Binary holds Yes/No answers.
	Binary Category = "binary"
	// Dropdown holds selection-list answers.
	Dropdown Category = "dropdown"
)

var ErrUnknownCategory = errors.New("unknown answer category")

var categoryAliases = map[string]Category{
	"numeric":  Numeric,
	"text":     Numeric,
	"number":   Numeric,
	"binary":   Binary,
	"yesno":    Binary,
	"boolean":  Binary,
	"radio":    Binary,
	"dropdown": Dropdown,
	"select":   Dropdown,
}

// Categories returns all categories in a stable order.
func Categories() []Category {
	return []Category{Numeric, Binary, Dropdown}
}

// ParseCategory accepts a category name or one of its aliases, case-insensitively.
func ParseCategory(name string) (Category, error) {
	category, ok := categoryAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}

	return category, nil
}

func (c Category) String() string { return string(c) }
