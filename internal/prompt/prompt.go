// Package prompt provides the interactive channels used by fallback
// resolution when no rule can answer a question.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/manifoldco/promptui"

	"github.com/spigell/formfill/internal/fallback"
)

// Terminal asks a human through promptui. It blocks until the human answers;
// ctx is only checked before the prompt is shown.
type Terminal struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

func NewTerminal() *Terminal {
	return &Terminal{}
}

func (t *Terminal) Ask(ctx context.Context, p fallback.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	label := fmt.Sprintf("[%s] %s", p.Category, strings.Join(strings.Fields(p.Question), " "))

	if len(p.Options) > 0 {
		selectPrompt := promptui.Select{
			Label:     label,
			Items:     p.Options,
			CursorPos: indexOf(p.Options, p.Suggested),
			Size:      min(len(p.Options), 10),
			Stdin:     t.Stdin,
			Stdout:    t.Stdout,
		}

		_, value, err := selectPrompt.Run()
		return value, mapError(err)
	}

	textPrompt := promptui.Prompt{
		Label:     label,
		Default:   p.Suggested,
		AllowEdit: true,
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("answer must not be empty")
			}
			return nil
		},
		Stdin:  t.Stdin,
		Stdout: t.Stdout,
	}

	value, err := textPrompt.Run()
	return strings.TrimSpace(value), mapError(err)
}

// mapError turns a human walking away from the prompt into ErrUnavailable.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF), errors.Is(err, promptui.ErrAbort):
		return fmt.Errorf("%w: %w", fallback.ErrUnavailable, err)
	default:
		return err
	}
}

func indexOf(items []string, value string) int {
	for i, item := range items {
		if strings.EqualFold(item, value) {
			return i
		}
	}
	return 0
}

// None never answers. It is the prompter of non-interactive runs.
type None struct{}

func (None) Ask(context.Context, fallback.Prompt) (string, error) {
	return "", fallback.ErrUnavailable
}

// Scripted answers from a fixed table, then from a queue, in call order.
// It is used for batch runs and tests.
type Scripted struct {
	mu      sync.Mutex
	answers map[string]string
	queue   []string
	calls   int
}

func NewScripted(answers map[string]string, queue ...string) *Scripted {
	table := make(map[string]string, len(answers))
	for question, answer := range answers {
		table[question] = answer
	}
	return &Scripted{answers: table, queue: queue}
}

func (s *Scripted) Ask(_ context.Context, p fallback.Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	if answer, ok := s.answers[p.Question]; ok {
		return answer, nil
	}

	if len(s.queue) > 0 {
		answer := s.queue[0]
		s.queue = s.queue[1:]
		return answer, nil
	}

	return "", fallback.ErrUnavailable
}

// Calls reports how many times Ask was invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
