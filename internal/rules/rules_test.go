package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/formfill/internal/answers"
)

func TestDefaultVocabulary(t *testing.T) {
	t.Parallel()

	vocabulary, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 1.2, vocabulary.Boost)
	assert.Contains(t, vocabulary.Keywords, "python")
	assert.Contains(t, vocabulary.Keywords, "c#")
	assert.Contains(t, vocabulary.ExactKeywords, "excel")
	assert.NotContains(t, vocabulary.Keywords, "excel")
	assert.Contains(t, vocabulary.Boilerplate, "how many years of experience do you have with")

	assert.Equal(t, 0.5, vocabulary.For(answers.Numeric).Threshold)
	assert.Equal(t, 0.4, vocabulary.For(answers.Binary).Threshold)
	assert.Equal(t, 0.4, vocabulary.For(answers.Dropdown).Threshold)

	binary := vocabulary.For(answers.Binary)
	require.NotEmpty(t, binary.Rules)
	require.GreaterOrEqual(t, len(binary.Rules), 2)
	assert.Equal(t, "no_sponsorship_needed", binary.Rules[0].Name)
	assert.Equal(t, "Yes", binary.Rules[0].Answer)
	assert.Equal(t, "sponsorship", binary.Rules[1].Name)
	assert.Equal(t, "No", binary.Rules[1].Answer)
	assert.Equal(t, SourceLiteral, binary.Rules[1].Source)
	assert.Equal(t, "Yes", binary.Default)
	assert.True(t, binary.Confirm)

	numeric := vocabulary.For(answers.Numeric)
	require.Len(t, numeric.Rules, 2)
	assert.Equal(t, SourceExperience, numeric.Rules[0].Source)
	assert.Equal(t, SourceSalary, numeric.Rules[1].Source)
	assert.Empty(t, numeric.Default)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	t.Parallel()

	vocabulary, err := Load("  ")
	require.NoError(t, err)
	assert.NotEmpty(t, vocabulary.Keywords)
}

func TestLoadExternalFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vocabulary.yaml")
	content := `
keywords: [elixir]
categories:
  text:
    rules:
      - name: notice
        contains: [notice period]
        answer: "30"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	vocabulary, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"elixir"}, vocabulary.Keywords)
	assert.Empty(t, vocabulary.Boilerplate)

	numeric := vocabulary.For(answers.Numeric)
	assert.Equal(t, 0.5, numeric.Threshold)
	require.Len(t, numeric.Rules, 1)
	assert.Equal(t, SourceLiteral, numeric.Rules[0].Source)

	binary := vocabulary.For(answers.Binary)
	assert.Equal(t, 0.4, binary.Threshold)
	assert.Empty(t, binary.Rules)
}

func TestLoadRejectsInvalidRules(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"unknown category": `
categories:
  checkbox:
    rules: []
`,
		"bad pattern": `
categories:
  numeric:
    rules:
      - pattern: '(unclosed'
        source: profile_salary
`,
		"unknown source": `
categories:
  numeric:
    rules:
      - contains: [salary]
        source: linkedin
`,
		"literal without answer": `
categories:
  binary:
    rules:
      - contains: [remote]
`,
		"no matcher": `
categories:
  binary:
    rules:
      - answer: "Yes"
`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "vocabulary.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			_, err := Load(path)
			require.ErrorIs(t, err, ErrInvalidVocabulary)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vocabulary.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keywords: [python]\n"), 0o644))

	watcher, err := NewWatcher(path, 20*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Vocabulary, 4)
	done := make(chan error, 1)
	go func() {
		done <- watcher.Run(ctx, func(v *Vocabulary) { reloaded <- v })
	}()

	// A broken file keeps the previous vocabulary and produces no callback.
	require.NoError(t, os.WriteFile(path, []byte("keywords: [\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("keywords: [rust, elixir]\n"), 0o644))

	select {
	case v := <-reloaded:
		assert.Equal(t, []string{"rust", "elixir"}, v.Keywords)
	case <-time.After(5 * time.Second):
		t.Fatal("vocabulary was not reloaded")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
