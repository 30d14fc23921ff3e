package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/formfill/internal/answers"
	"github.com/spigell/formfill/internal/engine"
	"github.com/spigell/formfill/internal/rules"
)

func newTestEngine(t *testing.T, cfg *AnswersConfig) *engine.Engine {
	t.Helper()

	ctx := context.Background()

	backend, err := openBackend(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	stores, err := engine.OpenStores(ctx, backend, zap.NewNop())
	require.NoError(t, err)

	vocabulary, err := rules.Default()
	require.NoError(t, err)

	eng, err := engine.New(vocabulary, stores, zap.NewNop())
	require.NoError(t, err)

	return eng
}

func TestResolveLines(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, &AnswersConfig{Backend: "file", Dir: t.TempDir()})

	in := strings.NewReader("Do you require visa sponsorship?\n\n  Are you willing to relocate?  \nPineapple?\n")
	var out bytes.Buffer

	require.NoError(t, resolveLines(context.Background(), eng, in, &out, answers.Binary, nil, nil))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "LEARNED\tNo\tDo you require visa sponsorship?", lines[0])
	assert.Equal(t, "LEARNED\tYes\tAre you willing to relocate?", lines[1])
	assert.Equal(t, "LEARNED\tYes\tPineapple?", lines[2])
}

func TestListAnswers(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, &AnswersConfig{Backend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "answers.db")})

	store, err := eng.Store(answers.Numeric)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), "Expected salary?", "120000"))

	var out bytes.Buffer
	require.NoError(t, listAnswers(&out, eng, answers.Categories()))
	assert.Contains(t, out.String(), "Expected salary?")
	assert.Contains(t, out.String(), "120000")
	assert.Contains(t, out.String(), "1 answers")
}

func TestOpenBackendRejectsUnknown(t *testing.T) {
	t.Parallel()

	_, err := openBackend(context.Background(), &AnswersConfig{Backend: "redis"}, zap.NewNop())
	require.Error(t, err)

	_, err = openBackend(context.Background(), &AnswersConfig{Backend: "postgres"}, zap.NewNop())
	require.Error(t, err)
}
