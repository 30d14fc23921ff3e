package answers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newFileBackend(t *testing.T) (*FileBackend, string) {
	t.Helper()

	dir := t.TempDir()
	backend, err := NewFileBackend(dir, zap.NewNop())
	require.NoError(t, err)

	return backend, dir
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	tests := map[string]Category{
		"numeric":   Numeric,
		" Text ":    Numeric,
		"BINARY":    Binary,
		"yesno":     Binary,
		"select":    Dropdown,
		"dropdown":  Dropdown,
		"radio":     Binary,
		"number":    Numeric,
		"boolean":   Binary,
		"Dropdown ": Dropdown,
	}

	for input, expected := range tests {
		got, err := ParseCategory(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, got, input)
	}

	_, err := ParseCategory("checkbox")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestFileBackendCreatesMissingFile(t *testing.T) {
	t.Parallel()

	backend, _ := newFileBackend(t)

	data, err := backend.Read(context.Background(), Binary)
	require.NoError(t, err)
	assert.Empty(t, data)

	raw, err := os.ReadFile(backend.Path(Binary))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
}

func TestFileBackendRecoversFromCorruptFile(t *testing.T) {
	t.Parallel()

	backend, dir := newFileBackend(t)
	backend.now = func() time.Time { return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC) }

	corrupt := []byte(`{"Are you willing to relocate?": "Yes",`)
	require.NoError(t, os.WriteFile(backend.Path(Numeric), corrupt, 0o644))

	store := Open(context.Background(), Numeric, backend, zap.NewNop())
	assert.Zero(t, store.Len())

	backup := filepath.Join(dir, "numeric.json.corrupt-20240501T103000Z.bak")
	saved, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, corrupt, saved)

	reset, err := os.ReadFile(backend.Path(Numeric))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(reset))
}

func TestFileBackendKeepsCorruptFileWhenBackupFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend, dir := newFileBackend(t)
	backupErr := errors.New("read-only file system")
	backend.writeFile = func(string, []byte, os.FileMode) error { return backupErr }

	corrupt := []byte(`{"Expected salary?": "90000",`)
	require.NoError(t, os.WriteFile(backend.Path(Numeric), corrupt, 0o644))

	_, err := backend.Read(ctx, Numeric)
	require.ErrorIs(t, err, backupErr)

	store := Open(ctx, Numeric, backend, zap.NewNop())
	assert.Zero(t, store.Len())

	err = store.Put(ctx, "Expected salary?", "120000")
	require.ErrorIs(t, err, ErrWriteRefused)
	require.ErrorIs(t, err, backupErr)

	kept, err := os.ReadFile(backend.Path(Numeric))
	require.NoError(t, err)
	assert.Equal(t, corrupt, kept, "the corrupt file must survive until it is backed up")

	matches, err := filepath.Glob(filepath.Join(dir, "*.bak"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	// Other categories are unaffected.
	require.NoError(t, backend.Write(ctx, Binary, map[string]string{"Relocate?": "Yes"}))
}

func TestFileBackendRejectsNonObjects(t *testing.T) {
	t.Parallel()

	for _, content := range []string{`null`, `["a", "b"]`, `{"q": {"nested": true}}`} {
		backend, dir := newFileBackend(t)
		require.NoError(t, os.WriteFile(backend.Path(Dropdown), []byte(content), 0o644))

		data, err := backend.Read(context.Background(), Dropdown)
		require.NoError(t, err, content)
		assert.Empty(t, data, content)

		backups, err := filepath.Glob(filepath.Join(dir, "dropdown.json.corrupt-*.bak"))
		require.NoError(t, err)
		assert.Len(t, backups, 1, content)
	}
}

func TestFileBackendCoercesScalarAnswers(t *testing.T) {
	t.Parallel()

	backend, _ := newFileBackend(t)
	content := `{"Years of Go experience": 3, "Expected salary": 120000.5, "Remote?": true, "Skipped": null}`
	require.NoError(t, os.WriteFile(backend.Path(Numeric), []byte(content), 0o644))

	data, err := backend.Read(context.Background(), Numeric)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Years of Go experience": "3",
		"Expected salary":        "120000.5",
		"Remote?":                "true",
	}, data)
}

func TestFileBackendWritesPrettyJSONAtomically(t *testing.T) {
	t.Parallel()

	backend, dir := newFileBackend(t)
	data := map[string]string{
		"R&D experience?":              "Yes",
		"Are you willing to relocate?": "Yes",
	}

	require.NoError(t, backend.Write(context.Background(), Binary, data))

	raw, err := os.ReadFile(backend.Path(Binary))
	require.NoError(t, err)

	expected := "{\n  \"Are you willing to relocate?\": \"Yes\",\n  \"R&D experience?\": \"Yes\"\n}\n"
	assert.Equal(t, expected, string(raw))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasSuffix(entry.Name(), ".tmp"), "temporary file left behind: %s", entry.Name())
	}
}

func TestStorePutPersistsAndOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend, _ := newFileBackend(t)

	store := Open(ctx, Numeric, backend, nil)
	require.NoError(t, store.Put(ctx, "Expected salary?", "100000"))
	require.NoError(t, store.Put(ctx, "Years with Go?", "3"))
	require.NoError(t, store.Put(ctx, "Expected salary?", "120000"))

	answer, ok := store.Get("Expected salary?")
	require.True(t, ok)
	assert.Equal(t, "120000", answer)
	assert.Equal(t, 2, store.Len())

	reopened := Open(ctx, Numeric, backend, nil)
	assert.Equal(t, []Record{
		{Question: "Expected salary?", Answer: "120000"},
		{Question: "Years with Go?", Answer: "3"},
	}, reopened.Records())
}

func TestStoreClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend, _ := newFileBackend(t)

	store := Open(ctx, Binary, backend, nil)
	require.NoError(t, store.Put(ctx, "Remote?", "Yes"))
	require.NoError(t, store.Clear(ctx))

	assert.Zero(t, store.Len())
	assert.Zero(t, Open(ctx, Binary, backend, nil).Len())
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend, _ := newFileBackend(t)

	store := Open(ctx, Binary, backend, nil)
	require.NoError(t, store.Put(ctx, "Remote?", "Yes"))

	snapshot := store.Snapshot()
	snapshot["Remote?"] = "No"

	answer, _ := store.Get("Remote?")
	assert.Equal(t, "Yes", answer)
}

type failingBackend struct {
	readErr  error
	writeErr error
	writes   int
}

func (f *failingBackend) Read(context.Context, Category) (map[string]string, error) {
	return map[string]string{}, f.readErr
}

func (f *failingBackend) Write(context.Context, Category, map[string]string) error {
	f.writes++
	return f.writeErr
}

func (f *failingBackend) Close() error { return nil }

func TestStoreKeepsMemoryWhenWriteFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	writeErr := errors.New("disk full")
	backend := &failingBackend{writeErr: writeErr}

	store := Open(ctx, Numeric, backend, nil)
	err := store.Put(ctx, "Expected salary?", "90000")
	require.ErrorIs(t, err, writeErr)

	answer, ok := store.Get("Expected salary?")
	require.True(t, ok)
	assert.Equal(t, "90000", answer)
	assert.Equal(t, 1, backend.writes)
}

func TestOpenFailsOpenOnReadError(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.WarnLevel)
	backend := &failingBackend{readErr: errors.New("permission denied")}

	store := Open(context.Background(), Dropdown, backend, zap.New(core))
	assert.Zero(t, store.Len())

	entries := observed.FilterMessage("loading answer store failed, starting empty").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "dropdown", entries[0].ContextMap()["category"])
}
