package answers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const backupTimeLayout = "20060102T150405Z"

// ErrWriteRefused is returned by Write for a category whose corrupt file could
// not be backed up. The file is left as it is until the next run.
var ErrWriteRefused = errors.New("answer file is corrupt and could not be backed up, refusing to overwrite it")

// FileBackend keeps each category in <dir>/<category>.json as a pretty-printed
// JSON object mapping raw questions to answers.
type FileBackend struct {
	dir       string
	logger    *zap.Logger
	now       func() time.Time
	writeFile func(name string, data []byte, perm os.FileMode) error

	mu     sync.Mutex
	frozen map[Category]error
}

func NewFileBackend(dir string, logger *zap.Logger) (*FileBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating answers directory %q: %w", dir, err)
	}

	return &FileBackend{
		dir:       dir,
		logger:    logger,
		now:       time.Now,
		writeFile: os.WriteFile,
		frozen:    make(map[Category]error),
	}, nil
}

// Path returns the file backing the category.
func (b *FileBackend) Path(category Category) string {
	return filepath.Join(b.dir, string(category)+".json")
}

// Read loads the category. A missing file is created empty. A corrupt file is
// copied to a timestamped backup next to it and replaced with an empty store.
// When the backup cannot be written the file is kept and further writes to the
// category fail with ErrWriteRefused.
func (b *FileBackend) Read(ctx context.Context, category Category) (map[string]string, error) {
	path := b.Path(category)

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		b.logger.Info("answer file not found, creating an empty one", zap.String("path", path))
		return map[string]string{}, b.Write(ctx, category, map[string]string{})
	}
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]string{}, nil
	}

	data, err := decodeAnswers(raw)
	if err == nil {
		return data, nil
	}

	backup := fmt.Sprintf("%s.corrupt-%s.bak", path, b.now().UTC().Format(backupTimeLayout))
	if werr := b.writeFile(backup, raw, 0o644); werr != nil {
		werr = fmt.Errorf("backing up corrupt answer file %q: %w", path, werr)
		b.freeze(category, werr)
		b.logger.Error("answer file is corrupt and the backup failed, leaving it untouched",
			zap.String("path", path),
			zap.Error(werr),
		)
		return nil, werr
	}

	b.logger.Warn("answer file is corrupt, backed up and reset",
		zap.String("path", path),
		zap.String("backup", backup),
		zap.Error(err),
	)

	if werr := b.Write(ctx, category, map[string]string{}); werr != nil {
		b.logger.Error("resetting corrupt answer file failed", zap.String("path", path), zap.Error(werr))
	}

	return map[string]string{}, nil
}

// Write replaces the category file atomically: the data goes to a temporary
// file in the same directory which is then renamed over the target.
func (b *FileBackend) Write(_ context.Context, category Category, data map[string]string) error {
	path := b.Path(category)

	if cause := b.frozenBy(category); cause != nil {
		return fmt.Errorf("writing %q: %w: %w", path, ErrWriteRefused, cause)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encoding %s answers: %w", category, err)
	}

	tmp, err := os.CreateTemp(b.dir, "."+string(category)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary answer file: %w", err)
	}

	if err := writeAndClose(tmp, buf.Bytes()); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %q: %w", path, err)
	}

	return nil
}

func (b *FileBackend) Close() error { return nil }

func (b *FileBackend) freeze(category Category, cause error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frozen[category] = cause
}

func (b *FileBackend) frozenBy(category Category) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.frozen[category]
}

func writeAndClose(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing %q: %w", f.Name(), err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %q: %w", f.Name(), err)
	}

	return f.Close()
}

// decodeAnswers accepts a JSON object whose values are strings. Numbers and
// booleans written by hand are converted; nested values are rejected.
func decodeAnswers(raw []byte) (map[string]string, error) {
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}

	if decoded == nil {
		return nil, errors.New("answer file does not contain a JSON object")
	}

	data := make(map[string]string, len(decoded))
	for question, value := range decoded {
		switch v := value.(type) {
		case string:
			data[question] = v
		case float64:
			data[question] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			data[question] = strconv.FormatBool(v)
		case nil:
			continue
		default:
			return nil, fmt.Errorf("unsupported answer type %T for question %q", value, question)
		}
	}

	return data, nil
}
