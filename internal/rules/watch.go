package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses the burst of events editors produce on save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a vocabulary file whenever it is written or recreated.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
}

// NewWatcher starts watching the directory holding path. Watching the
// directory instead of the file keeps working across rename-on-save.
func NewWatcher(path string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving vocabulary path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		watcher:  watcher,
		logger:   logger.With(zap.String("path", abs)),
	}, nil
}

// Run blocks until ctx is done, calling onChange with every successfully
// reloaded vocabulary. A file that fails to load is logged and the previous
// vocabulary stays in use.
func (w *Watcher) Run(ctx context.Context, onChange func(*Vocabulary)) error {
	defer w.watcher.Close()

	w.logger.Info("watching vocabulary file")

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			vocabulary, err := Load(w.path)
			if err != nil {
				w.logger.Warn("reloading vocabulary failed, keeping the previous one", zap.Error(err))
				continue
			}

			w.logger.Info("vocabulary reloaded",
				zap.Int("keywords", len(vocabulary.Keywords)+len(vocabulary.ExactKeywords)),
				zap.Int("boilerplate", len(vocabulary.Boilerplate)),
			)
			onChange(vocabulary)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("vocabulary watcher error", zap.Error(err))
		}
	}
}
