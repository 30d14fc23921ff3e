// Package answers keeps the learned question -> answer mappings, one store per
// category, and persists them through a pluggable backend.
package answers

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Backend persists whole stores. Write always receives the complete store
// contents and must replace what was stored before.
type Backend interface {
	Read(ctx context.Context, category Category) (map[string]string, error)
	Write(ctx context.Context, category Category, data map[string]string) error
	Close() error
}

// Record is a single persisted answer.
type Record struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Store is the in-memory view of one category. Writes are serialized per
// store, so two concurrent writers cannot interleave a rewrite.
type Store struct {
	category Category
	backend  Backend
	logger   *zap.Logger

	mu      sync.RWMutex
	answers map[string]string
}

// Open loads the category from the backend. It never fails: an unreadable
// backend is logged and the store starts empty.
func Open(ctx context.Context, category Category, backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		category: category,
		backend:  backend,
		logger:   logger.With(zap.String("category", string(category))),
		answers:  make(map[string]string),
	}

	data, err := backend.Read(ctx, category)
	if err != nil {
		s.logger.Warn("loading answer store failed, starting empty", zap.Error(err))
		return s
	}

	maps.Copy(s.answers, data)
	s.logger.Debug("answer store loaded", zap.Int("answers", len(s.answers)))

	return s
}

func (s *Store) Category() Category { return s.category }

// Get returns the answer stored under the exact raw question.
func (s *Store) Get(question string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	answer, ok := s.answers[question]
	return answer, ok
}

// Snapshot returns a copy of the store contents.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.answers)
}

// Records returns the store contents sorted by question.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.answers))
	for question, answer := range s.answers {
		records = append(records, Record{Question: question, Answer: answer})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Question < records[j].Question })
	return records
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.answers)
}

// Put stores the answer (last write wins) and rewrites the backend.
// The in-memory update is kept even when persisting fails.
func (s *Store) Put(ctx context.Context, question, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answers[question] = answer

	return s.persist(ctx)
}

// Clear removes every answer of the category.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answers = make(map[string]string)

	return s.persist(ctx)
}

// persist must be called with mu held.
func (s *Store) persist(ctx context.Context) error {
	if err := s.backend.Write(ctx, s.category, maps.Clone(s.answers)); err != nil {
		return fmt.Errorf("persisting %s answers: %w", s.category, err)
	}

	return nil
}
