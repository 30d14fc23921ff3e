package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/formfill/internal/answers"
	"github.com/spigell/formfill/internal/logger"
)

// LearningLoop writes accepted answers back into their store.
type LearningLoop struct {
	logger *zap.Logger
}

func NewLearningLoop(log *zap.Logger) *LearningLoop {
	return &LearningLoop{logger: logger.WithFields(log)}
}

// Record stores the answer. A persistence failure is logged and reported
// with false; the answer stays in memory for the rest of the run.
func (l *LearningLoop) Record(ctx context.Context, store *answers.Store, question, answer string) bool {
	log := logger.WithQuestion(l.logger, string(store.Category()), question)

	if err := store.Put(ctx, question, answer); err != nil {
		log.Error("persisting learned answer failed, keeping it in memory", zap.Error(err))
		return false
	}

	log.Debug("learned answer", zap.String("answer", answer), zap.Int("store_size", store.Len()))
	return true
}
