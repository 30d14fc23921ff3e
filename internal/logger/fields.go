package logger

import (
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/formfill/internal/utils"
)

const (
	// FieldCategory is the structured log field key for the answer category.
	FieldCategory = "category"
	// FieldQuestion is the structured log field key for a (shortened) question.
	FieldQuestion = "question"
	// FieldSource is the structured log field key describing where an answer came from.
	FieldSource = "answer_source"

	// DefaultQuestionLogLength limits question text in log entries.
	DefaultQuestionLogLength = 120
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// QuestionFields describes a question being resolved. The question is
// shortened to limit runes (DefaultQuestionLogLength when limit <= 0).
func QuestionFields(category, question string, limit int) []zap.Field {
	if limit <= 0 {
		limit = DefaultQuestionLogLength
	}

	return StringFields(
		StringField{Key: FieldCategory, Value: category},
		StringField{Key: FieldQuestion, Value: utils.TruncateForLog(question, limit)},
	)
}

// WithQuestion attaches QuestionFields to the logger.
func WithQuestion(logger *zap.Logger, category, question string) *zap.Logger {
	return WithFields(logger, QuestionFields(category, question, 0)...)
}
