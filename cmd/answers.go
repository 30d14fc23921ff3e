package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/formfill/internal/answers"
	"github.com/spigell/formfill/internal/engine"
)

var answersCmd = &cobra.Command{
	Use:   "answers",
	Short: "Inspect and edit learned answers",
}

var answersListCmd = &cobra.Command{
	Use:   "list [category]",
	Short: "List learned answers (all categories by default)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withEngine(func(ctx context.Context, eng *engine.Engine, logger *zap.Logger) {
			categories := answers.Categories()
			if len(args) == 1 {
				category, err := answers.ParseCategory(args[0])
				if err != nil {
					logger.Fatal("parsing category", zap.Error(err))
				}
				categories = []answers.Category{category}
			}

			if err := listAnswers(cmd.OutOrStdout(), eng, categories); err != nil {
				logger.Fatal("listing answers", zap.Error(err))
			}
		})
	},
}

var answersSetCmd = &cobra.Command{
	Use:   "set <category> <question> <answer>",
	Short: "Store an answer, replacing any previous one",
	Args:  cobra.ExactArgs(3),
	Run: func(_ *cobra.Command, args []string) {
		withEngine(func(ctx context.Context, eng *engine.Engine, logger *zap.Logger) {
			store := mustStore(eng, args[0], logger)
			if err := store.Put(ctx, args[1], args[2]); err != nil {
				logger.Fatal("storing answer", zap.Error(err))
			}
			logger.Info("answer stored", zap.String("category", string(store.Category())), zap.Int("answers", store.Len()))
		})
	},
}

var answersClearCmd = &cobra.Command{
	Use:   "clear <category>",
	Short: "Remove every answer of a category",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		withEngine(func(ctx context.Context, eng *engine.Engine, logger *zap.Logger) {
			store := mustStore(eng, args[0], logger)
			cleared := store.Len()
			if err := store.Clear(ctx); err != nil {
				logger.Fatal("clearing answers", zap.Error(err))
			}
			logger.Info("answers cleared", zap.String("category", string(store.Category())), zap.Int("count", cleared))
		})
	},
}

func init() {
	answersCmd.AddCommand(answersListCmd, answersSetCmd, answersClearCmd)
	rootCmd.AddCommand(answersCmd)
}

// withEngine runs fn against a non-interactive engine.
func withEngine(fn func(ctx context.Context, eng *engine.Engine, logger *zap.Logger)) {
	ctx := context.Background()
	logger := newLogger()

	rt, err := setup(ctx, logger)
	if err != nil {
		logger.Fatal("preparing the engine", zap.Error(err))
	}
	defer rt.Close()

	fn(ctx, rt.engine, logger)
}

func mustStore(eng *engine.Engine, name string, logger *zap.Logger) *answers.Store {
	category, err := answers.ParseCategory(name)
	if err != nil {
		logger.Fatal("parsing category", zap.Error(err))
	}

	store, err := eng.Store(category)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}

	return store
}

func listAnswers(out io.Writer, eng *engine.Engine, categories []answers.Category) error {
	table := tablewriter.NewWriter(out)
	table.Header("Category", "Question", "Answer")

	total := 0
	for _, category := range categories {
		store, err := eng.Store(category)
		if err != nil {
			return err
		}

		for _, record := range store.Records() {
			if err := table.Append([]string{string(category), record.Question, record.Answer}); err != nil {
				return err
			}
			total++
		}
	}

	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, "%d answers\n", total)
	return err
}
