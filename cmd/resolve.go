package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/formfill/internal/answers"
	"github.com/spigell/formfill/internal/engine"
	"github.com/spigell/formfill/internal/profile"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [question]",
	Short: "Answer a form question, or each line of stdin",
	Long: `Answer a form question from the learned answers, falling back to rules,
the active profile and (when interactive) a prompt. Every new answer is learned.

Without a question argument, each non-empty stdin line is resolved in turn and
prompting is disabled.`,
	Run: func(cmd *cobra.Command, args []string) {
		resolve(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringP("category", "c", string(answers.Binary), "answer category: numeric, binary or dropdown")
	resolveCmd.Flags().StringP("profile", "p", "", "profile name (default is the profile from config or the first one)")
	resolveCmd.Flags().StringSliceP("options", "o", nil, "choices offered by the form")
	resolveCmd.Flags().Bool("no-prompt", false, "never ask on the terminal")
}

func resolve(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := newLogger()

	category, err := answers.ParseCategory(mustFlag(cmd.Flags().GetString("category")))
	if err != nil {
		logger.Fatal("parsing category", zap.Error(err))
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	noPrompt := mustFlag(cmd.Flags().GetBool("no-prompt"))
	interactive := len(args) > 0 && !noPrompt

	rt, err := setup(ctx, logger, engine.WithPrompter(newPrompter(ctx, config.AI, interactive, logger)))
	if err != nil {
		logger.Fatal("preparing the engine", zap.Error(err))
	}
	defer rt.Close()

	active, err := rt.activeProfile(mustFlag(cmd.Flags().GetString("profile")))
	if err != nil {
		logger.Fatal("selecting a profile", zap.Error(err))
	}

	if active != nil {
		logger.Debug("using profile", zap.String("profile", active.Name))
	}

	options := mustFlag(cmd.Flags().GetStringSlice("options"))
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		question := strings.Join(args, " ")
		if err := resolveOne(ctx, rt.engine, out, category, question, active, options, false); err != nil {
			logger.Fatal("resolving question", zap.Error(err))
		}
		return
	}

	if err := resolveLines(ctx, rt.engine, cmd.InOrStdin(), out, category, active, options); err != nil {
		logger.Fatal("resolving questions", zap.Error(err))
	}
}

// resolveLines resolves each non-empty line of in, stopping at the first error.
func resolveLines(ctx context.Context, eng *engine.Engine, in io.Reader, out io.Writer, category answers.Category, active *profile.Profile, options []string) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}

		if err := resolveOne(ctx, eng, out, category, question, active, options, true); err != nil {
			return err
		}
	}

	return scanner.Err()
}

func resolveOne(ctx context.Context, eng *engine.Engine, out io.Writer, category answers.Category, question string, active *profile.Profile, options []string, echoQuestion bool) error {
	result, err := eng.Resolve(ctx, engine.Request{
		Category: category,
		Question: question,
		Profile:  active,
		Options:  options,
	})
	if err != nil {
		return err
	}

	if echoQuestion {
		_, err = fmt.Fprintf(out, "%s\t%s\t%s\n", result.Status, result.Value, question)
		return err
	}

	_, err = fmt.Fprintf(out, "%s\t%s\n", result.Status, result.Value)
	return err
}

func mustFlag[T any](value T, err error) T {
	if err != nil {
		panic(err)
	}
	return value
}
