package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/formfill/internal/rules"
	"github.com/spigell/formfill/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the resolver over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default is server.addr from config, :8080)")
	serveCmd.Flags().Bool("watch", false, "reload the vocabulary file when it changes")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.watch", serveCmd.Flags().Lookup("watch"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()

	rt, err := setup(ctx, logger)
	if err != nil {
		logger.Fatal("preparing the engine", zap.Error(err))
	}
	defer rt.Close()

	logger.Info("starting the formfill server", zap.String("version", buildVersion()))

	srv := server.New(rt.engine, rt.profiles, rt.reloadVocabulary, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, rt.config.Server.Addr)
	})

	if rt.config.Server.Watch {
		if rt.config.Vocabulary == "" {
			logger.Warn("nothing to watch, the built-in vocabulary is in use")
		} else {
			watcher, err := rules.NewWatcher(rt.config.Vocabulary, rules.DefaultDebounce, logger)
			if err != nil {
				logger.Fatal("watching vocabulary", zap.Error(err))
			}

			g.Go(func() error {
				return watcher.Run(gctx, func(vocabulary *rules.Vocabulary) {
					if err := rt.engine.Reload(vocabulary); err != nil {
						logger.Warn("applying reloaded vocabulary failed", zap.Error(err))
					}
				})
			})
		}
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatal("serving", zap.Error(err))
	}

	logger.Info("server stopped")
}
