package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parley-bot/parley/internal/activity"
	"github.com/parley-bot/parley/internal/channels"
	"github.com/parley-bot/parley/internal/config"
	"github.com/parley-bot/parley/internal/corpus"
	"github.com/parley-bot/parley/internal/engine"
	"github.com/parley-bot/parley/internal/logging"
	"github.com/parley-bot/parley/internal/monitor"
	"github.com/parley-bot/parley/internal/router"
	"github.com/parley-bot/parley/internal/runtime"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			store, err := corpus.OpenSQLite(cfg.Corpus.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			count, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			logging.Logger().Info("starting",
				"documents", count,
				"threshold", cfg.Bot.Threshold,
				"learning", cfg.Bot.Learning,
				"answering", cfg.Bot.Answering,
			)

			clock := activity.NewClock()
			gateway := channels.NewTelegram(
				cfg.Telegram.Token,
				cfg.Monitor.OperatorChatID,
				cfg.Camera.SnapshotURL,
				clock,
			)
			core := channels.NewCore(
				gateway,
				router.New(cfg.Bot.Learning, cfg.Bot.Answering),
				engine.NewAnswerer(store, clock, gateway, cfg.Bot.Threshold),
				engine.NewRecorder(store),
				clock,
			)

			var notifier monitor.Notifier
			if cfg.Monitor.OperatorChatID != 0 {
				notifier = gateway
			}
			idle := monitor.NewService(clock, notifier, cfg.Monitor.Interval)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := runServices(runCtx, idle, gateway, core); err != nil {
				return err
			}
			logging.Logger().Info("bot stopped")
			return nil
		},
	}
}

type idleService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// runServices runs the idle monitor and the gateway until ctx is cancelled or
// the gateway fails. A stop failure during shutdown is joined with the listen
// error rather than dropped.
func runServices(ctx context.Context, idle idleService, listener runtime.Listener, handler runtime.Handler) error {
	if err := idle.Start(ctx); err != nil {
		return err
	}

	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- listener.Listen(listenCtx, handler)
	}()

	var listenFailure error
	select {
	case <-ctx.Done():
	case listenFailure = <-listenErr:
		cancel()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return errors.Join(listenFailure, idle.Stop(shutdownCtx))
}
