package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/korjavin/mise/pkg/metrics"
	"github.com/korjavin/mise/pkg/state"
	"github.com/korjavin/mise/pkg/telegram"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram cooking assistant",
	Long: `Run the Telegram cooking assistant.

Chats send a recipe with /recipe, plan it with /plan, cook it with /begin
and report progress with /start and /done. Every cooking session gets its
own runner that pings the chat when tasks become ready.

Examples:
  MISE_TELEGRAM_TOKEN=123:abc mise bot
  mise bot --config mise.yaml`,
	Args: cobra.NoArgs,
	RunE: runBot,
}

func runBot(cmd *cobra.Command, _ []string) error {
	if cfg.Telegram.Token == "" {
		return errors.New("telegram token is not configured")
	}

	comp, err := newCompiler()
	if err != nil {
		return err
	}
	k, store, err := openKitchen(comp)
	if err != nil {
		return err
	}
	defer store.Close()

	bot, err := telegram.New(cfg.Telegram.Token)
	if err != nil {
		return err
	}

	m := metrics.New()
	h := telegram.NewHandlers(k, state.New(), bot, compilerDefaults())
	h.RunnerInterval = cfg.Scheduler.TickInterval
	h.Observer = m
	if ex := extractor(); ex != nil {
		h.Ingredients = ex
	}
	defer h.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Bot started, listening for updates")
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return bot.Start(gctx, h.Router()) })
	group.Go(func() error { return serveMetrics(gctx, cfg.Metrics.Addr, m.Handler()) })
	group.Go(func() error { return collectGarbage(gctx, store) })
	return group.Wait()
}
