package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/korjavin/mise/pkg/critpath"
	"github.com/korjavin/mise/pkg/kitchen"
	"github.com/korjavin/mise/pkg/messages"
	"github.com/korjavin/mise/pkg/metrics"
	"github.com/korjavin/mise/pkg/scheduler"
	"github.com/korjavin/mise/pkg/state"
	"github.com/korjavin/mise/pkg/telegram"
)

var (
	runOpts  compileFlags
	runServe string
	runIn    time.Duration
	runGraph string
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Cook a recipe with live notifications",
	Long: `Cook a recipe with live notifications.

Begins a cooking session and evaluates it every tick, printing when a
task becomes ready, runs past its planned time or misses its waiting
window. Drive it by typing commands on stdin:

  start <task>   you started a task
  done <task>    you finished a task
  start! <task>  start a task anyway after its window was missed
  status         what is running, ready and waiting
  plan           latest starts against the serve time
  quit           stop cooking

When a Telegram token and chat id are configured, notifications also go
to the chat and its buttons and commands drive the same session.

Examples:
  mise run ramen.txt --serve 20:00
  mise run --graph 3f9c2a1b7d4e --serve 1h15m`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runOpts.register(runCmd)
	runCmd.Flags().StringVar(&runServe, "serve", "", "serve time or duration from now (default: as soon as possible)")
	runCmd.Flags().DurationVar(&runIn, "in", 0, "serve this long from now")
	runCmd.Flags().StringVar(&runGraph, "graph", "", "use a stored graph instead of compiling")
}

func runRun(cmd *cobra.Command, args []string) error {
	if runGraph == "" && (len(args) == 0 || args[0] == "-") {
		return errors.New("run reads commands from stdin, pass the recipe as a file or use --graph")
	}
	g, err := graphSource(cmd, args, &runOpts, runGraph)
	if err != nil {
		return err
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

	if err := k.SaveGraph(g); err != nil {
		return err
	}
	now := time.Now()
	serve, err := serveAt(runServe, runIn, g, now)
	if err != nil {
		return err
	}
	session, err := k.BeginSession(g.ID, serve)
	if err != nil {
		return err
	}
	live, err := k.Live(session.ID)
	if err != nil {
		return err
	}

	m := metrics.New()
	m.SetShortfall(critpath.Compute(g.Tasks, serve, now).Shortfall)
	log.Info("Began session %s for graph %s, serving at %s", session.ID, g.ID, serve.Format(time.Kitchen))

	opts := []scheduler.RunnerOption{
		scheduler.WithObserver(m),
		scheduler.WithLogger(log.Named("runner")),
		scheduler.WithNotifier(scheduler.NotifierFunc(func(_ context.Context, ev scheduler.Event) error {
			_, err := fmt.Fprintln(os.Stdout, messages.Event(ev))
			return err
		})),
	}

	var bot *telegram.Bot
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		bot, err = telegram.New(cfg.Telegram.Token)
		if err != nil {
			return err
		}
		opts = append(opts, scheduler.WithNotifier(telegram.NewNotifier(bot, cfg.Telegram.ChatID)))
	}
	runner := scheduler.NewRunner(live, cfg.Scheduler.TickInterval, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plan, err := k.Plan(session.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "🍳 Cooking %s, serving at %s.\n\n%s\n", g.ID, serve.Format("15:04"), messages.Plan(g, plan, serve))

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer stop()
		return quiet(runner.Run(gctx))
	})
	group.Go(func() error { return serveMetrics(gctx, cfg.Metrics.Addr, m.Handler()) })
	group.Go(func() error { return collectGarbage(gctx, store) })
	if bot != nil {
		states := state.New()
		states.SetGraph(cfg.Telegram.ChatID, g.ID)
		states.SetSession(cfg.Telegram.ChatID, session.ID)
		h := telegram.NewHandlers(k, states, bot, compilerDefaults())
		h.Observer = m
		group.Go(func() error { return bot.Start(gctx, h.Router()) })
	}

	go func() {
		readCommands(gctx, os.Stdin, k, session.ID)
		stop()
	}()

	err = group.Wait()
	if endErr := k.EndSession(session.ID); endErr != nil {
		log.Error("Failed to end session %s: %v", session.ID, endErr)
	}
	return err
}

// readCommands applies cook commands from r until EOF, quit or ctx is done
func readCommands(ctx context.Context, r io.Reader, k *kitchen.Service, sessionID string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		out, quit := command(k, sessionID, fields)
		if out != "" {
			fmt.Fprintln(os.Stdout, out)
		}
		if quit {
			return
		}
	}
}

// command runs one cook command and returns its output
func command(k *kitchen.Service, sessionID string, fields []string) (string, bool) {
	switch fields[0] {
	case "quit", "exit", "end":
		return "👋 Done cooking.", true
	case "status":
		snap, err := k.Snapshot(sessionID)
		if err != nil {
			return err.Error(), false
		}
		live, err := k.Live(sessionID)
		if err != nil {
			return err.Error(), false
		}
		return messages.Snapshot(live.Graph(), snap), false
	case "plan":
		st, err := k.Session(sessionID)
		if err != nil {
			return err.Error(), false
		}
		res, err := k.Plan(sessionID)
		if err != nil {
			return err.Error(), false
		}
		g, err := k.Graph(st.GraphID)
		if err != nil {
			return err.Error(), false
		}
		return messages.Plan(g, res, st.ServeAt), false
	case "start", "start!", "done":
		if len(fields) < 2 {
			return fmt.Sprintf("usage: %s <task>", fields[0]), false
		}
		fn := k.StartTask
		switch fields[0] {
		case "start!":
			fn = k.StartTaskLate
		case "done":
			fn = k.FinishTask
		}
		if _, err := fn(sessionID, fields[1]); err != nil {
			var terr *scheduler.TransitionError
			if errors.As(err, &terr) {
				return fmt.Sprintf("🙅 Can't %s %s now, it is %s.", terr.Event, terr.TaskID, strings.ReplaceAll(string(terr.From), "_", " ")), false
			}
			return err.Error(), false
		}
		return "👍 Got it.", false
	}
	return fmt.Sprintf("unknown command %q, try start, start!, done, status, plan or quit", fields[0]), false
}
