package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/korjavin/mise/pkg/critpath"
	"github.com/korjavin/mise/pkg/kitchen"
	"github.com/korjavin/mise/pkg/messages"
	"github.com/korjavin/mise/pkg/models"
)

var (
	planOpts  compileFlags
	planServe string
	planIn    time.Duration
	planGraph string
	planJSON  bool
)

var planCmd = &cobra.Command{
	Use:   "plan [file]",
	Short: "Plan a recipe backwards from a serve time",
	Long: `Plan a recipe backwards from a serve time.

Prints the latest start of every task, the critical path and how much
time is missing if the serve time is too tight. --serve accepts a clock
time (19:30, 7:30pm, 7pm) or a duration from now (45m, 1h30m).

Examples:
  mise plan risotto.txt --serve 19:30
  mise plan --graph 3f9c2a1b7d4e --in 1h
  mise plan stew.txt --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planOpts.register(planCmd)
	planCmd.Flags().StringVar(&planServe, "serve", "", "serve time or duration from now (default: as soon as possible)")
	planCmd.Flags().DurationVar(&planIn, "in", 0, "serve this long from now")
	planCmd.Flags().StringVar(&planGraph, "graph", "", "use a stored graph instead of compiling")
	planCmd.Flags().BoolVar(&planJSON, "json", false, "print task timings as JSON")
}

// serveAt resolves --serve or --in, defaulting to the earliest possible finish
func serveAt(arg string, in time.Duration, g *models.Graph, now time.Time) (time.Time, error) {
	if in > 0 {
		return now.Add(in), nil
	}
	if arg == "" {
		res := critpath.Compute(g.Tasks, now, now)
		return now.Add(res.CriticalPathDuration), nil
	}
	return kitchen.ParseServe(arg, now)
}

func runPlan(cmd *cobra.Command, args []string) error {
	g, err := graphSource(cmd, args, &planOpts, planGraph)
	if err != nil {
		return err
	}

	now := time.Now()
	serve, err := serveAt(planServe, planIn, g, now)
	if err != nil {
		return err
	}
	res := critpath.Compute(g.Tasks, serve, now)
	if !res.Feasible {
		log.Warn("Serve time %s is %s too early", serve.Format("15:04"), res.Shortfall)
	}

	if planJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintln(os.Stdout, messages.Plan(g, res, serve))
	return nil
}
