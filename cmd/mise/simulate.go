package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/korjavin/mise/pkg/messages"
	"github.com/korjavin/mise/pkg/scheduler"
)

var (
	simOpts  compileFlags
	simGraph string
	simTick  time.Duration
	simJSON  bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [file]",
	Short: "Cook a recipe in simulated time",
	Long: `Cook a recipe in simulated time with one pair of hands.

Starts every task as soon as it is ready, finishes it after its planned
duration and reports the total time, the order of events and any task
that had to start after its waiting window closed.

Examples:
  mise simulate paella.txt
  mise simulate --graph 3f9c2a1b7d4e --tick 30s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSimulate,
}

func init() {
	simOpts.register(simulateCmd)
	simulateCmd.Flags().StringVar(&simGraph, "graph", "", "use a stored graph instead of compiling")
	simulateCmd.Flags().DurationVar(&simTick, "tick", time.Minute, "simulation step")
	simulateCmd.Flags().BoolVar(&simJSON, "json", false, "print the result as JSON")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	g, err := graphSource(cmd, args, &simOpts, simGraph)
	if err != nil {
		return err
	}
	if simTick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", simTick)
	}

	res := scheduler.Simulate(g, time.Now().Truncate(time.Minute), simTick, schedulerOptions())
	if !res.Completed {
		log.Warn("Simulation of %s got stuck after %d events", g.ID, len(res.Events))
	}

	if simJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintln(os.Stdout, messages.Simulation(g, res))
	return nil
}
