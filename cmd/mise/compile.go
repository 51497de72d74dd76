package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/korjavin/mise/pkg/messages"
)

var (
	compileOpts compileFlags
	compileSave bool
	compileText bool
)

var compileCmd = &cobra.Command{
	Use:   "compile [file]",
	Short: "Compile recipe text into a task graph",
	Long: `Compile recipe text into a task graph and print it as JSON.

Reads the recipe from the file argument or stdin.

Examples:
  mise compile carbonara.txt
  cat curry.md | mise compile --strategy headers --remap
  mise compile --save --text lasagna.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompile,
}

func init() {
	compileOpts.register(compileCmd)
	compileCmd.Flags().BoolVar(&compileSave, "save", false, "store the graph so plan/run can use it with --graph")
	compileCmd.Flags().BoolVar(&compileText, "text", false, "print a readable summary instead of JSON")
}

func runCompile(cmd *cobra.Command, args []string) error {
	g, err := graphSource(cmd, args, &compileOpts, "")
	if err != nil {
		return err
	}

	if compileSave {
		k, store, err := openKitchen(nil)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := k.SaveGraph(g); err != nil {
			return err
		}
		log.Info("Saved graph %s with %d tasks", g.ID, len(g.Tasks))
	}

	if compileText {
		fmt.Fprintln(os.Stdout, messages.Graph(g))
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}
