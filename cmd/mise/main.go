// Package main implements the mise CLI: compile recipes into task graphs,
// plan them against a serve time and run them in the kitchen.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/korjavin/mise/pkg/chain"
	"github.com/korjavin/mise/pkg/compiler"
	"github.com/korjavin/mise/pkg/config"
	"github.com/korjavin/mise/pkg/infer"
	"github.com/korjavin/mise/pkg/kitchen"
	"github.com/korjavin/mise/pkg/logger"
	"github.com/korjavin/mise/pkg/models"
	"github.com/korjavin/mise/pkg/ontology"
	"github.com/korjavin/mise/pkg/openai"
	"github.com/korjavin/mise/pkg/scheduler"
	"github.com/korjavin/mise/pkg/segment"
	"github.com/korjavin/mise/pkg/storage"
)

var (
	// configPath is an optional YAML config file
	configPath string
	// version information
	version = "dev"

	cfg *config.Config
	log = logger.New("mise")
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mise",
	Short: "Recipe task compiler and cooking scheduler",
	Long: `mise turns free-form recipe text into a graph of cooking tasks,
plans it backwards from a serve time and tells you what to do next.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := logger.Configure(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
			return err
		}
		log = logger.New("mise")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(compileCmd, planCmd, simulateCmd, runCmd, botCmd)
}

// compileFlags are shared by every command that compiles recipe text
type compileFlags struct {
	mode        string
	strategy    string
	remap       bool
	ingredients []string
	title       string
}

func (f *compileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mode, "mode", "", "dependency mode: smart or sequential (default from config)")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "chain strategy: auto, headers, cluster, narrative or none (default from config)")
	cmd.Flags().BoolVar(&f.remap, "remap", false, "rewrite task ids as c<chain>.s<step>")
	cmd.Flags().StringSliceVar(&f.ingredients, "ingredients", nil, "recipe ingredient list used for guard checks")
	cmd.Flags().StringVar(&f.title, "title", "", "recipe title")
}

// compilerDefaults are the compile options from config alone
func compilerDefaults() compiler.Options {
	var f compileFlags
	opts, err := f.options()
	if err != nil {
		log.Warn("Invalid compiler config, using defaults: %v", err)
		return compiler.Options{}
	}
	return opts
}

func (f *compileFlags) options() (compiler.Options, error) {
	modeName, strategyName := f.mode, f.strategy
	if modeName == "" {
		modeName = cfg.Compiler.DependencyMode
	}
	if strategyName == "" {
		strategyName = cfg.Compiler.ChainStrategy
	}
	mode, err := infer.ParseMode(modeName)
	if err != nil {
		return compiler.Options{}, err
	}
	strategy, err := chain.ParseStrategy(strategyName)
	if err != nil {
		return compiler.Options{}, err
	}
	return compiler.Options{
		Mode:        mode,
		Strategy:    strategy,
		RemapIDs:    f.remap || cfg.Compiler.RemapIDs,
		Ingredients: f.ingredients,
		Title:       f.title,
	}, nil
}

// readInput reads a file argument or stdin
func readInput(args []string) (string, error) {
	var content []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
	}
	if strings.TrimSpace(string(content)) == "" {
		return "", fmt.Errorf("no recipe text")
	}
	return string(content), nil
}

func loadOntology() (*ontology.Tables, error) {
	if cfg.Ontology.Path != "" {
		return ontology.LoadFile(cfg.Ontology.Path)
	}
	return ontology.Default()
}

// extractor returns the LLM extractor when an API key is configured
func extractor() *openai.Extractor {
	if !cfg.OpenAI.Enabled() {
		return nil
	}
	return openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.APIBase, cfg.OpenAI.Model, cfg.OpenAI.Timeout)
}

func newCompiler() (*compiler.Compiler, error) {
	tables, err := loadOntology()
	if err != nil {
		return nil, err
	}
	var seg segment.Segmenter = segment.Lexical{}
	if ex := extractor(); ex != nil {
		seg = segment.WithFallback(ex, segment.Lexical{}, log.Named("segment"))
	}
	return compiler.New(tables, seg, log.Named("compiler")), nil
}

func schedulerOptions() scheduler.Options {
	return scheduler.Options{RigidBuffer: cfg.Scheduler.RigidBuffer}
}

// openKitchen opens the store and the kitchen service on top of it
func openKitchen(comp *compiler.Compiler) (*kitchen.Service, *storage.Store, error) {
	store, err := storage.New(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return kitchen.New(store, comp, schedulerOptions()), store, nil
}

// graphSource compiles the file argument or loads --graph from the store
func graphSource(cmd *cobra.Command, args []string, flags *compileFlags, graphID string) (*models.Graph, error) {
	if graphID != "" {
		k, store, err := openKitchen(nil)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return k.Graph(graphID)
	}

	text, err := readInput(args)
	if err != nil {
		return nil, err
	}
	opts, err := flags.options()
	if err != nil {
		return nil, err
	}
	comp, err := newCompiler()
	if err != nil {
		return nil, err
	}
	return comp.Compile(cmd.Context(), text, opts)
}
