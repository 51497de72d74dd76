// Package compiler turns recipe text into a task graph:
// segment, classify, infer edges, detect chains, link chains, remap ids.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/korjavin/mise/pkg/chain"
	"github.com/korjavin/mise/pkg/classify"
	"github.com/korjavin/mise/pkg/infer"
	"github.com/korjavin/mise/pkg/logger"
	"github.com/korjavin/mise/pkg/models"
	"github.com/korjavin/mise/pkg/ontology"
	"github.com/korjavin/mise/pkg/segment"
)

// ErrEmptyRecipe is returned when the text holds no instructions
var ErrEmptyRecipe = errors.New("recipe has no instructions")

// Namespace is the UUID namespace graph ids are derived in
var Namespace = uuid.MustParse("6f1c1c8e-3d2b-5a4f-9e57-0b8f6a4c2d11")

// Options control a single compilation
type Options struct {
	Mode     infer.Mode
	Strategy chain.Strategy
	// RemapIDs rewrites task ids to c<chain>.s<step> after chain detection
	RemapIDs bool
	// Ingredients is an optional recipe ingredient list used for guard checks
	Ingredients []string
	Title       string
}

// Compiler holds the pipeline stages
type Compiler struct {
	segmenter  segment.Segmenter
	classifier *classify.Classifier
	inferencer *infer.Inferencer
	detector   *chain.Detector
	logger     *logger.Logger
}

// New creates a compiler over the ontology. A nil segmenter uses the local
// lexical rules.
func New(p ontology.Provider, seg segment.Segmenter, log *logger.Logger) *Compiler {
	if log == nil {
		log = logger.New("compiler")
	}
	if seg == nil {
		seg = segment.Lexical{}
	}
	return &Compiler{
		segmenter:  seg,
		classifier: classify.New(p, log.Named("classify")),
		inferencer: infer.New(p, log.Named("infer")),
		detector:   chain.New(p, log.Named("chain")),
		logger:     log,
	}
}

// Compile runs the pipeline over text
func (c *Compiler) Compile(ctx context.Context, text string, opts Options) (*models.Graph, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyRecipe
	}
	if opts.Mode == "" {
		opts.Mode = infer.Smart
	}
	if opts.Strategy == "" {
		opts.Strategy = chain.Auto
	}

	steps, err := c.segmenter.Segment(ctx, text)
	if err != nil {
		c.logger.Warn("Segmenter failed, using local rules: %v", err)
		steps = segment.Split(text)
	}
	if len(steps) == 0 {
		return nil, ErrEmptyRecipe
	}

	tasks := make([]models.Task, len(steps))
	for i, step := range steps {
		tasks[i] = c.classifier.Task(fmt.Sprintf("t%d", i+1), step, opts.Ingredients)
	}

	tasks = c.inferencer.Infer(tasks, opts.Mode)
	chains, used := c.detector.Detect(text, tasks, opts.Strategy)
	tasks = infer.DetachParallel(tasks, chains)
	tasks = c.inferencer.CrossChain(tasks, chains)

	if opts.RemapIDs {
		tasks, chains, err = chain.Remap(tasks, chains)
		if err != nil {
			return nil, fmt.Errorf("failed to remap task ids: %w", err)
		}
	}

	g := &models.Graph{
		ID:       GraphID(text, opts),
		Title:    opts.Title,
		Mode:     string(opts.Mode),
		Strategy: string(used),
		Tasks:    tasks,
		Chains:   chains,
	}
	c.logger.Info("Compiled %d tasks into %d chains (%s, %s)", len(g.Tasks), len(g.Chains), g.Mode, g.Strategy)
	return g, nil
}

// GraphID derives a stable id from the text and the options that shape the graph
func GraphID(text string, opts Options) string {
	key := fmt.Sprintf("%s|%s|%t|%s", opts.Mode, opts.Strategy, opts.RemapIDs, segment.Normalize(text))
	return uuid.NewSHA1(Namespace, []byte(key)).String()
}
