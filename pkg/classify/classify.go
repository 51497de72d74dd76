// Package classify maps a single instruction to a canonical verb and extracts
// its duration and temperature.
//
// Classification runs an ordered list of strategies and the first match wins:
// the instruction pattern table, the per-verb patterns (followed by the guard
// check), fixed keyword heuristics, and finally free text.
package classify

import (
	"regexp"
	"strings"

	"github.com/korjavin/mise/pkg/logger"
	"github.com/korjavin/mise/pkg/models"
	"github.com/korjavin/mise/pkg/ontology"
)

// Strategy sources recorded on the task
const (
	SourcePatternTable = "pattern_table"
	SourceVerbPattern  = "verb_pattern"
	SourceHeuristic    = "heuristic"
	SourceFreeText     = "free_text"
)

// Match is the outcome of one classification strategy
type Match struct {
	Verb       string
	Confidence models.Confidence
	Source     string
	Params     map[string]string
	Redirect   *models.Redirect
}

// Strategy is one tier of the classifier
type Strategy interface {
	Name() string
	Classify(text string, ingredients []string) (Match, bool)
}

// Result is a full classification of an instruction
type Result struct {
	Match
	Duration    *int
	Temperature *models.Temperature
	Ingredients []string
}

type compiledPattern struct {
	re         *regexp.Regexp
	verb       string
	confidence models.Confidence
	params     map[string]string
}

// PatternTable matches whole-instruction patterns from the ontology
type PatternTable struct {
	patterns []compiledPattern
}

// NewPatternTable compiles the ontology's instruction patterns. Patterns that
// fail to compile are skipped with a warning.
func NewPatternTable(p ontology.Provider, log *logger.Logger) *PatternTable {
	t := &PatternTable{}
	for _, ip := range p.InstructionPatterns() {
		re, err := compile(ip.Pattern)
		if err != nil {
			log.Warn("Skipping instruction pattern %q for %s: %v", ip.Pattern, ip.Verb, err)
			continue
		}
		conf := ip.Confidence
		if conf == "" {
			conf = models.ConfidenceHigh
		}
		t.patterns = append(t.patterns, compiledPattern{re: re, verb: ip.Verb, confidence: conf, params: ip.Params})
	}
	return t
}

// Name implements Strategy
func (t *PatternTable) Name() string { return SourcePatternTable }

// Classify implements Strategy
func (t *PatternTable) Classify(text string, _ []string) (Match, bool) {
	for _, p := range t.patterns {
		if p.re.MatchString(text) {
			return Match{Verb: p.verb, Confidence: p.confidence, Source: SourcePatternTable, Params: copyParams(p.params)}, true
		}
	}
	return Match{}, false
}

// VerbPatterns matches the per-verb patterns of the verb table, then applies
// guard rules to the matched verb
type VerbPatterns struct {
	ont      ontology.Provider
	patterns []compiledPattern
}

// NewVerbPatterns compiles every verb pattern in declaration order. Invalid
// patterns are skipped with a warning.
func NewVerbPatterns(p ontology.Provider, log *logger.Logger) *VerbPatterns {
	v := &VerbPatterns{ont: p}
	for _, verb := range p.Verbs() {
		for _, pat := range verb.Patterns {
			re, err := compile(pat)
			if err != nil {
				log.Warn("Skipping pattern %q for verb %s: %v", pat, verb.Name, err)
				continue
			}
			v.patterns = append(v.patterns, compiledPattern{re: re, verb: verb.Name, confidence: models.ConfidenceMedium})
		}
	}
	return v
}

// Name implements Strategy
func (v *VerbPatterns) Name() string { return SourceVerbPattern }

// Classify implements Strategy
func (v *VerbPatterns) Classify(text string, ingredients []string) (Match, bool) {
	for _, p := range v.patterns {
		if !p.re.MatchString(text) {
			continue
		}
		m := Match{Verb: p.verb, Confidence: p.confidence, Source: SourceVerbPattern}
		if verb, r := Guard(v.ont, p.verb, ingredients); r != nil {
			m.Verb = verb
			m.Redirect = r
		}
		return m, true
	}
	return Match{}, false
}

// Guard returns the replacement verb and redirect record when verb combined
// with any of the ingredients (by name or class) matches a guard rule.
// The redirect is nil when no rule applies.
func Guard(p ontology.Provider, verb string, ingredients []string) (string, *models.Redirect) {
	for _, g := range p.Guards() {
		if g.Verb != verb {
			continue
		}
		for _, name := range ingredients {
			if guardMatches(p, g.Ingredient, name) {
				return g.Redirect, &models.Redirect{
					OriginalVerb: verb,
					Ingredient:   name,
					Rationale:    g.Rationale,
					Severity:     g.Severity,
				}
			}
		}
	}
	return verb, nil
}

func guardMatches(p ontology.Provider, target, name string) bool {
	if models.NormalizeKey(target) == models.NormalizeKey(name) {
		return true
	}
	in, ok := p.Ingredient(name)
	if !ok {
		return false
	}
	return models.NormalizeKey(in.Name) == models.NormalizeKey(target) || in.HasClass(target)
}

type heuristic struct {
	re   *regexp.Regexp
	verb string
}

// Heuristics is the fixed keyword to verb fallback
type Heuristics struct {
	rules []heuristic
}

// NewHeuristics returns the built-in keyword rules
func NewHeuristics() *Heuristics {
	rules := []struct{ pattern, verb string }{
		{`\boven\b`, "bake"},
		{`\b(skillet|frying pan|wok)\b`, "cook"},
		{`\b(pot|saucepan)\b.*\bwater\b`, "boil"},
		{`\b(knife|cutting board|board)\b`, "chop"},
		{`\b(bowl|together)\b`, "combine"},
		{`\b(fridge|refrigerat)`, "chill"},
		{`\b(taste|salt and pepper)\b`, "season"},
		{`\b(plate|platter|dish up)\b`, "serve"},
		{`\b(colander|sieve)\b`, "drain"},
		{`\bpan\b`, "cook"},
		{`\b(minutes?|hours?)\b`, "cook"},
	}
	h := &Heuristics{}
	for _, r := range rules {
		h.rules = append(h.rules, heuristic{re: regexp.MustCompile(`(?i)` + r.pattern), verb: r.verb})
	}
	return h
}

// Name implements Strategy
func (h *Heuristics) Name() string { return SourceHeuristic }

// Classify implements Strategy
func (h *Heuristics) Classify(text string, _ []string) (Match, bool) {
	for _, r := range h.rules {
		if r.re.MatchString(text) {
			return Match{Verb: r.verb, Confidence: models.ConfidenceLow, Source: SourceHeuristic}, true
		}
	}
	return Match{}, false
}

// FreeText is the verb assigned when no strategy matches
const FreeText = "free_text"

// Classifier runs the strategy tiers and builds tasks
type Classifier struct {
	ont        ontology.Provider
	strategies []Strategy
	logger     *logger.Logger
}

// New creates a classifier with the default tiers built from the ontology
func New(p ontology.Provider, log *logger.Logger) *Classifier {
	if log == nil {
		log = logger.New("classify")
	}
	return NewWithStrategies(p, log,
		NewPatternTable(p, log),
		NewVerbPatterns(p, log),
		NewHeuristics(),
	)
}

// NewWithStrategies creates a classifier with an explicit tier list
func NewWithStrategies(p ontology.Provider, log *logger.Logger, strategies ...Strategy) *Classifier {
	if log == nil {
		log = logger.New("classify")
	}
	return &Classifier{ont: p, strategies: strategies, logger: log}
}

// Classify runs the tiers against text. known is an optional list of
// ingredients already associated with the instruction; ingredients detected
// in the text are added to it.
func (c *Classifier) Classify(text string, known []string) Result {
	ingredients := mergeNames(known, ontology.MatchIngredientNames(c.ont, text))

	res := Result{
		Duration:    ExtractDuration(text),
		Temperature: ExtractTemperature(text),
		Ingredients: ingredients,
	}
	for _, s := range c.strategies {
		if m, ok := s.Classify(text, ingredients); ok {
			res.Match = m
			if m.Redirect != nil {
				c.logger.Debug("Redirected %s to %s for %s", m.Redirect.OriginalVerb, m.Verb, m.Redirect.Ingredient)
			}
			return res
		}
	}
	res.Match = Match{Verb: FreeText, Confidence: models.ConfidenceLow, Source: SourceFreeText}
	return res
}

// Task classifies text and fills the verb-derived fields of a new task.
// Inputs, outputs, equipment and edges are left to dependency inference.
func (c *Classifier) Task(id, text string, known []string) models.Task {
	res := c.Classify(text, known)
	verb := ontology.VerbOrDefault(c.ont, res.Verb)

	t := models.Task{
		ID:          id,
		Text:        text,
		Verb:        res.Verb,
		Confidence:  res.Confidence,
		VerbSource:  res.Source,
		Redirect:    res.Redirect,
		Temperature: res.Temperature,
		Attention:   verb.Attention,
		HoldMinutes: verb.HoldMinutes,
		Flexibility: verb.Flexibility,
	}
	if res.Duration != nil {
		t.Duration = *res.Duration
		t.DurationSource = models.DurationExplicit
	} else {
		t.Duration = models.ClampDuration(verb.DefaultDuration)
		t.DurationSource = models.DurationDefault
	}
	return t
}

func compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)` + pattern)
}

func copyParams(p map[string]string) map[string]string {
	if p == nil {
		return nil
	}
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func mergeNames(a, b []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{a, b} {
		for _, n := range list {
			k := models.NormalizeKey(n)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, strings.TrimSpace(n))
		}
	}
	return out
}
