// Package chain groups compiled tasks into chains, the phases of a recipe
// such as "Cook the Pasta" or "Make the Topping".
package chain

import (
	"fmt"
	"strings"

	"github.com/korjavin/mise/pkg/logger"
	"github.com/korjavin/mise/pkg/models"
	"github.com/korjavin/mise/pkg/ontology"
)

// Strategy selects how chains are detected
type Strategy string

const (
	Auto      Strategy = "auto"
	Headers   Strategy = "headers"
	Cluster   Strategy = "cluster"
	Narrative Strategy = "narrative"
	None      Strategy = "none"
)

// ParseStrategy validates a strategy name
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case Auto, Headers, Cluster, Narrative, None:
		return st, nil
	case "":
		return Auto, nil
	}
	return "", fmt.Errorf("unknown chain strategy %q", s)
}

// Choose picks a concrete strategy for text: headers when header lines
// exist, narrative for several paragraphs or temporal markers, clustering
// otherwise
func Choose(text string) Strategy {
	switch {
	case HasHeaders(text):
		return Headers
	case HasNarrativeCues(text):
		return Narrative
	}
	return Cluster
}

// Detector detects chains over classified and linked tasks
type Detector struct {
	ont    ontology.Provider
	logger *logger.Logger
}

// New creates a Detector
func New(p ontology.Provider, log *logger.Logger) *Detector {
	if log == nil {
		log = logger.New("chain")
	}
	return &Detector{ont: p, logger: log}
}

// Detect groups tasks into chains with strategy s and returns the chains and
// the strategy actually used. Auto is resolved with Choose.
func (d *Detector) Detect(text string, tasks []models.Task, s Strategy) ([]models.Chain, Strategy) {
	if s == Auto || s == "" {
		s = Choose(text)
	}
	var chains []models.Chain
	switch s {
	case Headers:
		chains = d.Headers(text, tasks)
	case Narrative:
		chains = d.Narrative(text, tasks)
	case Cluster:
		chains = d.Cluster(tasks)
	case None:
		return nil, None
	}
	d.logger.Debug("Detected %d chains with %s strategy", len(chains), s)
	return chains, s
}

// Headers builds one chain per header-delimited section
func (d *Detector) Headers(text string, tasks []models.Task) []models.Chain {
	return d.fromSections(headerSections(text), tasks)
}

// Narrative builds one chain per paragraph or temporal-marker section.
// Sections opened by a marker such as "Meanwhile" run in parallel.
func (d *Detector) Narrative(text string, tasks []models.Task) []models.Chain {
	return d.fromSections(narrativeSections(text), tasks)
}

func (d *Detector) fromSections(sections []section, tasks []models.Task) []models.Chain {
	members := assign(sections, tasks)
	var chains []models.Chain
	for i, s := range sections {
		if len(members[i]) == 0 {
			continue
		}
		c := models.Chain{TemporalMarker: s.marker, Parallel: s.marker != ""}
		var texts []string
		for _, ti := range members[i] {
			c.TaskIDs = append(c.TaskIDs, tasks[ti].ID)
			c.Outputs = appendProducts(c.Outputs, tasks[ti].Outputs)
			texts = append(texts, tasks[ti].Text)
		}
		c.Purpose, c.Confidence = purpose(strings.Join(texts, " "), c.Outputs, len(chains)+1)
		c.Name = c.Purpose
		if s.title != "" {
			c.Name = cleanTitle(s.title)
			c.Confidence = models.ConfidenceHigh
		}
		chains = append(chains, c)
	}
	return d.finish(chains, tasks)
}

// finish discards weak chains, numbers the rest and links them
func (d *Detector) finish(chains []models.Chain, tasks []models.Task) []models.Chain {
	var kept []models.Chain
	for _, c := range chains {
		if c.Confidence == models.ConfidenceLow && len(c.TaskIDs) <= 1 {
			d.logger.Debug("Discarding low confidence chain %q", c.Name)
			continue
		}
		kept = append(kept, c)
	}
	for i := range kept {
		kept[i].ID = fmt.Sprintf("c%d", i+1)
	}
	return Link(kept, tasks)
}

// Link adds chain dependencies: a chain depends on an earlier chain when the
// text of its tasks names one of that chain's outputs by ingredient, by the
// last word of the ingredient, or by its state
func Link(chains []models.Chain, tasks []models.Task) []models.Chain {
	text := make(map[string]string, len(tasks))
	for _, t := range tasks {
		text[t.ID] = t.Text
	}

	out := make([]models.Chain, len(chains))
	for j, c := range chains {
		c = c.Clone()
		c.Inputs, c.DependsOn = nil, nil
		var body []string
		for _, id := range c.TaskIDs {
			body = append(body, text[id])
		}
		joined := strings.Join(body, " ")

		for i := 0; i < j; i++ {
			for _, p := range chains[i].Outputs {
				term, ok := references(joined, p)
				if !ok {
					continue
				}
				c.Inputs = append(c.Inputs, models.ChainInput{Product: p, FromChain: chains[i].ID})
				if !dependsOn(c, chains[i].ID) {
					c.DependsOn = append(c.DependsOn, models.ChainEdge{
						Chain:  chains[i].ID,
						Reason: fmt.Sprintf("references %q (%s)", term, p.Name()),
					})
				}
			}
		}
		out[j] = c
	}
	return out
}

// references reports the term by which text names product p
func references(text string, p models.Product) (string, bool) {
	terms := []string{p.Ingredient}
	if words := strings.Fields(p.Ingredient); len(words) > 1 {
		terms = append(terms, words[len(words)-1])
	}
	if p.State != "" {
		terms = append(terms, p.State)
	}
	for _, term := range terms {
		if term == "mixture" {
			continue
		}
		if ontology.TermPattern(term).MatchString(text) {
			return term, true
		}
	}
	return "", false
}

func dependsOn(c models.Chain, id string) bool {
	for _, e := range c.DependsOn {
		if e.Chain == id {
			return true
		}
	}
	return false
}

func appendProducts(list, add []models.Product) []models.Product {
	for _, p := range add {
		dup := false
		for _, q := range list {
			if q.Key() == p.Key() {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, p)
		}
	}
	return list
}
