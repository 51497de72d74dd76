// Package infer derives precedence edges and emergent products between
// classified tasks.
//
// Every pass takes a task slice and returns a new one; the input slice and
// its tasks are never modified.
package infer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/korjavin/mise/pkg/logger"
	"github.com/korjavin/mise/pkg/models"
	"github.com/korjavin/mise/pkg/ontology"
)

// Mode selects how edges are inferred
type Mode string

const (
	// Sequential links every task to the one before it
	Sequential Mode = "sequential"
	// Smart uses the product and equipment registry
	Smart Mode = "smart"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case Sequential:
		return Sequential, nil
	case Smart, "":
		return Smart, nil
	}
	return "", fmt.Errorf("unknown dependency mode %q", s)
}

var (
	pronounOpener  = regexp.MustCompile(`(?i)^\s*(the|it|this|these|them|that)\b`)
	temporalMarker = regexp.MustCompile(`(?i)\b(after|once|when)\b.*\b(done|ready|cooked|finished|melted|boiling|browned|soft|softened|tender|golden|reduced|thickened|drained|cooled|cool|hot|translucent)\b`)
	whileOpener    = regexp.MustCompile(`(?i)^\s*(?:meanwhile,?\s+)?while\b`)
	addVerb        = regexp.MustCompile(`(?i)\b(add|pour|stir in|mix in|toss with)\b`)
)

var sauceSources = map[string]bool{"simmer": true, "reduce": true, "boil": true}

// Inferencer holds the reference data used by the inference passes
type Inferencer struct {
	ont    ontology.Provider
	logger *logger.Logger
}

// New creates an Inferencer
func New(p ontology.Provider, log *logger.Logger) *Inferencer {
	if log == nil {
		log = logger.New("infer")
	}
	return &Inferencer{ont: p, logger: log}
}

// Infer annotates tasks and adds edges according to mode
func (i *Inferencer) Infer(tasks []models.Task, mode Mode) []models.Task {
	annotated := i.Annotate(tasks)
	if mode == Sequential {
		return i.Sequential(annotated)
	}
	return i.Smart(annotated)
}

// Annotate fills inputs, outputs and equipment of every task
func (i *Inferencer) Annotate(tasks []models.Task) []models.Task {
	out := models.CloneTasks(tasks)
	for idx := range out {
		t := &out[idx]
		ingredients := ontology.MatchIngredientNames(i.ont, t.Text)
		if t.Redirect != nil && t.Redirect.Ingredient != "" && !contains(ingredients, t.Redirect.Ingredient) {
			ingredients = append(ingredients, t.Redirect.Ingredient)
		}
		t.Inputs = nil
		for _, name := range ingredients {
			t.Inputs = append(t.Inputs, models.Input{Ingredient: name})
		}
		t.Equipment = DetectEquipment(t.Text)

		var prev *models.Task
		if idx > 0 {
			prev = &out[idx-1]
		}
		t.Outputs = Products(i.ont, *t, ingredients, prev)
	}
	return out
}

// Sequential gives every task but the first a single FS edge to the task
// before it
func (i *Inferencer) Sequential(tasks []models.Task) []models.Task {
	out := models.CloneTasks(tasks)
	for idx := 1; idx < len(out); idx++ {
		prev := out[idx-1]
		var product *models.Product
		if len(prev.Outputs) > 0 {
			product = &prev.Outputs[0]
		}
		addEdge(&out[idx], prev, models.FinishToStart, product, models.ReasonSequence)
	}
	return out
}

type producer struct {
	taskIdx int
	product models.Product
	pattern *regexp.Regexp
}

// Smart infers edges from product flow, shared equipment, pronouns, temporal
// markers and sauce additions. A task none of these rules links has no
// predecessor.
func (i *Inferencer) Smart(tasks []models.Task) []models.Task {
	out := models.CloneTasks(tasks)
	products := make(map[string]producer)
	var productOrder []string
	equipment := make(map[string]int)

	for idx := range out {
		t := &out[idx]

		// (1) registered products referenced by the task
		for _, key := range productOrder {
			src := products[key]
			if src.taskIdx == idx || !src.pattern.MatchString(t.Text) {
				continue
			}
			prod := src.product
			addEdge(t, out[src.taskIdx], models.FinishToStart, &prod, models.ReasonProduct)
			setInputState(t, prod)
		}

		// starch cooked in water needs the water boiling
		if src, ok := products[waterKey]; ok && src.taskIdx != idx && src.product.State == "boiling" && i.cooksStarch(*t) {
			prod := src.product
			addEdge(t, out[src.taskIdx], models.FinishToStart, &prod, models.ReasonProduct)
			setInputState(t, prod)
		}

		// (2) equipment reuse
		for _, e := range t.Equipment {
			key := "equip:" + models.NormalizeKey(e)
			if last, ok := equipment[key]; ok && last != idx {
				addEdge(t, out[last], models.FinishToStart, nil, models.ReasonEquipment)
			}
			equipment[key] = idx
		}

		if idx > 0 {
			prev := out[idx-1]
			switch {
			case whileOpener.MatchString(t.Text):
				addEdge(t, prev, models.StartToStart, nil, models.ReasonTemporal)
			case pronounOpener.MatchString(t.Text):
				addEdge(t, prev, models.FinishToStart, nil, models.ReasonPronoun)
			case temporalMarker.MatchString(t.Text):
				addEdge(t, prev, models.FinishToStart, nil, models.ReasonTemporal)
			case elliptical(*t):
				// "Drain", "Serve hot": the object left out is what came before
				var product *models.Product
				if len(prev.Outputs) > 0 {
					product = &prev.Outputs[0]
				}
				addEdge(t, prev, models.FinishToStart, product, models.ReasonPronoun)
			}
		}

		// (5) adding a sauce or liquid waits for the nearest simmer/reduce/boil
		if addVerb.MatchString(t.Text) && i.addsSauce(*t) {
			for j := idx - 1; j >= 0; j-- {
				if sauceSources[out[j].Verb] {
					addEdge(t, out[j], models.FinishToStart, nil, models.ReasonSauce)
					break
				}
			}
		}

		for _, p := range t.Outputs {
			key := models.NormalizeKey(p.Ingredient)
			if _, seen := products[key]; !seen {
				productOrder = append(productOrder, key)
			}
			products[key] = producer{taskIdx: idx, product: p, pattern: ontology.TermPattern(p.Ingredient)}
		}
	}
	return out
}

// waterKey is the registry key boiling water is produced under
var waterKey = models.NormalizeKey("water")

// maxEllipticalWords bounds steps that name neither ingredient nor equipment
// and still count as referring to the step before
const maxEllipticalWords = 3

func elliptical(t models.Task) bool {
	return len(t.Inputs) == 0 && len(t.Equipment) == 0 && len(strings.Fields(t.Text)) <= maxEllipticalWords
}

func (i *Inferencer) cooksStarch(t models.Task) bool {
	if t.Verb != "cook" && t.Verb != "boil" {
		return false
	}
	for _, in := range t.Inputs {
		if hasClass(i.ont, in.Ingredient, "starch") {
			return true
		}
	}
	return false
}

func (i *Inferencer) addsSauce(t models.Task) bool {
	for _, in := range t.Inputs {
		if hasClass(i.ont, in.Ingredient, "sauce") || hasClass(i.ont, in.Ingredient, "liquid") {
			return true
		}
	}
	return false
}

func setInputState(t *models.Task, p models.Product) {
	key := models.NormalizeKey(p.Ingredient)
	for k, in := range t.Inputs {
		if models.NormalizeKey(in.Ingredient) == key {
			t.Inputs[k].State = p.State
			return
		}
	}
	t.Inputs = append(t.Inputs, models.Input{Ingredient: p.Ingredient, State: p.State})
}

// addEdge adds an edge from t to pred unless one already exists
func addEdge(t *models.Task, pred models.Task, rel models.Relation, product *models.Product, reason string) {
	if t.ID == pred.ID || t.HasEdgeTo(pred.ID) {
		return
	}
	constraint, hold := Classify(pred, product)
	e := models.Edge{
		Predecessor: pred.ID,
		Relation:    rel,
		Constraint:  constraint,
		HoldMinutes: hold,
		Reason:      reason,
	}
	if product != nil {
		e.Product = product.Name()
	}
	t.Edges = append(t.Edges, e)
}
