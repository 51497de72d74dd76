package infer

import (
	"regexp"
	"strings"

	"github.com/korjavin/mise/pkg/models"
	"github.com/korjavin/mise/pkg/ontology"
)

// Equipment is the vocabulary recognized as shared cookware, longest first
var Equipment = []string{
	"food processor", "baking sheet", "baking dish", "dutch oven", "frying pan",
	"roasting tin", "casserole", "saucepan", "colander", "blender", "skillet",
	"grill", "sieve", "oven", "bowl", "tray", "pot", "pan", "wok",
}

var equipmentPatterns = compileEquipment()

func compileEquipment() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(Equipment))
	for i, e := range Equipment {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(e) + `s?\b`)
	}
	return out
}

// DetectEquipment returns the cookware mentioned in text
func DetectEquipment(text string) []string {
	lower := strings.ToLower(text)
	taken := make([]bool, len(lower))
	var found []string
	for i, re := range equipmentPatterns {
		for _, loc := range re.FindAllStringIndex(lower, -1) {
			if overlaps(taken, loc[0], loc[1]) {
				continue
			}
			for j := loc[0]; j < loc[1]; j++ {
				taken[j] = true
			}
			if !contains(found, Equipment[i]) {
				found = append(found, Equipment[i])
			}
		}
	}
	return found
}

// verbs whose output is named by the participle of the verb and the subject
var participleVerbs = map[string]bool{
	"slice": true, "dice": true, "chop": true, "mince": true, "grate": true,
	"peel": true, "zest": true, "toast": true, "melt": true, "roast": true,
	"bake": true, "sear": true, "mash": true, "saute": true, "fry": true,
	"marinate": true,
}

var mixingVerbs = map[string]bool{"combine": true, "whisk": true, "stir": true, "fold": true}

// Products derives the emergent products of a task from its verb and subject.
// The subject is the first ingredient mentioned; prev is used when the task
// names none ("Drain").
func Products(p ontology.Provider, t models.Task, ingredients []string, prev *models.Task) []models.Product {
	subject := ""
	if len(ingredients) > 0 {
		subject = ingredients[0]
	} else if prev != nil && len(prev.Outputs) > 0 {
		if _, ok := p.Ingredient(prev.Outputs[0].Ingredient); ok {
			subject = prev.Outputs[0].Ingredient
		}
	}
	starch := hasClass(p, subject, "starch")
	verb := ontology.VerbOrDefault(p, t.Verb)

	var ingredient, state string
	switch {
	case t.Verb == "boil" && starch:
		ingredient, state = subject, "boiled"
	case t.Verb == "boil":
		ingredient, state = "water", "boiling"
	case t.Verb == "cook" && subject != "" && hasClass(p, subject, "aromatic"):
		ingredient, state = subject, "sautéed"
	case t.Verb == "cook" && subject != "":
		ingredient, state = subject, "cooked"
	case t.Verb == "drain" && starch:
		ingredient, state = subject, "drained"
	case t.Verb == "reduce" && (subject == "" || hasClass(p, subject, "sauce") || hasClass(p, subject, "liquid")):
		ingredient, state = "sauce", "reduced"
	case mixingVerbs[t.Verb]:
		ingredient, state = "mixture", "combined"
	case t.Verb == "preheat":
		ingredient, state = "oven", "preheated"
	case participleVerbs[t.Verb] && subject != "":
		ingredient, state = subject, participle(verb)
	default:
		return nil
	}
	return []models.Product{Lookup(p, ingredient, state, t)}
}

// Lookup resolves the hold window of a product, falling back to the
// producing task's verb-level window
func Lookup(p ontology.Provider, ingredient, state string, producer models.Task) models.Product {
	if rec, ok := p.Product(ingredient, state); ok {
		return models.Product{Ingredient: ingredient, State: state, HoldMinutes: rec.HoldMinutes, Flexibility: rec.Flexibility}
	}
	return models.Product{Ingredient: ingredient, State: state, HoldMinutes: producer.HoldMinutes, Flexibility: producer.Flexibility}
}

func participle(v ontology.Verb) string {
	if v.Participle != "" {
		return v.Participle
	}
	if strings.HasSuffix(v.Name, "e") {
		return v.Name + "d"
	}
	return v.Name + "ed"
}

func hasClass(p ontology.Provider, name, class string) bool {
	if name == "" {
		return false
	}
	in, ok := p.Ingredient(name)
	return ok && in.HasClass(class)
}

// Classify derives the constraint of an edge to producer. A product, when
// known, decides; otherwise the producer's own flexibility is used.
func Classify(producer models.Task, product *models.Product) (models.Constraint, int) {
	flex, hold := producer.Flexibility, producer.HoldMinutes
	if product != nil {
		flex, hold = product.Flexibility, product.HoldMinutes
	} else if len(producer.Outputs) > 0 {
		flex, hold = producer.Outputs[0].Flexibility, producer.Outputs[0].HoldMinutes
	}
	if flex == models.FlexServeImmediate {
		return models.Rigid, 0
	}
	return models.Flexible, hold
}

func overlaps(taken []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if taken[i] {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
