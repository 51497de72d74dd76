package ontology

import (
	"regexp"
	"sort"
	"strings"
)

// MatchIngredients finds the known ingredients mentioned in text, in order of
// first appearance. Longer names win over names they contain, so
// "tomato sauce" does not also report "tomato".
func MatchIngredients(p Provider, text string) []Ingredient {
	lower := strings.ToLower(text)
	taken := make([]bool, len(lower))

	type hit struct {
		pos int
		in  Ingredient
	}
	var hits []hit
	seen := make(map[string]bool)

	for _, in := range p.Ingredients() {
		terms := append([]string{in.Name}, in.Aliases...)
		sort.SliceStable(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })
		for _, term := range terms {
			re := TermPattern(term)
			for _, loc := range re.FindAllStringIndex(lower, -1) {
				if overlaps(taken, loc[0], loc[1]) {
					continue
				}
				for i := loc[0]; i < loc[1]; i++ {
					taken[i] = true
				}
				if !seen[in.Name] {
					seen[in.Name] = true
					hits = append(hits, hit{pos: loc[0], in: in})
				}
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]Ingredient, len(hits))
	for i, h := range hits {
		out[i] = h.in
	}
	return out
}

// MatchIngredientNames is MatchIngredients returning canonical names
func MatchIngredientNames(p Provider, text string) []string {
	found := MatchIngredients(p, text)
	names := make([]string, len(found))
	for i, in := range found {
		names[i] = in.Name
	}
	return names
}

// TermPattern matches term as a whole word in lowercase text, tolerating a
// plural suffix
func TermPattern(term string) *regexp.Regexp {
	t := strings.ToLower(strings.TrimSpace(term))
	// match simple plural and singular forms of the term
	base := strings.TrimSuffix(t, "s")
	if strings.HasSuffix(t, "oes") {
		base = strings.TrimSuffix(t, "es")
	}
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(base) + `(?:s|es)?\b`)
}

func overlaps(taken []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if taken[i] {
			return true
		}
	}
	return false
}
