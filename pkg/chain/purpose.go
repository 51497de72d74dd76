package chain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/korjavin/mise/pkg/models"
)

// purposeRule names a section when every keyword group has a match
type purposeRule struct {
	groups  []*regexp.Regexp
	purpose string
}

func rule(purpose string, groups ...string) purposeRule {
	r := purposeRule{purpose: purpose}
	for _, g := range groups {
		r.groups = append(r.groups, regexp.MustCompile(`(?i)\b(?:`+g+`)`))
	}
	return r
}

// ordered: the first rule whose groups all match wins
var purposeRules = []purposeRule{
	rule("Cook the Pasta", `bring`, `boil`, `macaroni|pasta|spaghetti|noodle|penne`),
	rule("Cook the Pasta", `macaroni|pasta|spaghetti|noodle|penne`, `drain|cook|boil`),
	rule("Make the Topping", `breadcrumb|crumbs|panko`, `toast|golden|crisp|topping`),
	rule("Make the Cheese Sauce", `butter`, `flour`, `milk|cream`, `cheese|cheddar|gruyere|parmesan`),
	rule("Make the Sauce", `butter`, `flour`, `milk|cream|stock`),
	rule("Make the Sauce", `sauce|gravy`, `simmer|reduce|thicken|whisk`),
	rule("Cook the Rice", `rice`, `cook|simmer|boil|steam`),
	rule("Cook the Protein", `chicken|beef|pork|bacon|salmon|steak|fish`, `sear|brown|roast|cook|fry|grill|bake`),
	rule("Build the Aromatics", `onion|garlic|shallot|leek`, `saut|soften|sweat|cook|fry`),
	rule("Preheat the Oven", `preheat`, `oven`),
	rule("Bake", `bake|oven`),
	rule("Prep the Vegetables", `chop|dice|slice|mince|peel|grate`),
	rule("Finish and Serve", `serve|plate|garnish|scatter|top with`),
}

// purpose derives a section purpose from its task texts, falling back to the
// emergent products of its tasks and then to a numbered phase
func purpose(text string, products []models.Product, index int) (string, models.Confidence) {
	for _, r := range purposeRules {
		ok := true
		for _, g := range r.groups {
			if !g.MatchString(text) {
				ok = false
				break
			}
		}
		if ok {
			return r.purpose, models.ConfidenceHigh
		}
	}
	for i := len(products) - 1; i >= 0; i-- {
		if products[i].Ingredient != "" && products[i].Ingredient != "mixture" {
			return "Prepare " + titleCase(products[i].Name()), models.ConfidenceMedium
		}
	}
	return fmt.Sprintf("Phase %d", index), models.ConfidenceLow
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// cleanTitle turns "For the sauce" into "Sauce"
func cleanTitle(title string) string {
	t := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(title), ":"))
	for _, prefix := range []string{"for the ", "to make the ", "for "} {
		if len(t) > len(prefix) && strings.EqualFold(t[:len(prefix)], prefix) {
			t = t[len(prefix):]
			break
		}
	}
	return titleCase(t)
}
