// Package ontology provides the read-only reference data consumed by the
// compiler: canonical verbs, guard rules, instruction patterns, ingredients
// and emergent product records.
//
// The compiler only depends on the Provider interface. Tables is the YAML
// backed implementation; Default returns the embedded reference set.
package ontology

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/korjavin/mise/pkg/models"
)

// ErrInvalid is returned when reference data fails validation
var ErrInvalid = errors.New("invalid ontology")

// Defaults for verbs missing from the reference data
const (
	DefaultHoldMinutes = 10
	DefaultDuration    = 5
)

// Verb is a canonical cooking action
type Verb struct {
	Name            string             `yaml:"name"`
	Attention       models.Attention   `yaml:"attention"`
	DefaultDuration int                `yaml:"default_duration"`
	Flexibility     models.Flexibility `yaml:"flexibility"`
	HoldMinutes     int                `yaml:"hold_minutes"`
	Participle      string             `yaml:"participle"`
	Patterns        []string           `yaml:"patterns"`
}

// Guard redirects a verb when combined with a specific ingredient
type Guard struct {
	Verb       string `yaml:"verb"`
	Ingredient string `yaml:"ingredient"`
	Redirect   string `yaml:"redirect"`
	Rationale  string `yaml:"rationale"`
	Severity   string `yaml:"severity"`
}

// InstructionPattern maps a whole-instruction pattern to a verb
type InstructionPattern struct {
	Pattern    string            `yaml:"pattern"`
	Verb       string            `yaml:"verb"`
	Confidence models.Confidence `yaml:"confidence"`
	Params     map[string]string `yaml:"params"`
}

// Ingredient is a known ingredient record
type Ingredient struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	Classes []string `yaml:"classes"`
	Verbs   []string `yaml:"verbs"`
}

// HasClass reports whether the ingredient belongs to class
func (i Ingredient) HasClass(class string) bool {
	for _, c := range i.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// ProductRecord is the hold window of an (ingredient, state) pair
type ProductRecord struct {
	Ingredient  string             `yaml:"ingredient"`
	State       string             `yaml:"state"`
	HoldMinutes int                `yaml:"hold_minutes"`
	Flexibility models.Flexibility `yaml:"flexibility"`
}

// Provider is the read-only lookup surface over the reference tables
type Provider interface {
	Verb(name string) (Verb, bool)
	Verbs() []Verb
	Guards() []Guard
	InstructionPatterns() []InstructionPattern
	Ingredient(name string) (Ingredient, bool)
	Ingredients() []Ingredient
	Product(ingredient, state string) (ProductRecord, bool)
}

// Tables is the YAML representation of the reference data
type Tables struct {
	VerbList       []Verb               `yaml:"verbs"`
	GuardList      []Guard              `yaml:"guards"`
	PatternList    []InstructionPattern `yaml:"instruction_patterns"`
	IngredientList []Ingredient         `yaml:"ingredients"`
	ProductList    []ProductRecord      `yaml:"products"`

	verbs       map[string]Verb
	ingredients map[string]Ingredient
	products    map[string]ProductRecord
}

//go:embed default.yaml
var defaultYAML []byte

// Default returns the embedded reference data
func Default() (*Tables, error) {
	return Parse(defaultYAML)
}

// MustDefault is Default for callers that cannot recover from broken embedded data
func MustDefault() *Tables {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// LoadFile reads reference data from a YAML file
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ontology %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and indexes YAML reference data
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse ontology: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.index()
	return &t, nil
}

// Validate checks required names and enum values
func (t *Tables) Validate() error {
	for i, v := range t.VerbList {
		if v.Name == "" {
			return fmt.Errorf("%w: verb %d has no name", ErrInvalid, i)
		}
		switch v.Attention {
		case "", models.AttentionAttended, models.AttentionUnattended, models.AttentionUnattendedAfterStart:
		default:
			return fmt.Errorf("%w: verb %q has unknown attention %q", ErrInvalid, v.Name, v.Attention)
		}
		if !validFlexibility(v.Flexibility) {
			return fmt.Errorf("%w: verb %q has unknown flexibility %q", ErrInvalid, v.Name, v.Flexibility)
		}
	}
	for i, g := range t.GuardList {
		if g.Verb == "" || g.Ingredient == "" || g.Redirect == "" {
			return fmt.Errorf("%w: guard %d needs verb, ingredient and redirect", ErrInvalid, i)
		}
	}
	for i, p := range t.PatternList {
		if p.Pattern == "" || p.Verb == "" {
			return fmt.Errorf("%w: instruction pattern %d needs pattern and verb", ErrInvalid, i)
		}
	}
	for i, in := range t.IngredientList {
		if in.Name == "" {
			return fmt.Errorf("%w: ingredient %d has no name", ErrInvalid, i)
		}
	}
	for i, p := range t.ProductList {
		if p.Ingredient == "" || p.State == "" {
			return fmt.Errorf("%w: product %d needs ingredient and state", ErrInvalid, i)
		}
		if !validFlexibility(p.Flexibility) {
			return fmt.Errorf("%w: product %s has unknown flexibility %q", ErrInvalid, p.Ingredient, p.Flexibility)
		}
	}
	return nil
}

func validFlexibility(f models.Flexibility) bool {
	switch f {
	case "", models.FlexServeImmediate, models.FlexHoldMinutes, models.FlexHoldHours,
		models.FlexHoldDays, models.FlexPrepAnyTime:
		return true
	}
	return false
}

func (t *Tables) index() {
	t.verbs = make(map[string]Verb, len(t.VerbList))
	for _, v := range t.VerbList {
		if v.Attention == "" {
			v.Attention = models.AttentionAttended
		}
		if v.Flexibility == "" {
			v.Flexibility = models.FlexHoldMinutes
		}
		if v.HoldMinutes == 0 {
			v.HoldMinutes = DefaultHoldWindow(v.Flexibility)
		}
		t.verbs[v.Name] = v
	}
	t.ingredients = make(map[string]Ingredient)
	for _, in := range t.IngredientList {
		t.ingredients[models.NormalizeKey(in.Name)] = in
		for _, a := range in.Aliases {
			t.ingredients[models.NormalizeKey(a)] = in
		}
	}
	t.products = make(map[string]ProductRecord, len(t.ProductList))
	for _, p := range t.ProductList {
		if p.HoldMinutes == 0 {
			p.HoldMinutes = DefaultHoldWindow(p.Flexibility)
		}
		t.products[productKey(p.Ingredient, p.State)] = p
	}
}

func productKey(ingredient, state string) string {
	return models.NormalizeKey(ingredient) + "|" + strings.ToLower(state)
}

// DefaultHoldWindow is the hold window in minutes implied by a flexibility class
func DefaultHoldWindow(f models.Flexibility) int {
	switch f {
	case models.FlexServeImmediate:
		return 0
	case models.FlexHoldMinutes:
		return 15
	case models.FlexHoldHours:
		return 120
	case models.FlexHoldDays:
		return 2880
	case models.FlexPrepAnyTime:
		return 10080
	}
	return DefaultHoldMinutes
}

// Verb looks up a canonical verb by name
func (t *Tables) Verb(name string) (Verb, bool) {
	v, ok := t.verbs[name]
	return v, ok
}

// Verbs returns the verbs in declaration order
func (t *Tables) Verbs() []Verb {
	out := make([]Verb, 0, len(t.VerbList))
	for _, v := range t.VerbList {
		out = append(out, t.verbs[v.Name])
	}
	return out
}

// Guards returns all guard rules
func (t *Tables) Guards() []Guard {
	return append([]Guard(nil), t.GuardList...)
}

// InstructionPatterns returns the pattern table in priority order
func (t *Tables) InstructionPatterns() []InstructionPattern {
	return append([]InstructionPattern(nil), t.PatternList...)
}

// Ingredient looks up an ingredient by name or alias
func (t *Tables) Ingredient(name string) (Ingredient, bool) {
	in, ok := t.ingredients[models.NormalizeKey(name)]
	return in, ok
}

// Ingredients returns the ingredient records, longest name first so that
// "tomato sauce" is matched before "tomato"
func (t *Tables) Ingredients() []Ingredient {
	out := append([]Ingredient(nil), t.IngredientList...)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Name) > len(out[j].Name)
	})
	return out
}

// Product looks up the hold window of an (ingredient, state) pair
func (t *Tables) Product(ingredient, state string) (ProductRecord, bool) {
	p, ok := t.products[productKey(ingredient, state)]
	return p, ok
}

// VerbOrDefault returns the verb record, or a conservative default for unknown verbs
func VerbOrDefault(p Provider, name string) Verb {
	if v, ok := p.Verb(name); ok {
		return v
	}
	return Verb{
		Name:            name,
		Attention:       models.AttentionAttended,
		DefaultDuration: DefaultDuration,
		Flexibility:     models.FlexHoldMinutes,
		HoldMinutes:     DefaultHoldMinutes,
	}
}

var _ Provider = (*Tables)(nil)
