package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korjavin/mise/pkg/logger"
	"github.com/korjavin/mise/pkg/models"
	"github.com/korjavin/mise/pkg/ontology"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	log, _ := logger.NewObserved("classify")
	return New(ontology.MustDefault(), log)
}

func TestClassifyTiers(t *testing.T) {
	c := newClassifier(t)

	tests := []struct {
		text   string
		verb   string
		source string
		conf   models.Confidence
	}{
		{"Bring a pot of water to a boil — 10 min", "boil", SourcePatternTable, models.ConfidenceHigh},
		{"Add pasta and cook for 8 minutes", "cook", SourcePatternTable, models.ConfidenceHigh},
		{"Drain", "drain", SourcePatternTable, models.ConfidenceHigh},
		{"Finely chop the onions", "chop", SourceVerbPattern, models.ConfidenceMedium},
		{"Everything goes into a large bowl", "combine", SourceHeuristic, models.ConfidenceLow},
		{"Admire your work", FreeText, SourceFreeText, models.ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := c.Classify(tt.text, nil)
			assert.Equal(t, tt.verb, res.Verb)
			assert.Equal(t, tt.source, res.Source)
			assert.Equal(t, tt.conf, res.Confidence)
		})
	}
}

func TestPatternTableParams(t *testing.T) {
	res := newClassifier(t).Classify("Preheat the oven to 200C", nil)
	assert.Equal(t, "preheat", res.Verb)
	assert.Equal(t, "oven", res.Params["equipment"])
	require.NotNil(t, res.Temperature)
	assert.Equal(t, models.Temperature{Value: 200, Unit: "C"}, *res.Temperature)
}

func TestGuardRedirect(t *testing.T) {
	c := newClassifier(t)

	res := c.Classify("Saute the chicken until golden", nil)
	assert.Equal(t, "cook", res.Verb)
	require.NotNil(t, res.Redirect)
	assert.Equal(t, "saute", res.Redirect.OriginalVerb)
	assert.Equal(t, "chicken", res.Redirect.Ingredient)
	assert.Equal(t, "high", res.Redirect.Severity)

	// ingredient supplied by the caller rather than found in the text
	res = c.Classify("Saute it until golden", []string{"chicken"})
	assert.Equal(t, "cook", res.Verb)
	require.NotNil(t, res.Redirect)

	res = c.Classify("Saute the onions until soft", nil)
	assert.Equal(t, "saute", res.Verb)
	assert.Nil(t, res.Redirect)
}

func TestInvalidPatternsSkipped(t *testing.T) {
	tables, err := ontology.Parse([]byte(`
verbs:
  - name: chop
    patterns: ['(unclosed', '\bchop\b']
instruction_patterns:
  - pattern: '[bad'
    verb: boil
`))
	require.NoError(t, err)

	log, logs := logger.NewObserved("classify")
	c := New(tables, log)

	assert.Equal(t, 2, logs.FilterMessageSnippet("Skipping").Len())
	assert.Equal(t, "chop", c.Classify("chop the parsley", nil).Verb)
}

func TestTaskUsesVerbDefaults(t *testing.T) {
	c := newClassifier(t)

	task := c.Task("t1", "Drain", nil)
	assert.Equal(t, "drain", task.Verb)
	assert.Equal(t, models.DurationDefault, task.DurationSource)
	assert.GreaterOrEqual(t, task.Duration, models.MinDuration)

	task = c.Task("t2", "Add pasta and cook for 8 minutes", nil)
	assert.Equal(t, 8, task.Duration)
	assert.Equal(t, models.DurationExplicit, task.DurationSource)

	task = c.Task("t3", "Admire your work", nil)
	assert.Equal(t, models.AttentionAttended, task.Attention)
	assert.Equal(t, ontology.DefaultHoldMinutes, task.HoldMinutes)
	assert.Equal(t, ontology.DefaultDuration, task.Duration)
}

func TestCustomStrategies(t *testing.T) {
	c := NewWithStrategies(ontology.MustDefault(), nil, NewHeuristics())
	res := c.Classify("Bring a pot of water to a boil", nil)
	assert.Equal(t, "boil", res.Verb)
	assert.Equal(t, SourceHeuristic, res.Source)
}
