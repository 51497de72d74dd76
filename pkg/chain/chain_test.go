package chain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korjavin/mise/pkg/classify"
	"github.com/korjavin/mise/pkg/infer"
	"github.com/korjavin/mise/pkg/logger"
	"github.com/korjavin/mise/pkg/models"
	"github.com/korjavin/mise/pkg/ontology"
	"github.com/korjavin/mise/pkg/segment"
)

func build(t *testing.T, text string) []models.Task {
	t.Helper()
	log, _ := logger.NewObserved("test")
	ont := ontology.MustDefault()
	c := classify.New(ont, log)
	var tasks []models.Task
	for i, step := range segment.Split(text) {
		tasks = append(tasks, c.Task(fmt.Sprintf("t%d", i+1), step, nil))
	}
	return infer.New(ont, log).Infer(tasks, infer.Smart)
}

func newDetector() *Detector {
	log, _ := logger.NewObserved("chain")
	return New(ontology.MustDefault(), log)
}

const macAndCheese = `Bring a large pot of water to a boil.
Add the macaroni and cook for 8 minutes.
Drain the macaroni.

Meanwhile, in a separate pan, toast the breadcrumbs in the butter until golden.
Season the crumbs with a pinch of salt.`

func TestNarrativeParallelSection(t *testing.T) {
	tasks := build(t, macAndCheese)
	require.Len(t, tasks, 5)

	chains, used := newDetector().Detect(macAndCheese, tasks, Auto)
	assert.Equal(t, Narrative, used)
	require.Len(t, chains, 2)

	pasta, topping := chains[0], chains[1]
	assert.Equal(t, "Cook the Pasta", pasta.Purpose)
	assert.Equal(t, models.ConfidenceHigh, pasta.Confidence)
	assert.Equal(t, []string{"t1", "t2", "t3"}, pasta.TaskIDs)
	assert.False(t, pasta.Parallel)

	assert.Equal(t, "Make the Topping", topping.Purpose)
	assert.Equal(t, []string{"t4", "t5"}, topping.TaskIDs)
	assert.Equal(t, "meanwhile", topping.TemporalMarker)
	assert.True(t, topping.Parallel)
	assert.Empty(t, topping.DependsOn)
	assert.Empty(t, topping.Inputs)

	var outputs []string
	for _, p := range pasta.Outputs {
		outputs = append(outputs, p.Name())
	}
	assert.Equal(t, []string{"boiling water", "cooked macaroni", "drained macaroni"}, outputs)
}

func TestNarrativeDependsOnReferencedOutput(t *testing.T) {
	text := macAndCheese + "\n\nToss the drained macaroni with the toasted breadcrumbs and serve."
	tasks := build(t, text)

	chains := newDetector().Narrative(text, tasks)
	require.Len(t, chains, 3)

	final := chains[2]
	require.Len(t, final.DependsOn, 2)
	assert.Equal(t, "c1", final.DependsOn[0].Chain)
	assert.Equal(t, "c2", final.DependsOn[1].Chain)
	assert.Contains(t, final.DependsOn[0].Reason, "macaroni")
	assert.NotEmpty(t, final.Inputs)
	assert.Empty(t, chains[1].DependsOn, "chains only depend on earlier chains")
}

func TestNarrativeSingleParagraph(t *testing.T) {
	text := strings.Join(strings.Fields(macAndCheese), " ")
	tasks := build(t, text)
	require.Len(t, tasks, 5)

	chains, used := newDetector().Detect(text, tasks, Auto)
	assert.Equal(t, Narrative, used)
	require.Len(t, chains, 2)

	assert.Equal(t, []string{"t1", "t2", "t3"}, chains[0].TaskIDs)
	assert.False(t, chains[0].Parallel)
	assert.Empty(t, chains[0].TemporalMarker)

	assert.Equal(t, []string{"t4", "t5"}, chains[1].TaskIDs)
	assert.Equal(t, "meanwhile", chains[1].TemporalMarker)
	assert.True(t, chains[1].Parallel)
}

func TestNarrativeTaskSpanningSections(t *testing.T) {
	log, _ := logger.NewObserved("test")
	c := classify.New(ontology.MustDefault(), log)
	text := "Bring a large pot of water to a boil. Add the macaroni and cook for 8 minutes. " +
		"Meanwhile, in a separate pan, toast the breadcrumbs in the butter until golden."
	tasks := []models.Task{
		c.Task("t1", "Bring a large pot of water to a boil. Add the macaroni and cook for 8 minutes.", nil),
		c.Task("t2", "Meanwhile, in a separate pan, toast the breadcrumbs in the butter until golden.", nil),
	}

	chains := newDetector().Narrative(text, tasks)
	require.Len(t, chains, 2)
	assert.Equal(t, []string{"t1"}, chains[0].TaskIDs)
	assert.False(t, chains[0].Parallel)
	assert.Equal(t, []string{"t2"}, chains[1].TaskIDs)
	assert.True(t, chains[1].Parallel)
}

func TestHeadersStrategy(t *testing.T) {
	text := `## For the sauce
Melt the butter in a saucepan.
Whisk in the flour and cook for 2 minutes.

## For the pasta
Bring a pot of water to a boil.
Cook the macaroni for 8 minutes.`

	tasks := build(t, text)
	require.Len(t, tasks, 4)

	chains, used := newDetector().Detect(text, tasks, Auto)
	assert.Equal(t, Headers, used)
	require.Len(t, chains, 2)
	assert.Equal(t, "Sauce", chains[0].Name)
	assert.Equal(t, []string{"t1", "t2"}, chains[0].TaskIDs)
	assert.Equal(t, "Pasta", chains[1].Name)
	assert.Equal(t, "Cook the Pasta", chains[1].Purpose)
	assert.Equal(t, models.ConfidenceHigh, chains[1].Confidence)
}

func TestClusterStrategy(t *testing.T) {
	tasks := []models.Task{
		{ID: "t1", Text: "Chop the onions", Verb: "chop"},
		{ID: "t2", Text: "Fry the onions until soft", Verb: "fry", Edges: []models.Edge{{Predecessor: "t1"}}},
		{ID: "t3", Text: "Boil the potatoes", Verb: "boil"},
		{ID: "t4", Text: "Mash the potatoes", Verb: "mash", Edges: []models.Edge{{Predecessor: "t3"}}},
		{ID: "t5", Text: "Slice more onions for garnish", Verb: "slice"},
		{ID: "t6", Text: "Admire", Verb: "free_text"},
	}

	chains := newDetector().Cluster(tasks)
	require.Len(t, chains, 2)

	assert.Equal(t, "Prepare Onions", chains[0].Name)
	assert.Equal(t, []string{"t1", "t2", "t5"}, chains[0].TaskIDs, "clusters sharing onions merge")
	assert.Equal(t, models.ConfidenceHigh, chains[0].Confidence)

	assert.Equal(t, "Prepare Potatoes", chains[1].Name)
	assert.Equal(t, []string{"t3", "t4"}, chains[1].TaskIDs)
}

func TestLowConfidenceSingletonsDiscarded(t *testing.T) {
	tasks := []models.Task{
		{ID: "t1", Text: "Admire", Verb: "free_text"},
	}
	assert.Empty(t, newDetector().Cluster(tasks))
}

func TestChooseAndParse(t *testing.T) {
	assert.Equal(t, Headers, Choose("## For the sauce\nMelt butter"))
	assert.Equal(t, Narrative, Choose("Boil water\n\nMeanwhile chop onions"))
	assert.Equal(t, Narrative, Choose("Boil water. Meanwhile chop onions"))
	assert.Equal(t, Cluster, Choose("Boil water\nChop onions"))
	assert.Equal(t, Cluster, Choose("Directions:\nBoil water\nChop onions"))

	s, err := ParseStrategy("NARRATIVE")
	require.NoError(t, err)
	assert.Equal(t, Narrative, s)
	_, err = ParseStrategy("astrology")
	assert.Error(t, err)

	chains, used := newDetector().Detect("Boil water", nil, None)
	assert.Nil(t, chains)
	assert.Equal(t, None, used)
}

func TestRemap(t *testing.T) {
	tasks := []models.Task{
		{ID: "t1", Text: "a"},
		{ID: "t2", Text: "b", Edges: []models.Edge{{Predecessor: "t1"}}},
		{ID: "t3", Text: "c", Edges: []models.Edge{{Predecessor: "t2"}}},
		{ID: "t4", Text: "d", Edges: []models.Edge{{Predecessor: "t1"}, {Predecessor: "t3"}}},
	}
	chains := []models.Chain{
		{ID: "c1", TaskIDs: []string{"t3", "t4"}},
		{ID: "c2", TaskIDs: []string{"t1"}, DependsOn: []models.ChainEdge{{Chain: "c1"}}},
	}

	out, outChains, err := Remap(tasks, chains)
	require.NoError(t, err)

	assert.Equal(t, []string{"c2.s1", "x.s1", "c1.s1", "c1.s2"}, []string{out[0].ID, out[1].ID, out[2].ID, out[3].ID})
	assert.Equal(t, "c2.s1", out[1].Edges[0].Predecessor)
	assert.Equal(t, "x.s1", out[2].Edges[0].Predecessor)
	assert.Equal(t, []string{"c1.s1", "c1.s2"}, outChains[0].TaskIDs)
	assert.Equal(t, "c1", outChains[1].DependsOn[0].Chain)

	before, after := 0, 0
	for i := range tasks {
		before += len(tasks[i].Edges)
		after += len(out[i].Edges)
	}
	assert.Equal(t, before, after)
	assert.Equal(t, "t1", tasks[1].Edges[0].Predecessor, "input untouched")
}

func TestRemapDetectsDroppedEdge(t *testing.T) {
	tasks := []models.Task{
		{ID: "t1", Edges: []models.Edge{{Predecessor: "ghost"}}},
	}
	_, _, err := Remap(tasks, nil)
	assert.True(t, errors.Is(err, ErrEdgeDropped))
}
