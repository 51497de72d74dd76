package critpath

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korjavin/mise/pkg/models"
)

var now = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func task(id string, minutes int, edges ...models.Edge) models.Task {
	return models.Task{ID: id, Duration: minutes, Edges: edges}
}

func fs(pred string) models.Edge {
	return models.Edge{Predecessor: pred, Relation: models.FinishToStart}
}

func TestInfeasibleSingleTask(t *testing.T) {
	res := Compute([]models.Task{task("t1", 30)}, now.Add(20*time.Minute), now)

	assert.False(t, res.Feasible)
	assert.Equal(t, 10*time.Minute, res.Shortfall)
	assert.True(t, res.Converged)

	tm := res.Timings["t1"]
	assert.Equal(t, now, tm.EarliestStart)
	assert.Equal(t, -10*time.Minute, tm.Slack)
	assert.True(t, tm.Critical)
	assert.Equal(t, MustDoNow, tm.Urgency)
	assert.Equal(t, []string{"t1"}, res.CriticalPath)
}

func TestFinishToStartChain(t *testing.T) {
	tasks := []models.Task{
		task("t1", 10),
		task("t2", 8, fs("t1")),
		task("t3", 5, fs("t2")),
	}
	res := Compute(tasks, now.Add(60*time.Minute), now)
	require.True(t, res.Converged)
	assert.True(t, res.Feasible)
	assert.Equal(t, 23*time.Minute, res.CriticalPathDuration)

	assert.Equal(t, now.Add(10*time.Minute), res.Timings["t2"].EarliestStart)
	assert.Equal(t, now.Add(18*time.Minute), res.Timings["t3"].EarliestStart)
	assert.Equal(t, now.Add(55*time.Minute), res.Timings["t3"].LatestStart)
	assert.Equal(t, now.Add(37*time.Minute), res.Timings["t1"].LatestStart)
	for _, id := range []string{"t1", "t2", "t3"} {
		assert.Equal(t, 37*time.Minute, res.Timings[id].Slack, id)
	}
	assert.Empty(t, res.CriticalPath)
}

func TestCriticalPathOrderedAndParallelBranchHasSlack(t *testing.T) {
	tasks := []models.Task{
		task("boil", 10),
		task("cook", 8, fs("boil")),
		task("toast", 5),
		task("serve", 2, fs("cook"), fs("toast")),
	}
	res := Compute(tasks, now.Add(20*time.Minute), now)
	require.True(t, res.Feasible)

	assert.Equal(t, []string{"boil", "cook", "serve"}, res.CriticalPath)
	assert.Equal(t, 13*time.Minute, res.Timings["toast"].Slack)
	assert.False(t, res.Timings["toast"].Critical)
}

func TestStartToStartAndFinishToFinish(t *testing.T) {
	tasks := []models.Task{
		task("simmer", 30),
		task("stir", 10, models.Edge{Predecessor: "simmer", Relation: models.StartToStart}),
		task("garnish", 10, models.Edge{Predecessor: "simmer", Relation: models.FinishToFinish}),
	}
	res := Compute(tasks, now.Add(60*time.Minute), now)
	require.True(t, res.Converged)

	assert.Equal(t, now, res.Timings["stir"].EarliestStart)
	assert.Equal(t, now.Add(20*time.Minute), res.Timings["garnish"].EarliestStart)
	// simmer may finish no later than garnish
	assert.Equal(t, now.Add(60*time.Minute), res.Timings["simmer"].LatestFinish)
	assert.Equal(t, 30*time.Minute, res.CriticalPathDuration)
}

func TestStartToStartLatestFinish(t *testing.T) {
	tasks := []models.Task{
		task("p", 10),
		task("s", 30, models.Edge{Predecessor: "p", Relation: models.StartToStart}),
	}
	res := Compute(tasks, now.Add(60*time.Minute), now)
	require.True(t, res.Converged)

	// LF[p] is bounded by LS[s] + dur[s]
	assert.Equal(t, now.Add(60*time.Minute), res.Timings["p"].LatestFinish)
	assert.Equal(t, now.Add(50*time.Minute), res.Timings["p"].LatestStart)
	assert.Equal(t, now.Add(30*time.Minute), res.Timings["s"].LatestStart)
	assert.Equal(t, now, res.Timings["s"].EarliestStart)
}

func TestStartToFinishTreatedAsFinishBound(t *testing.T) {
	tasks := []models.Task{
		task("a", 20),
		task("b", 5, models.Edge{Predecessor: "a", Relation: models.StartToFinish}),
	}
	res := Compute(tasks, now.Add(60*time.Minute), now)
	assert.Equal(t, now.Add(15*time.Minute), res.Timings["b"].EarliestStart)
}

func TestLatestStartMonotonicInServeTime(t *testing.T) {
	tasks := []models.Task{
		task("t1", 12),
		task("t2", 7, fs("t1")),
		task("t3", 25),
		task("t4", 3, fs("t2"), models.Edge{Predecessor: "t3", Relation: models.StartToStart}),
	}
	var prev Result
	for i, offset := range []time.Duration{10, 30, 45, 90, 240} {
		res := Compute(tasks, now.Add(offset*time.Minute), now)
		if i > 0 {
			for id, tm := range res.Timings {
				assert.False(t, tm.LatestStart.Before(prev.Timings[id].LatestStart), "%s at +%v", id, offset)
				assert.GreaterOrEqual(t, tm.Slack, prev.Timings[id].Slack)
			}
			assert.LessOrEqual(t, res.Shortfall, prev.Shortfall)
		}
		prev = res
	}
}

func TestCycleReportedAsNotConverged(t *testing.T) {
	tasks := []models.Task{
		task("a", 5, fs("b")),
		task("b", 5, fs("a")),
	}
	res := Compute(tasks, now.Add(60*time.Minute), now)
	assert.False(t, res.Converged)
	assert.LessOrEqual(t, res.Iterations, 4*len(tasks))
	assert.Len(t, res.Timings, 2)
}

func TestEmptyGraph(t *testing.T) {
	res := Compute(nil, now, now)
	assert.True(t, res.Feasible)
	assert.True(t, res.Converged)
	assert.Empty(t, res.Timings)
}

func TestUrgency(t *testing.T) {
	at := func(untilLatest, slack time.Duration) Timing {
		return Timing{LatestStart: now.Add(untilLatest), Slack: slack}
	}
	assert.Equal(t, MustDoNow, Classify(at(time.Hour, 0), now))
	assert.Equal(t, MustDoNow, Classify(at(-time.Minute, time.Hour), now))
	assert.Equal(t, MustDoNow, Classify(at(5*time.Minute, time.Hour), now))
	assert.Equal(t, ShouldStartSoon, Classify(at(12*time.Minute, time.Hour), now))
	assert.Equal(t, Flexible, Classify(at(40*time.Minute, 20*time.Minute), now))
	assert.Equal(t, CouldDoNow, Classify(at(40*time.Minute, 40*time.Minute), now))
}
