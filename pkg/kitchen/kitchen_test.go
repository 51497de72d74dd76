package kitchen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korjavin/mise/pkg/compiler"
	"github.com/korjavin/mise/pkg/logger"
	"github.com/korjavin/mise/pkg/models"
	"github.com/korjavin/mise/pkg/ontology"
	"github.com/korjavin/mise/pkg/scheduler"
	"github.com/korjavin/mise/pkg/storage"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func twoStepGraph() *models.Graph {
	return &models.Graph{ID: "g1", Tasks: []models.Task{
		{ID: "t1", Text: "Cook the pasta", Duration: 10, Attention: models.AttentionAttended},
		{ID: "t2", Text: "Drain", Duration: 5, Attention: models.AttentionAttended, Edges: []models.Edge{
			{Predecessor: "t1", Relation: models.FinishToStart, Constraint: models.Rigid},
		}},
	}}
}

func TestCompileSavesGraph(t *testing.T) {
	log, _ := logger.NewObserved("compiler")
	svc := New(newStore(t), compiler.New(ontology.MustDefault(), nil, log), scheduler.DefaultOptions())

	g, err := svc.Compile(context.Background(), "Bring a pot of water to a boil\nAdd pasta and cook for 8 minutes", compiler.Options{})
	require.NoError(t, err)

	stored, err := svc.Graph(g.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(g, stored, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("stored graph differs (-compiled +stored):\n%s", diff)
	}

	all, err := svc.ListGraphs()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCompileWithoutCompiler(t *testing.T) {
	svc := New(newStore(t), nil, scheduler.DefaultOptions())
	_, err := svc.Compile(context.Background(), "Boil water", compiler.Options{})
	assert.Error(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	store := newStore(t)
	now := t0
	svc := New(store, nil, scheduler.DefaultOptions())
	svc.SetClock(func() time.Time { return now })
	require.NoError(t, svc.SaveGraph(twoStepGraph()))

	st, err := svc.BeginSession("g1", t0.Add(30*time.Minute))
	require.NoError(t, err)

	snap, err := svc.Snapshot(st.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, snap.Ready)

	_, err = svc.StartTask(st.ID, "t2")
	assert.True(t, errors.Is(err, scheduler.ErrInvalidTransition))

	_, err = svc.StartTask(st.ID, "t1")
	require.NoError(t, err)
	now = t0.Add(10 * time.Minute)
	snap, err = svc.FinishTask(st.ID, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, snap.Ready)

	// a fresh service restores the session from storage
	other := New(store, nil, scheduler.DefaultOptions())
	other.SetClock(func() time.Time { return now })
	loaded, err := other.Session(st.ID)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(10*time.Minute), loaded.Records["t1"].FinishedAt)
	snap, err = other.Snapshot(st.ID)
	require.NoError(t, err)
	assert.Equal(t, scheduler.StatusReady, snap.Status["t2"])

	plan, err := other.Plan(st.ID)
	require.NoError(t, err)
	assert.True(t, plan.Feasible)
	assert.Len(t, plan.Timings, 1)
	assert.Equal(t, 15*time.Minute, plan.Timings["t2"].Slack)

	active, err := other.ActiveSessions()
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, other.EndSession(st.ID))
	_, err = other.StartTask(st.ID, "t2")
	assert.True(t, errors.Is(err, ErrSessionEnded))
	active, err = other.ActiveSessions()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestStartTaskLateAfterExpiredWindow(t *testing.T) {
	store := newStore(t)
	now := t0
	svc := New(store, nil, scheduler.DefaultOptions())
	svc.SetClock(func() time.Time { return now })
	require.NoError(t, svc.SaveGraph(twoStepGraph()))
	st, err := svc.BeginSession("g1", t0.Add(time.Hour))
	require.NoError(t, err)

	_, err = svc.StartTask(st.ID, "t1")
	require.NoError(t, err)
	now = t0.Add(10 * time.Minute)
	_, err = svc.FinishTask(st.ID, "t1")
	require.NoError(t, err)

	now = t0.Add(40 * time.Minute)
	snap, err := svc.Snapshot(st.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, snap.Violated)
	_, err = svc.StartTask(st.ID, "t2")
	assert.True(t, errors.Is(err, scheduler.ErrInvalidTransition))

	snap, err = svc.StartTaskLate(st.ID, "t2")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, snap.Running)

	loaded, err := New(store, nil, scheduler.DefaultOptions()).Session(st.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Records["t2"].Late)
}

func TestLiveSessionIsShared(t *testing.T) {
	svc := New(newStore(t), nil, scheduler.DefaultOptions())
	svc.SetClock(func() time.Time { return t0 })
	require.NoError(t, svc.SaveGraph(twoStepGraph()))
	st, err := svc.BeginSession("g1", t0.Add(time.Hour))
	require.NoError(t, err)

	live, err := svc.Live(st.ID)
	require.NoError(t, err)
	_, err = svc.StartTask(st.ID, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, live.Snapshot().Running)
}

func TestBeginSessionUnknownGraph(t *testing.T) {
	svc := New(newStore(t), nil, scheduler.DefaultOptions())
	_, err := svc.BeginSession("missing", t0)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestRemaining(t *testing.T) {
	g := &models.Graph{Tasks: []models.Task{
		{ID: "a", Duration: 10},
		{ID: "b", Duration: 10, Edges: []models.Edge{{Predecessor: "a", Relation: models.FinishToStart}}},
		{ID: "c", Duration: 5, Edges: []models.Edge{
			{Predecessor: "a", Relation: models.FinishToStart},
			{Predecessor: "b", Relation: models.FinishToStart},
		}},
	}}
	records := scheduler.Records{
		"a": {Started: true, Finished: true, StartedAt: t0, FinishedAt: t0.Add(10 * time.Minute)},
		"b": {Started: true, StartedAt: t0.Add(10 * time.Minute)},
	}

	left := Remaining(g, records, t0.Add(14*time.Minute))
	require.Len(t, left, 2)
	assert.Equal(t, "b", left[0].ID)
	assert.Equal(t, 6, left[0].Duration)
	assert.Empty(t, left[0].Edges)
	require.Len(t, left[1].Edges, 1)
	assert.Equal(t, "b", left[1].Edges[0].Predecessor)
	assert.Len(t, g.Tasks[2].Edges, 2, "graph is not modified")
}
