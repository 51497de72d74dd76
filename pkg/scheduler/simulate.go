package scheduler

import (
	"sort"
	"time"

	"github.com/korjavin/mise/pkg/critpath"
	"github.com/korjavin/mise/pkg/models"
)

// SimEvent is one start or finish in a simulated run
type SimEvent struct {
	At     time.Time `json:"at"`
	TaskID string    `json:"task_id"`
	Kind   string    `json:"kind"` // start or finish
	// Forced marks a start made after the dependency window had expired
	Forced bool `json:"forced,omitempty"`
}

// SimResult is the outcome of Simulate
type SimResult struct {
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	Makespan  time.Duration `json:"makespan"`
	Completed bool          `json:"completed"`
	Events    []SimEvent    `json:"events"`
	// MaxAttendedRunning is the most attended tasks seen running at once
	MaxAttendedRunning int      `json:"max_attended_running"`
	Violations         []string `json:"violations,omitempty"`
	Records            Records  `json:"records"`
}

// Simulate cooks the graph on a discrete clock. At each tick running tasks
// that reached their duration finish, then ready tasks start in order of
// least latest start. A task whose window expired is started late once
// nothing else can move, and is reported as a violation.
func Simulate(g *models.Graph, start time.Time, tick time.Duration, opts Options) SimResult {
	if tick <= 0 {
		tick = time.Minute
	}
	cp := critpath.Compute(g.Tasks, start, start)
	order := make(map[string]int, len(g.Tasks))
	for i, t := range g.Tasks {
		order[t.ID] = i
	}
	byLatestStart := func(ids []string) {
		sort.SliceStable(ids, func(a, b int) bool {
			la, lb := cp.Timings[ids[a]].LatestStart, cp.Timings[ids[b]].LatestStart
			if !la.Equal(lb) {
				return la.Before(lb)
			}
			return order[ids[a]] < order[ids[b]]
		})
	}

	res := SimResult{Start: start, End: start}
	records := Records{}
	now := start

	startTask := func(id string, forced bool) {
		records[id] = Record{Started: true, Late: forced, StartedAt: now}
		res.Events = append(res.Events, SimEvent{At: now, TaskID: id, Kind: "start", Forced: forced})
		if n := attendedRunning(g, records); n > res.MaxAttendedRunning {
			res.MaxAttendedRunning = n
		}
	}

	for {
		for _, t := range g.Tasks {
			rec := records[t.ID]
			if !rec.Started || rec.Finished {
				continue
			}
			end := rec.StartedAt.Add(plannedDuration(t))
			if end.After(now) {
				continue
			}
			rec.Finished, rec.FinishedAt = true, end
			records[t.ID] = rec
			res.Events = append(res.Events, SimEvent{At: end, TaskID: t.ID, Kind: "finish"})
			if end.After(res.End) {
				res.End = end
			}
		}

		for {
			snap := Evaluate(g, now, records, opts)
			if len(snap.Ready) == 0 {
				break
			}
			byLatestStart(snap.Ready)
			startTask(snap.Ready[0], false)
		}

		snap := Evaluate(g, now, records, opts)
		if snap.Done() {
			res.Completed = true
			break
		}
		if len(snap.Running) == 0 {
			late := startable(g, snap.Violated, records, now, opts)
			if len(late) == 0 {
				break
			}
			byLatestStart(late)
			res.Violations = append(res.Violations, late[0])
			startTask(late[0], true)
			continue
		}
		now = now.Add(tick)
	}

	sort.SliceStable(res.Events, func(a, b int) bool {
		return res.Events[a].At.Before(res.Events[b].At)
	})
	res.Makespan = res.End.Sub(res.Start)
	res.Records = records
	return res
}

func attendedRunning(g *models.Graph, records Records) int {
	n := 0
	for _, t := range g.Tasks {
		rec := records[t.ID]
		if rec.Started && !rec.Finished && t.Attention == models.AttentionAttended {
			n++
		}
	}
	return n
}

// startable keeps the violated tasks whose predecessors are all done with
func startable(g *models.Graph, violated []string, records Records, now time.Time, opts Options) []string {
	var out []string
	for _, id := range violated {
		t, _ := g.Task(id)
		ok := true
		for _, e := range t.Edges {
			if checkEdge(e, records[e.Predecessor], now, opts) == edgeWaiting {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, id)
		}
	}
	return out
}
