// Package critpath computes earliest and latest start/finish times for a
// task graph against a serve time.
//
// Both passes are fixed-point relaxations capped at twice the task count.
// A graph with a cycle never settles; the result then reports
// Converged=false instead of failing.
package critpath

import (
	"sort"
	"time"

	"github.com/korjavin/mise/pkg/models"
)

// Urgency classifies how soon a task has to start
type Urgency string

const (
	MustDoNow       Urgency = "must_do_now"
	ShouldStartSoon Urgency = "should_start_soon"
	Flexible        Urgency = "flexible"
	CouldDoNow      Urgency = "could_do_now"
)

// Urgency thresholds
const (
	MustDoNowWithin       = 5 * time.Minute
	ShouldStartSoonWithin = 15 * time.Minute
	FlexibleSlack         = 30 * time.Minute
)

// Timing is the computed schedule of a single task
type Timing struct {
	TaskID         string        `json:"task_id"`
	EarliestStart  time.Time     `json:"earliest_start"`
	EarliestFinish time.Time     `json:"earliest_finish"`
	LatestStart    time.Time     `json:"latest_start"`
	LatestFinish   time.Time     `json:"latest_finish"`
	Slack          time.Duration `json:"slack"`
	Critical       bool          `json:"critical"`
	Urgency        Urgency       `json:"urgency"`
}

// Result is the outcome of a critical path computation
type Result struct {
	Timings              map[string]Timing `json:"timings"`
	Feasible             bool              `json:"feasible"`
	Shortfall            time.Duration     `json:"shortfall"`
	CriticalPathDuration time.Duration     `json:"critical_path_duration"`
	// CriticalPath lists critical task ids in order of earliest start
	CriticalPath []string `json:"critical_path"`
	Converged    bool     `json:"converged"`
	Iterations   int      `json:"iterations"`
}

// Compute runs the backward and forward passes over tasks
func Compute(tasks []models.Task, serve, now time.Time) Result {
	n := len(tasks)
	res := Result{Timings: make(map[string]Timing, n), Feasible: true, Converged: true}
	if n == 0 {
		return res
	}

	index := make(map[string]int, n)
	dur := make([]time.Duration, n)
	for i, t := range tasks {
		index[t.ID] = i
		dur[i] = time.Duration(models.ClampDuration(t.Duration)) * time.Minute
	}

	type link struct {
		pred, succ int
		rel        models.Relation
	}
	var links []link
	for s, t := range tasks {
		for _, e := range t.Edges {
			if p, ok := index[e.Predecessor]; ok {
				links = append(links, link{pred: p, succ: s, rel: e.Relation})
			}
		}
	}

	limit := 2 * n

	// backward pass: every task may finish at serve, edges pull it earlier
	lf := make([]time.Time, n)
	for i := range lf {
		lf[i] = serve
	}
	backIter, backDone := 0, false
	for backIter < limit {
		backIter++
		changed := false
		for _, l := range links {
			ls := lf[l.succ].Add(-dur[l.succ])
			var bound time.Time
			switch l.rel {
			case models.StartToStart:
				bound = ls.Add(dur[l.succ])
			case models.FinishToFinish, models.StartToFinish:
				bound = lf[l.succ]
			default:
				bound = ls
			}
			if bound.Before(lf[l.pred]) {
				lf[l.pred] = bound
				changed = true
			}
		}
		if !changed {
			backDone = true
			break
		}
	}

	// forward pass: every task may start now, edges push it later
	es := make([]time.Time, n)
	for i := range es {
		es[i] = now
	}
	fwdIter, fwdDone := 0, false
	for fwdIter < limit {
		fwdIter++
		changed := false
		for _, l := range links {
			ef := es[l.pred].Add(dur[l.pred])
			var bound time.Time
			switch l.rel {
			case models.StartToStart:
				bound = es[l.pred]
			case models.FinishToFinish, models.StartToFinish:
				bound = ef.Add(-dur[l.succ])
			default:
				bound = ef
			}
			if bound.Before(now) {
				bound = now
			}
			if bound.After(es[l.succ]) {
				es[l.succ] = bound
				changed = true
			}
		}
		if !changed {
			fwdDone = true
			break
		}
	}

	res.Converged = backDone && fwdDone
	res.Iterations = backIter + fwdIter

	var maxEF time.Time
	for i, t := range tasks {
		ls := lf[i].Add(-dur[i])
		ef := es[i].Add(dur[i])
		slack := ls.Sub(es[i])
		tm := Timing{
			TaskID:         t.ID,
			EarliestStart:  es[i],
			EarliestFinish: ef,
			LatestStart:    ls,
			LatestFinish:   lf[i],
			Slack:          slack,
			Critical:       slack <= 0,
		}
		tm.Urgency = Classify(tm, now)
		res.Timings[t.ID] = tm
		if ef.After(maxEF) {
			maxEF = ef
		}
		if tm.Critical {
			res.CriticalPath = append(res.CriticalPath, t.ID)
		}
	}
	sort.SliceStable(res.CriticalPath, func(a, b int) bool {
		return res.Timings[res.CriticalPath[a]].EarliestStart.Before(res.Timings[res.CriticalPath[b]].EarliestStart)
	})

	res.CriticalPathDuration = maxEF.Sub(now)
	if maxEF.After(serve) {
		res.Feasible = false
		res.Shortfall = maxEF.Sub(serve)
	}
	return res
}

// Classify derives the urgency of a timing at now
func Classify(t Timing, now time.Time) Urgency {
	untilLatest := t.LatestStart.Sub(now)
	switch {
	case t.Slack <= 0 || untilLatest <= MustDoNowWithin:
		return MustDoNow
	case untilLatest <= ShouldStartSoonWithin:
		return ShouldStartSoon
	case t.Slack < FlexibleSlack:
		return Flexible
	}
	return CouldDoNow
}
