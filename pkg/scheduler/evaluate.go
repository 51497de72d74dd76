package scheduler

import (
	"time"

	"github.com/korjavin/mise/pkg/models"
)

// Status is the runtime state of a task
type Status string

const (
	StatusPending    Status = "pending"
	StatusReady      Status = "ready"
	StatusDriverBusy Status = "driver_busy"
	StatusRunning    Status = "running"
	StatusFinished   Status = "finished"
)

// DefaultRigidBuffer is how long a RIGID edge stays satisfiable after its
// predecessor finishes
const DefaultRigidBuffer = 5 * time.Minute

// Options tune evaluation
type Options struct {
	RigidBuffer time.Duration
}

// DefaultOptions returns the default evaluation options
func DefaultOptions() Options {
	return Options{RigidBuffer: DefaultRigidBuffer}
}

// Record holds the recorded start and finish of a task. A finished record
// with a zero FinishedAt satisfies every window. Late marks a start made
// after a dependency window expired.
type Record struct {
	Started    bool      `json:"started"`
	Finished   bool      `json:"finished"`
	Late       bool      `json:"late,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Records maps task id to its record
type Records map[string]Record

// Clone returns a copy of the records
func (r Records) Clone() Records {
	out := make(Records, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Snapshot is the evaluated state of a graph at one instant
type Snapshot struct {
	At     time.Time         `json:"at"`
	Status map[string]Status `json:"status"`

	Ready      []string `json:"ready"`
	DriverBusy []string `json:"driver_busy"`
	// Blocked holds every pending task
	Blocked  []string `json:"blocked"`
	Running  []string `json:"running"`
	Finished []string `json:"finished"`
	// Overdue holds running tasks past their planned end
	Overdue []string `json:"overdue"`
	// Violated holds pending tasks with an expired dependency window
	Violated []string `json:"violated"`

	// DriverHeldBy is the attended task currently occupying the cook
	DriverHeldBy string `json:"driver_held_by,omitempty"`
}

// Done reports whether every task has finished
func (s Snapshot) Done() bool {
	for _, st := range s.Status {
		if st != StatusFinished {
			return false
		}
	}
	return true
}

type edgeState int

const (
	edgeSatisfied edgeState = iota
	edgeWaiting
	edgeExpired
)

// Evaluate derives the status of every task at now from the recorded
// timestamps. It has no side effects.
func Evaluate(g *models.Graph, now time.Time, records Records, opts Options) Snapshot {
	if opts.RigidBuffer <= 0 {
		opts.RigidBuffer = DefaultRigidBuffer
	}
	snap := Snapshot{At: now, Status: make(map[string]Status, len(g.Tasks))}

	for _, t := range g.Tasks {
		rec := records[t.ID]
		if rec.Started && !rec.Finished && t.Attention == models.AttentionAttended {
			snap.DriverHeldBy = t.ID
			break
		}
	}

	for _, t := range g.Tasks {
		rec := records[t.ID]
		switch {
		case rec.Finished:
			snap.Status[t.ID] = StatusFinished
			snap.Finished = append(snap.Finished, t.ID)
			continue
		case rec.Started:
			snap.Status[t.ID] = StatusRunning
			snap.Running = append(snap.Running, t.ID)
			if !rec.StartedAt.IsZero() && now.After(rec.StartedAt.Add(plannedDuration(t))) {
				snap.Overdue = append(snap.Overdue, t.ID)
			}
			continue
		}

		waiting, expired := false, false
		for _, e := range t.Edges {
			switch checkEdge(e, records[e.Predecessor], now, opts) {
			case edgeWaiting:
				waiting = true
			case edgeExpired:
				expired = true
			}
		}

		switch {
		case expired:
			snap.Violated = append(snap.Violated, t.ID)
			fallthrough
		case waiting:
			snap.Status[t.ID] = StatusPending
			snap.Blocked = append(snap.Blocked, t.ID)
		case needsDriver(t) && snap.DriverHeldBy != "":
			snap.Status[t.ID] = StatusDriverBusy
			snap.DriverBusy = append(snap.DriverBusy, t.ID)
		default:
			snap.Status[t.ID] = StatusReady
			snap.Ready = append(snap.Ready, t.ID)
		}
	}
	return snap
}

func checkEdge(e models.Edge, pred Record, now time.Time, opts Options) edgeState {
	if e.Relation == models.StartToStart {
		if pred.Started || pred.Finished {
			return edgeSatisfied
		}
		return edgeWaiting
	}
	if !pred.Finished {
		return edgeWaiting
	}
	if pred.FinishedAt.IsZero() {
		return edgeSatisfied
	}
	if Window(e, opts) < 0 {
		return edgeSatisfied
	}
	if now.Sub(pred.FinishedAt) > Window(e, opts) {
		return edgeExpired
	}
	return edgeSatisfied
}

// Window is how long after the predecessor finishes the edge stays
// satisfiable. A negative window never expires.
func Window(e models.Edge, opts Options) time.Duration {
	if e.Constraint == models.Rigid {
		if opts.RigidBuffer <= 0 {
			return DefaultRigidBuffer
		}
		return opts.RigidBuffer
	}
	if e.HoldMinutes <= 0 {
		return -1
	}
	return time.Duration(e.HoldMinutes) * time.Minute
}

// needsDriver reports whether starting the task requires the cook
func needsDriver(t models.Task) bool {
	return t.Attention != models.AttentionUnattended
}

func plannedDuration(t models.Task) time.Duration {
	return time.Duration(models.ClampDuration(t.Duration)) * time.Minute
}
