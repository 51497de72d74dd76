package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/korjavin/mise/pkg/models"
)

var (
	// ErrInvalidTransition is returned when a task cannot move to the requested state
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrUnknownTask is returned for ids not present in the graph
	ErrUnknownTask = errors.New("unknown task")
)

// TransitionError describes a rejected start or finish
type TransitionError struct {
	TaskID string
	Event  string
	From   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s task %s while %s: %v", e.Event, e.TaskID, e.From, ErrInvalidTransition)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Session tracks one cooking run of a graph on a logical clock.
// Nothing finishes on its own; the cook reports every finish.
type Session struct {
	mu      sync.Mutex
	graph   *models.Graph
	records Records
	clock   time.Time
	opts    Options
}

// NewSession starts an empty session with the clock at start
func NewSession(g *models.Graph, start time.Time, opts Options) *Session {
	return RestoreSession(g, nil, start, opts)
}

// RestoreSession rebuilds a session from persisted records
func RestoreSession(g *models.Graph, records Records, clock time.Time, opts Options) *Session {
	if records == nil {
		records = Records{}
	}
	return &Session{graph: g, records: records.Clone(), clock: clock, opts: opts}
}

// Graph returns the graph being cooked
func (s *Session) Graph() *models.Graph {
	return s.graph
}

// Now returns the session clock
func (s *Session) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// Records returns a copy of the recorded timestamps
func (s *Session) Records() Records {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.Clone()
}

// Advance moves the clock forward by d
func (s *Session) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = s.clock.Add(d)
}

// SetClock moves the clock to t
func (s *Session) SetClock(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = t
}

// Snapshot evaluates the graph at the current clock
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Evaluate(s.graph, s.clock, s.records, s.opts)
}

// Start records the start of a ready task
func (s *Session) Start(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.status(id)
	if err != nil {
		return err
	}
	if status != StatusReady {
		return &TransitionError{TaskID: id, Event: "start", From: status}
	}
	s.records[id] = Record{Started: true, StartedAt: s.clock}
	return nil
}

// StartLate starts a task held back only by an expired dependency window.
// The start is recorded as late. A ready task starts normally.
func (s *Session) StartLate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.graph.Task(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	snap := Evaluate(s.graph, s.clock, s.records, s.opts)
	status := snap.Status[id]
	if status == StatusReady {
		s.records[id] = Record{Started: true, StartedAt: s.clock}
		return nil
	}
	if status != StatusPending || !contains(snap.Violated, id) {
		return &TransitionError{TaskID: id, Event: "start late", From: status}
	}
	for _, e := range t.Edges {
		if checkEdge(e, s.records[e.Predecessor], s.clock, s.opts) == edgeWaiting {
			return &TransitionError{TaskID: id, Event: "start late", From: status}
		}
	}
	if needsDriver(t) && snap.DriverHeldBy != "" {
		return &TransitionError{TaskID: id, Event: "start late", From: StatusDriverBusy}
	}
	s.records[id] = Record{Started: true, Late: true, StartedAt: s.clock}
	return nil
}

// Finish records the finish of a running task. Finishing before the planned
// duration has elapsed is allowed.
func (s *Session) Finish(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.status(id)
	if err != nil {
		return err
	}
	if status != StatusRunning {
		return &TransitionError{TaskID: id, Event: "finish", From: status}
	}
	rec := s.records[id]
	rec.Finished = true
	rec.FinishedAt = s.clock
	s.records[id] = rec
	return nil
}

func (s *Session) status(id string) (Status, error) {
	if _, ok := s.graph.Task(id); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return Evaluate(s.graph, s.clock, s.records, s.opts).Status[id], nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
