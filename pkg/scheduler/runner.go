package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/korjavin/mise/pkg/logger"
	"github.com/korjavin/mise/pkg/models"
)

// EventKind names a change between two snapshots
type EventKind string

const (
	EventReady    EventKind = "ready"
	EventOverdue  EventKind = "overdue"
	EventViolated EventKind = "violated"
	EventFinished EventKind = "finished"
)

// Event is a task changing state between ticks
type Event struct {
	Kind EventKind   `json:"kind"`
	Task models.Task `json:"task"`
	At   time.Time   `json:"at"`
}

// Notifier delivers events to the cook
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, ev Event) error

// Notify calls f
func (f NotifierFunc) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Observer receives every snapshot and event, typically for metrics
type Observer interface {
	ObserveSnapshot(Snapshot)
	ObserveEvent(Event)
}

// Runner re-evaluates a session on a fixed interval and dispatches changes
type Runner struct {
	session   *Session
	interval  time.Duration
	clock     func() time.Time
	notifiers []Notifier
	observer  Observer
	logger    *logger.Logger

	mu   sync.Mutex
	last *Snapshot

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithClock sets the source of the current time. A nil clock leaves the
// session clock untouched between ticks.
func WithClock(clock func() time.Time) RunnerOption {
	return func(r *Runner) { r.clock = clock }
}

// WithNotifier adds a notifier
func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) { r.notifiers = append(r.notifiers, n) }
}

// WithObserver sets the observer
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner over session ticking every interval
func NewRunner(session *Session, interval time.Duration, opts ...RunnerOption) *Runner {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	r := &Runner{
		session:  session,
		interval: interval,
		clock:    time.Now,
		logger:   logger.New("scheduler"),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs the loop in a goroutine
func (r *Runner) Start() {
	r.logger.Info("Starting runner for graph %s", r.session.Graph().ID)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.Run(context.Background()); err != nil {
			r.logger.Error("Runner stopped: %v", err)
		}
	}()
}

// Stop ends the loop and waits for a goroutine launched by Start
func (r *Runner) Stop() {
	r.logger.Info("Stopping runner")
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
}

// Run ticks until Stop is called or ctx is done. It evaluates once
// immediately.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Tick(ctx)
	for {
		select {
		case <-ticker.C:
			if r.Tick(ctx).Done() {
				r.logger.Info("All tasks finished")
				return nil
			}
		case <-r.stopChan:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Tick evaluates the session once, dispatches changes since the previous
// tick and returns the new snapshot
func (r *Runner) Tick(ctx context.Context) Snapshot {
	if r.clock != nil {
		r.session.SetClock(r.clock())
	}
	snap := r.session.Snapshot()

	r.mu.Lock()
	prev := r.last
	r.last = &snap
	r.mu.Unlock()

	events := Diff(prev, snap, r.session.Graph())
	if r.observer != nil {
		r.observer.ObserveSnapshot(snap)
	}
	for _, ev := range events {
		if r.observer != nil {
			r.observer.ObserveEvent(ev)
		}
		for _, n := range r.notifiers {
			if err := n.Notify(ctx, ev); err != nil {
				r.logger.Error("Failed to notify %s for task %s: %v", ev.Kind, ev.Task.ID, err)
			}
		}
	}
	return snap
}

// Diff lists the events between two snapshots. With no previous snapshot
// finished tasks are not reported.
func Diff(prev *Snapshot, next Snapshot, g *models.Graph) []Event {
	var before Snapshot
	if prev != nil {
		before = *prev
	}

	var events []Event
	add := func(kind EventKind, now, then []string) {
		seen := make(map[string]bool, len(then))
		for _, id := range then {
			seen[id] = true
		}
		for _, id := range now {
			if seen[id] {
				continue
			}
			t, _ := g.Task(id)
			events = append(events, Event{Kind: kind, Task: t, At: next.At})
		}
	}

	if prev != nil {
		add(EventFinished, next.Finished, before.Finished)
	}
	add(EventReady, next.Ready, before.Ready)
	add(EventOverdue, next.Overdue, before.Overdue)
	add(EventViolated, next.Violated, before.Violated)
	return events
}
