// Package kitchen stores compiled graphs and cooking sessions and applies the
// cook's start and finish reports to them.
package kitchen

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/korjavin/mise/pkg/compiler"
	"github.com/korjavin/mise/pkg/critpath"
	"github.com/korjavin/mise/pkg/logger"
	"github.com/korjavin/mise/pkg/models"
	"github.com/korjavin/mise/pkg/scheduler"
	"github.com/korjavin/mise/pkg/storage"
)

// ErrSessionEnded is returned for transitions on an ended session
var ErrSessionEnded = errors.New("session has ended")

// SessionState is the persisted form of a cooking session
type SessionState struct {
	ID        string            `json:"id"`
	GraphID   string            `json:"graph_id"`
	ServeAt   time.Time         `json:"serve_at"`
	BegunAt   time.Time         `json:"begun_at"`
	Records   scheduler.Records `json:"records"`
	Ended     bool              `json:"ended"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Service provides graph and session persistence
type Service struct {
	store    *storage.Store
	compiler *compiler.Compiler
	opts     scheduler.Options
	logger   *logger.Logger
	now      func() time.Time

	mu   sync.Mutex
	live map[string]*scheduler.Session
}

// New creates a new kitchen service. comp may be nil when graphs are only
// saved, never compiled, through the service.
func New(store *storage.Store, comp *compiler.Compiler, opts scheduler.Options) *Service {
	return &Service{
		store:    store,
		compiler: comp,
		opts:     opts,
		logger:   logger.New("kitchen"),
		now:      time.Now,
		live:     make(map[string]*scheduler.Session),
	}
}

// SetClock replaces the wall clock
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func graphKey(id string) string   { return "graph:" + id }
func sessionKey(id string) string { return "session:" + id }

// Compile compiles text and saves the resulting graph
func (s *Service) Compile(ctx context.Context, text string, opts compiler.Options) (*models.Graph, error) {
	if s.compiler == nil {
		return nil, errors.New("kitchen has no compiler")
	}
	g, err := s.compiler.Compile(ctx, text, opts)
	if err != nil {
		return nil, err
	}
	if err := s.SaveGraph(g); err != nil {
		return nil, err
	}
	return g, nil
}

// SaveGraph stores a compiled graph under its id
func (s *Service) SaveGraph(g *models.Graph) error {
	if err := s.store.Set(graphKey(g.ID), g); err != nil {
		return fmt.Errorf("failed to save graph %s: %w", g.ID, err)
	}
	s.logger.Info("Saved graph %s with %d tasks", g.ID, len(g.Tasks))
	return nil
}

// Graph loads a graph by id
func (s *Service) Graph(id string) (*models.Graph, error) {
	var g models.Graph
	if err := s.store.Get(graphKey(id), &g); err != nil {
		return nil, fmt.Errorf("failed to get graph %s: %w", id, err)
	}
	return &g, nil
}

// ListGraphs returns every stored graph
func (s *Service) ListGraphs() ([]*models.Graph, error) {
	keys, err := s.store.List("graph:")
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}
	graphs := make([]*models.Graph, 0, len(keys))
	for _, key := range keys {
		var g models.Graph
		if err := s.store.Get(key, &g); err != nil {
			s.logger.Error("Failed to get graph %s: %v", key, err)
			continue
		}
		graphs = append(graphs, &g)
	}
	return graphs, nil
}

// BeginSession starts cooking a stored graph to be served at serveAt
func (s *Service) BeginSession(graphID string, serveAt time.Time) (*SessionState, error) {
	g, err := s.Graph(graphID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := &SessionState{
		ID:        uuid.NewString(),
		GraphID:   g.ID,
		ServeAt:   serveAt,
		BegunAt:   now,
		Records:   scheduler.Records{},
		UpdatedAt: now,
	}
	if err := s.store.Set(sessionKey(st.ID), st); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	s.live[st.ID] = scheduler.NewSession(g, now, s.opts)
	s.logger.Info("Began session %s for graph %s, serving at %s", st.ID, g.ID, serveAt.Format(time.Kitchen))
	return st, nil
}

// Session loads a session by id
func (s *Service) Session(id string) (*SessionState, error) {
	var st SessionState
	if err := s.store.Get(sessionKey(id), &st); err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return &st, nil
}

// ActiveSessions returns every session that has not ended, oldest first
func (s *Service) ActiveSessions() ([]*SessionState, error) {
	keys, err := s.store.List("session:")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	var out []*SessionState
	for _, key := range keys {
		var st SessionState
		if err := s.store.Get(key, &st); err != nil {
			s.logger.Error("Failed to get session %s: %v", key, err)
			continue
		}
		if !st.Ended {
			out = append(out, &st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BegunAt.Before(out[j].BegunAt) })
	return out, nil
}

// Live returns the in-memory scheduler session shared by transitions and runners
func (s *Service) Live(id string) (*scheduler.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, _, err := s.load(id)
	return live, err
}

// load returns the live session, restoring it from storage on first use.
// Callers hold s.mu.
func (s *Service) load(id string) (*scheduler.Session, *SessionState, error) {
	st, err := s.Session(id)
	if err != nil {
		return nil, nil, err
	}
	if st.Ended {
		return nil, st, fmt.Errorf("%w: %s", ErrSessionEnded, id)
	}
	if live, ok := s.live[id]; ok {
		return live, st, nil
	}
	g, err := s.Graph(st.GraphID)
	if err != nil {
		return nil, st, err
	}
	live := scheduler.RestoreSession(g, st.Records, s.now(), s.opts)
	s.live[id] = live
	return live, st, nil
}

// StartTask records that the cook started a task
func (s *Service) StartTask(sessionID, taskID string) (scheduler.Snapshot, error) {
	return s.transition(sessionID, taskID, (*scheduler.Session).Start)
}

// StartTaskLate starts a task whose dependency window has expired, recording
// the violation
func (s *Service) StartTaskLate(sessionID, taskID string) (scheduler.Snapshot, error) {
	return s.transition(sessionID, taskID, (*scheduler.Session).StartLate)
}

// FinishTask records that the cook finished a task
func (s *Service) FinishTask(sessionID, taskID string) (scheduler.Snapshot, error) {
	return s.transition(sessionID, taskID, (*scheduler.Session).Finish)
}

func (s *Service) transition(sessionID, taskID string, apply func(*scheduler.Session, string) error) (scheduler.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, st, err := s.load(sessionID)
	if err != nil {
		return scheduler.Snapshot{}, err
	}
	live.SetClock(s.now())
	if err := apply(live, taskID); err != nil {
		return live.Snapshot(), err
	}

	st.Records = live.Records()
	st.UpdatedAt = live.Now()
	if err := s.store.Set(sessionKey(st.ID), st); err != nil {
		return scheduler.Snapshot{}, fmt.Errorf("failed to save session: %w", err)
	}
	return live.Snapshot(), nil
}

// Snapshot evaluates a session now
func (s *Service) Snapshot(sessionID string) (scheduler.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, _, err := s.load(sessionID)
	if err != nil {
		return scheduler.Snapshot{}, err
	}
	live.SetClock(s.now())
	return live.Snapshot(), nil
}

// Plan runs the critical path over the work left in a session against its
// serve time
func (s *Service) Plan(sessionID string) (critpath.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, st, err := s.load(sessionID)
	if err != nil {
		return critpath.Result{}, err
	}
	now := s.now()
	return critpath.Compute(Remaining(live.Graph(), live.Records(), now), st.ServeAt, now), nil
}

// EndSession marks a session ended and drops it from memory
func (s *Service) EndSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.Session(id)
	if err != nil {
		return err
	}
	if live, ok := s.live[id]; ok {
		st.Records = live.Records()
	}
	st.Ended = true
	st.UpdatedAt = s.now()
	if err := s.store.Set(sessionKey(id), st); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	delete(s.live, id)
	s.logger.Info("Ended session %s", id)
	return nil
}
