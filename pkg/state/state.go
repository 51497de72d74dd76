package state

import (
	"sync"
	"time"
)

// State represents the conversational state of a chat
type State string

const (
	// StateNormal is the normal state
	StateNormal State = "normal"
	// StateAwaitingRecipe is set after a bare /recipe until the next text message
	StateAwaitingRecipe State = "awaiting_recipe"
)

// DefaultTTL is how long a non-normal state survives without a reply
const DefaultTTL = 10 * time.Minute

// ChatState represents the state of a chat
type ChatState struct {
	State     State
	Timestamp time.Time
	// GraphID is the last recipe compiled in the chat
	GraphID string
	// SessionID is the cooking session in progress, if any
	SessionID string
}

// Manager manages chat states
type Manager struct {
	states map[int64]ChatState
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
}

// New creates a new state manager
func New() *Manager {
	return &Manager{
		states: make(map[int64]ChatState),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
}

// SetClock replaces the wall clock
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetState sets the state for a chat
func (m *Manager) SetState(chatID int64, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs := m.states[chatID]
	cs.State = state
	cs.Timestamp = m.now()
	m.states[chatID] = cs
}

// GetState gets the state for a chat. A stale state reads as normal.
func (m *Manager) GetState(chatID int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.states[chatID]
	if !ok || cs.State == "" {
		return StateNormal
	}
	if m.now().Sub(cs.Timestamp) > m.ttl {
		cs.State = StateNormal
		m.states[chatID] = cs
	}
	return cs.State
}

// ClearState resets the chat to normal, keeping its graph and session
func (m *Manager) ClearState(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs := m.states[chatID]
	cs.State = StateNormal
	m.states[chatID] = cs
}

// SetGraph remembers the last compiled graph of a chat
func (m *Manager) SetGraph(chatID int64, graphID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs := m.states[chatID]
	cs.GraphID = graphID
	m.states[chatID] = cs
}

// Graph returns the last compiled graph of a chat
func (m *Manager) Graph(chatID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[chatID].GraphID
}

// SetSession remembers the cooking session of a chat; an empty id clears it
func (m *Manager) SetSession(chatID int64, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs := m.states[chatID]
	cs.SessionID = sessionID
	m.states[chatID] = cs
}

// Session returns the cooking session of a chat
func (m *Manager) Session(chatID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[chatID].SessionID
}
