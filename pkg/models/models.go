package models

import (
	"strings"
)

// Attention describes how much of the cook's attention a task needs
type Attention string

const (
	// AttentionAttended needs the cook for the whole duration
	AttentionAttended Attention = "attended"
	// AttentionUnattendedAfterStart needs the cook only to get it going
	AttentionUnattendedAfterStart Attention = "unattended_after_start"
	// AttentionUnattended never needs the cook
	AttentionUnattended Attention = "unattended"
)

// Flexibility is the temporal flexibility class of a task output
type Flexibility string

const (
	FlexServeImmediate Flexibility = "serve_immediate"
	FlexHoldMinutes    Flexibility = "hold_minutes"
	FlexHoldHours      Flexibility = "hold_hours"
	FlexHoldDays       Flexibility = "hold_days"
	FlexPrepAnyTime    Flexibility = "prep_any_time"
)

// Relation is the precedence kind of an edge
type Relation string

const (
	FinishToStart  Relation = "FS"
	StartToStart   Relation = "SS"
	FinishToFinish Relation = "FF"
	// StartToFinish is only honored by the runtime scheduler
	StartToFinish Relation = "SF"
)

// Constraint is how strictly a dependent must follow its predecessor
type Constraint string

const (
	Rigid    Constraint = "RIGID"
	Flexible Constraint = "FLEXIBLE"
)

// Confidence is a coarse confidence level for classification results
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Rank orders confidence levels, low < medium < high
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// Edge reasons, recorded for traceability only
const (
	ReasonSequence  = "sequence"
	ReasonProduct   = "product"
	ReasonEquipment = "equipment"
	ReasonPronoun   = "pronoun"
	ReasonTemporal  = "temporal"
	ReasonSauce     = "sauce"
	ReasonChain     = "chain"
)

// DurationSource tells where a task's planned duration came from
type DurationSource string

const (
	DurationExplicit DurationSource = "explicit"
	DurationDefault  DurationSource = "default"
)

// Duration bounds in minutes
const (
	MinDuration = 1
	MaxDuration = 1440
)

// ClampDuration bounds a duration in minutes to [MinDuration, MaxDuration]
func ClampDuration(minutes int) int {
	if minutes < MinDuration {
		return MinDuration
	}
	if minutes > MaxDuration {
		return MaxDuration
	}
	return minutes
}

// Temperature is an extracted cooking temperature
type Temperature struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"` // "F" or "C"
}

// Redirect records a guard rule that replaced the originally classified verb
type Redirect struct {
	OriginalVerb string `json:"original_verb"`
	Ingredient   string `json:"ingredient"`
	Rationale    string `json:"rationale"`
	Severity     string `json:"severity"`
}

// Input is an ingredient a task requires, in a given state
type Input struct {
	Ingredient string `json:"ingredient"`
	State      string `json:"state,omitempty"`
}

// Product is an emergent intermediate produced by a task
type Product struct {
	Ingredient  string      `json:"ingredient"`
	State       string      `json:"state"`
	HoldMinutes int         `json:"hold_minutes"`
	Flexibility Flexibility `json:"flexibility"`
}

// Key uniquely identifies the product as ingredient|state
func (p Product) Key() string {
	return p.Ingredient + "|" + p.State
}

// Name is the human readable product name, e.g. "drained pasta"
func (p Product) Name() string {
	if p.State == "" {
		return p.Ingredient
	}
	return p.State + " " + p.Ingredient
}

// Edge is a precedence relation from the owning (successor) task to Predecessor
type Edge struct {
	Predecessor string     `json:"predecessor"`
	Relation    Relation   `json:"relation"`
	Constraint  Constraint `json:"constraint"`
	HoldMinutes int        `json:"hold_minutes,omitempty"`
	Product     string     `json:"product,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// Task represents a single atomic cooking action
type Task struct {
	ID             string         `json:"id"`
	Text           string         `json:"text"`
	Verb           string         `json:"verb"`
	Confidence     Confidence     `json:"confidence"`
	VerbSource     string         `json:"verb_source"`
	Redirect       *Redirect      `json:"redirect,omitempty"`
	Duration       int            `json:"duration"`
	DurationSource DurationSource `json:"duration_source"`
	Temperature    *Temperature   `json:"temperature,omitempty"`
	Attention      Attention      `json:"attention"`
	HoldMinutes    int            `json:"hold_minutes"`
	Flexibility    Flexibility    `json:"flexibility"`
	Inputs         []Input        `json:"inputs,omitempty"`
	Outputs        []Product      `json:"outputs,omitempty"`
	Equipment      []string       `json:"equipment,omitempty"`
	Edges          []Edge         `json:"edges,omitempty"`
}

// Clone returns a deep copy of the task
func (t Task) Clone() Task {
	c := t
	if t.Redirect != nil {
		r := *t.Redirect
		c.Redirect = &r
	}
	if t.Temperature != nil {
		tmp := *t.Temperature
		c.Temperature = &tmp
	}
	c.Inputs = append([]Input(nil), t.Inputs...)
	c.Outputs = append([]Product(nil), t.Outputs...)
	c.Equipment = append([]string(nil), t.Equipment...)
	c.Edges = append([]Edge(nil), t.Edges...)
	return c
}

// HasEdgeTo reports whether the task already depends on predecessor
func (t Task) HasEdgeTo(predecessor string) bool {
	for _, e := range t.Edges {
		if e.Predecessor == predecessor {
			return true
		}
	}
	return false
}

// CloneTasks deep copies a task list
func CloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

// ChainInput is a product a chain needs from another chain
type ChainInput struct {
	Product   Product `json:"product"`
	FromChain string  `json:"from_chain"`
}

// ChainEdge is a chain-level dependency on another chain
type ChainEdge struct {
	Chain  string `json:"chain"`
	Reason string `json:"reason"`
}

// Chain is an ordered group of tasks forming one phase of the recipe
type Chain struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Purpose        string       `json:"purpose"`
	Confidence     Confidence   `json:"confidence"`
	TaskIDs        []string     `json:"task_ids"`
	Outputs        []Product    `json:"outputs,omitempty"`
	Inputs         []ChainInput `json:"inputs,omitempty"`
	DependsOn      []ChainEdge  `json:"depends_on,omitempty"`
	TemporalMarker string       `json:"temporal_marker,omitempty"`
	Parallel       bool         `json:"parallel,omitempty"`
}

// Clone returns a deep copy of the chain
func (c Chain) Clone() Chain {
	out := c
	out.TaskIDs = append([]string(nil), c.TaskIDs...)
	out.Outputs = append([]Product(nil), c.Outputs...)
	out.Inputs = append([]ChainInput(nil), c.Inputs...)
	out.DependsOn = append([]ChainEdge(nil), c.DependsOn...)
	return out
}

// Graph is the compiled recipe: tasks, their edges and the detected chains
type Graph struct {
	ID       string  `json:"id"`
	Title    string  `json:"title,omitempty"`
	Mode     string  `json:"mode"`
	Strategy string  `json:"strategy"`
	Tasks    []Task  `json:"tasks"`
	Chains   []Chain `json:"chains"`
}

// Task returns the task with the given id
func (g *Graph) Task(id string) (Task, bool) {
	for _, t := range g.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Dependents returns the ids of tasks that have an edge to id, in task order
func (g *Graph) Dependents(id string) []string {
	var out []string
	for _, t := range g.Tasks {
		if t.HasEdgeTo(id) {
			out = append(out, t.ID)
		}
	}
	return out
}

// EdgeCount is the total number of task edges in the graph
func (g *Graph) EdgeCount() int {
	n := 0
	for _, t := range g.Tasks {
		n += len(t.Edges)
	}
	return n
}

// ChainOf returns the chain containing the task, if any
func (g *Graph) ChainOf(taskID string) (Chain, bool) {
	for _, c := range g.Chains {
		for _, id := range c.TaskIDs {
			if id == taskID {
				return c, true
			}
		}
	}
	return Chain{}, false
}

// NormalizeKey lowercases and singularizes an ingredient or equipment name
// so that "Onions" and "onion" share a registry key
func NormalizeKey(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Join(strings.Fields(s), " ")
	switch {
	case len(s) > 4 && strings.HasSuffix(s, "ies"):
		return s[:len(s)-3] + "y"
	case len(s) > 4 && strings.HasSuffix(s, "oes"):
		return s[:len(s)-2]
	case len(s) > 4 && (strings.HasSuffix(s, "ches") || strings.HasSuffix(s, "shes")):
		return s[:len(s)-2]
	case len(s) > 3 && strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss"):
		return s[:len(s)-1]
	}
	return s
}
