package model

import "time"

// Verdict is the outcome attached to an act or a whole scenario run.
type Verdict string

// Verdict constants. VerdictCompleted is scenario-level only: every act
// reported VerdictSuccess.
const (
	VerdictUndefined Verdict = "undefined"
	VerdictSuccess   Verdict = "success"
	VerdictFailure   Verdict = "failure"
	VerdictCompleted Verdict = "completed"
)

// Run status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusError     = "error"
)

// Document format constants.
const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
		StatusError:   true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusError:     true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether status is a final run status.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed || status == StatusError
}

// ChaosFault is one scripted fault as read from a scenario document.
type ChaosFault struct {
	Type   string   `json:"type"`
	Args   []string `json:"args,omitempty"`
	Origin string   `json:"origin"`
	Panic  bool     `json:"panic,omitempty"`
}

// Run is one execution of a scenario document.
type Run struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	EntryPoint string     `json:"entry_point"`
	Status     string     `json:"status"`
	Verdict    Verdict    `json:"verdict"`
	Reason     string     `json:"reason,omitempty"`
	Error      string     `json:"error,omitempty"`
	Format     string     `json:"format"`
	Document   string     `json:"document,omitempty"`
	ActCount   int        `json:"act_count"`
	DurationMS *int       `json:"duration_ms,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ActResult is the persisted verdict of a single act within a run.
type ActResult struct {
	RunID          string          `json:"run_id"`
	Ordinal        int             `json:"ordinal"`
	Name           string          `json:"name"`
	Verdict        Verdict         `json:"verdict"`
	NextPoint      string          `json:"next_point"`
	Message        string          `json:"message,omitempty"`
	Faults         []ChaosFault    `json:"faults,omitempty"`
	ObservedFaults map[string]bool `json:"observed_faults"`
}
