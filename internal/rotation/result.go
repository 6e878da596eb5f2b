package rotation

import (
	"fmt"
	"time"

	"github.com/systmms/keyrotor/internal/config"
)

// Outcome is the terminal verdict for one task.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Result is produced once per task and never mutated afterwards. It
// carries enough for an operator to decide whether manual remediation is
// needed: the state the run failed at, any orphaned key, and whether the
// account was left with two active keys.
type Result struct {
	Task        config.TaskConfig `json:"task"`
	Outcome     Outcome           `json:"outcome"`
	FailedAt    State             `json:"failed_at,omitempty"`
	Detail      string            `json:"detail,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
	OldKeyID    string            `json:"old_key_id,omitempty"`
	NewKeyID    string            `json:"new_key_id,omitempty"`
	OrphanedKey string            `json:"orphaned_key_id,omitempty"`
	DualActive  bool              `json:"dual_active,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
	Transitions []Transition      `json:"transitions,omitempty"`

	// Err is the terminal error; Detail is its rendered form for
	// reports and history records.
	Err error `json:"-"`
}

// run tracks the in-flight state and transition history of one rotation.
type run struct {
	current     State
	transitions []Transition
}

func newRun() *run {
	return &run{current: StateFetch, transitions: []Transition{
		{To: StateFetch, Timestamp: time.Now()},
	}}
}

// advance moves the run to next, recording the transition. An invalid
// transition is a programming error and is reported rather than applied.
func (r *run) advance(next State, note string, err error) error {
	if !r.current.CanTransitionTo(next) {
		return fmt.Errorf("invalid state transition: %s -> %s", r.current, next)
	}
	tr := Transition{From: r.current, To: next, Note: note, Timestamp: time.Now()}
	if err != nil {
		tr.Error = err.Error()
	}
	r.transitions = append(r.transitions, tr)
	r.current = next
	return nil
}
