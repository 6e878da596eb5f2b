package rotation

import (
	"time"
)

// State identifies one step of a credential rotation run.
type State string

const (
	// StateFetch reads the current credential from the secret store.
	StateFetch State = "fetch"

	// StateAuthOld logs in with the current credential (session A).
	StateAuthOld State = "auth_old"

	// StateCleanup deletes keys already INACTIVE from earlier rotations.
	// Failures here are downgraded to warnings.
	StateCleanup State = "cleanup"

	// StateCreate provisions the new access key. Fatal on failure: the
	// old key remains the sole active credential, which is safe.
	StateCreate State = "create"

	// StateVerify proves the new key authenticates (session B).
	StateVerify State = "verify"

	// StateRollback deletes the just-created key after failed
	// verification, using the still-valid session A.
	StateRollback State = "rollback"

	// StateCommit writes the verified credential to the secret store,
	// making it the credential of record. Never rolled back once the
	// write has been attempted: a failure leaves both keys active.
	StateCommit State = "commit"

	// StateDeactivate sets the old key INACTIVE via session B. Failures
	// are downgraded to warnings: the new credential is already live.
	StateDeactivate State = "deactivate"

	// StateDone is the successful terminal state.
	StateDone State = "done"

	// StateFailed is the failed terminal state.
	StateFailed State = "failed"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal returns true for done and failed.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// ValidTransitions defines the only allowed step orderings. Correctness
// depends on the exact create→verify→commit→deactivate sequence; no step
// may be skipped or reordered.
var ValidTransitions = map[State][]State{
	StateFetch:      {StateAuthOld, StateFailed},
	StateAuthOld:    {StateCleanup, StateFailed},
	StateCleanup:    {StateCreate},
	StateCreate:     {StateVerify, StateFailed},
	StateVerify:     {StateCommit, StateRollback},
	StateRollback:   {StateFailed},
	StateCommit:     {StateDeactivate, StateFailed},
	StateDeactivate: {StateDone},
}

// CanTransitionTo checks if a transition from s to next is valid.
func (s State) CanTransitionTo(next State) bool {
	for _, valid := range ValidTransitions[s] {
		if valid == next {
			return true
		}
	}
	return false
}

// Transition records one state change with its outcome.
type Transition struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Note      string    `json:"note,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
