package autopilot

import "fmt"

// State is the lifecycle stage of a run.
type State int

const (
	StateInit State = iota
	StateIterating
	StateSucceeded
	StateExhausted
	// StateAborted is entered when a model or transport failure stops the run.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateIterating:
		return "ITERATING"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateExhausted:
		return "EXHAUSTED"
	case StateAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateExhausted || s == StateAborted
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateInit:
		return to == StateIterating || to == StateAborted
	case StateIterating:
		return to == StateIterating || to == StateSucceeded || to == StateExhausted || to == StateAborted
	default:
		return false
	}
}
