package e2b

import "fmt"

// State is the lifecycle state of a remote template build.
type State string

// Build states. Ready, Failed, and TimedOut are terminal.
const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateReady      State = "ready"
	StateFailed     State = "failed"
	StateTimedOut   State = "timed_out"
)

// BuildStatus is one observation of a remote build, as reported by the API
// or synthesized locally (timeout).
type BuildStatus struct {
	State  State
	Reason string // populated for StateFailed, verbatim from the API
}

// Terminal reports whether the status ends the polling loop.
func (s BuildStatus) Terminal() bool {
	switch s.State {
	case StateReady, StateFailed, StateTimedOut:
		return true
	default:
		return false
	}
}

// parseStatus maps the API's status strings onto BuildStatus values.
func parseStatus(raw, reason string) (BuildStatus, error) {
	switch raw {
	case "waiting":
		return BuildStatus{State: StatePending}, nil
	case "building":
		return BuildStatus{State: StateInProgress}, nil
	case "ready":
		return BuildStatus{State: StateReady}, nil
	case "error", "failed":
		return BuildStatus{State: StateFailed, Reason: reason}, nil
	default:
		return BuildStatus{}, fmt.Errorf("unrecognized build status %q", raw)
	}
}
