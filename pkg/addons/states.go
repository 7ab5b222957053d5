package addons

// State represents the bootstrap lifecycle state of a registered add-on.
// Add-ons begin in [StateRegistered] when handed to the manager and move
// through the states as bootstrap progresses.
type State string

const (
	// StateUnknown is the zero value, reported for add-ons the manager
	// has never seen.
	StateUnknown State = "unknown"

	// StateRegistered indicates the add-on has been registered but
	// bootstrap has not reached it yet.
	StateRegistered State = "registered"

	// StateInitializing indicates the add-on's Initialize is running.
	StateInitializing State = "initializing"

	// StateReady indicates the add-on initialized successfully. This is
	// a terminal state.
	StateReady State = "ready"

	// StateFailed indicates the add-on's configuration or Initialize
	// failed. This is a terminal state.
	StateFailed State = "failed"
)

// validTransitions defines the allowed state transitions for an add-on
// during bootstrap. Initialization runs exactly once, so both Ready and
// Failed are dead ends.
var validTransitions = map[State][]State{
	StateRegistered:   {StateInitializing, StateFailed},
	StateInitializing: {StateReady, StateFailed},
	StateReady:        {},
	StateFailed:       {},
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether the state is final. Terminal states have no
// valid outgoing transitions.
func (s State) IsTerminal() bool {
	return s == StateReady || s == StateFailed
}

// ValidTransition reports whether a transition from one state to another
// is allowed. Same-state transitions are always rejected.
func ValidTransition(from, to State) bool {
	if from == to {
		return false
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
