package dialog

import "fmt"

// Decision is the routing outcome computed at one transition point.
// The table below makes every edge of the machine enumerable, rather
// than burying routing in ad hoc conditionals.
type Decision string

const (
	DecisionReceivedInput   Decision = "received_input"
	DecisionNeedsClarity    Decision = "needs_clarity"
	DecisionComplete        Decision = "complete"
	DecisionFoundAvailable  Decision = "found_available"
	DecisionNoMatch         Decision = "no_match"
	DecisionNoneAvailable   Decision = "none_available"
	DecisionConfirmYes      Decision = "confirm_yes"
	DecisionConfirmNo       Decision = "confirm_no"
	DecisionConfirmUnclear  Decision = "confirm_unclear"
	DecisionWriteConflict   Decision = "write_conflict"
	DecisionCollaboratorErr Decision = "collaborator_error"
)

// transitions is the full edge set: state × decision → next state.
// Booked and Failed are terminal for the turn; a later turn reopens
// the session through the interpretation entry edge.
var transitions = map[State]map[Decision]State{
	StateStart: {
		DecisionReceivedInput: StateAwaitingInterpretation,
	},
	StateAwaitingClarification: {
		DecisionReceivedInput: StateAwaitingInterpretation,
	},
	StateBooked: {
		DecisionReceivedInput: StateAwaitingInterpretation,
	},
	StateFailed: {
		DecisionReceivedInput: StateAwaitingInterpretation,
	},
	StateAwaitingInterpretation: {
		DecisionNeedsClarity:    StateAwaitingClarification,
		DecisionComplete:        StateResolving,
		DecisionCollaboratorErr: StateFailed,
	},
	StateResolving: {
		DecisionFoundAvailable: StateAwaitingConfirmation,
		DecisionNoMatch:        StateFailed,
		DecisionNoneAvailable:  StateFailed,
	},
	StateAwaitingConfirmation: {
		DecisionConfirmYes:     StateBooked,
		DecisionConfirmNo:      StateFailed,
		DecisionConfirmUnclear: StateAwaitingConfirmation,
		DecisionWriteConflict:  StateFailed,
	},
}

// Next resolves one edge of the transition table.
func Next(from State, d Decision) (State, error) {
	edges, ok := transitions[from]
	if !ok {
		return "", fmt.Errorf("state %q has no outgoing edges", from)
	}
	to, ok := edges[d]
	if !ok {
		return "", fmt.Errorf("no edge from state %q on decision %q", from, d)
	}
	return to, nil
}
