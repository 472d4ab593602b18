package booking

import "errors"

// Error taxonomy shared across the resolver, ledger and dialog engine.
// Incomplete requests are not errors: they route to clarification
// inside the state machine and never escalate.
var (
	// ErrNoMatchingResource: no room satisfies the capability filter.
	ErrNoMatchingResource = errors.New("no resource matches requirements")

	// ErrNoAvailableResource: rooms match but all conflict at the
	// requested time.
	ErrNoAvailableResource = errors.New("matching resources exist but none is available at the requested time")

	// ErrBookingConflict: lost the race on the final append.
	ErrBookingConflict = errors.New("resource just became unavailable")

	// ErrCollaboratorTimeout: the interpreter exceeded its deadline.
	ErrCollaboratorTimeout = errors.New("collaborator timed out")

	// ErrCollaborator: any other interpreter failure.
	ErrCollaborator = errors.New("collaborator error")

	// ErrPersistence: store I/O failure on read or write.
	ErrPersistence = errors.New("persistence error")
)
