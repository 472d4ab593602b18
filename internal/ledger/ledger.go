package ledger

import (
	"context"
	"time"
)

// DefaultTurnoverBuffer is appended to every existing reservation's
// end instant to model cleanup time between bookings.
const DefaultTurnoverBuffer = 30 * time.Minute

// Reservation is an immutable booking record. It is created only
// through the confirmation path; cancellation appends a tombstone
// rather than editing in place.
type Reservation struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	HeldBy    string    `json:"held_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Conflicts reports whether a new interval [s, e) collides with an
// existing reservation [rs, re) under turnover buffer d:
// s < re+d && e > rs. The buffer extends only the existing booking's
// end, so back-to-back bookings need transition time after, not
// before, an occupied slot.
func Conflicts(s, e, rs, re time.Time, d time.Duration) bool {
	return s.Before(re.Add(d)) && e.After(rs)
}

// Ledger owns the reservation history per room. AppendReservation
// must be atomic with respect to concurrent appends for the same
// room: two overlapping confirmations must not both succeed.
type Ledger interface {
	ListReservations(ctx context.Context, roomID string) ([]Reservation, error)
	AppendReservation(ctx context.Context, r Reservation) (Reservation, error)
	CancelReservation(ctx context.Context, reservationID string) error
	Close() error
}
