package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"roomclerk/internal/booking"
)

var ErrNotFound = errors.New("reservation not found")

// InMemoryLedger keeps reservations in process. The append path holds
// the write lock across the conflict re-check and the insert, which
// gives the per-room atomicity guarantee directly.
type InMemoryLedger struct {
	mu         sync.RWMutex
	byRoom     map[string][]Reservation
	tombstones map[string]bool
	buffer     time.Duration
}

func NewInMemoryLedger(buffer time.Duration) *InMemoryLedger {
	if buffer < 0 {
		buffer = DefaultTurnoverBuffer
	}
	return &InMemoryLedger{
		byRoom:     make(map[string][]Reservation),
		tombstones: make(map[string]bool),
		buffer:     buffer,
	}
}

func (l *InMemoryLedger) ListReservations(_ context.Context, roomID string) ([]Reservation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	arr := l.byRoom[roomID]
	out := make([]Reservation, 0, len(arr))
	for _, r := range arr {
		if l.tombstones[r.ID] {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (l *InMemoryLedger) AppendReservation(_ context.Context, r Reservation) (Reservation, error) {
	if !r.End.After(r.Start) {
		return Reservation{}, fmt.Errorf("reservation end must be after start")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.byRoom[r.RoomID] {
		if l.tombstones[existing.ID] {
			continue
		}
		if Conflicts(r.Start, r.End, existing.Start, existing.End, l.buffer) {
			return Reservation{}, fmt.Errorf("room %s %s-%s: %w",
				r.RoomID, r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339),
				booking.ErrBookingConflict)
		}
	}
	l.byRoom[r.RoomID] = append(l.byRoom[r.RoomID], r)
	return r, nil
}

func (l *InMemoryLedger) CancelReservation(_ context.Context, reservationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, arr := range l.byRoom {
		for _, r := range arr {
			if r.ID == reservationID {
				l.tombstones[reservationID] = true
				return nil
			}
		}
	}
	return ErrNotFound
}

func (l *InMemoryLedger) Close() error { return nil }
