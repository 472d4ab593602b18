package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"roomclerk/internal/booking"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 9, 1, hour, min, 0, 0, time.UTC)
}

func TestConflictsTurnoverBuffer(t *testing.T) {
	// Existing booking 10:00-11:00 with a 30m buffer blocks until 11:30.
	cases := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"overlapping", at(10, 30), at(11, 30), true},
		{"inside buffer", at(11, 15), at(12, 0), true},
		{"exactly at buffer end", at(11, 30), at(12, 0), false},
		{"well after", at(13, 0), at(14, 0), false},
		{"before, touching start", at(9, 0), at(10, 0), false},
		{"before, overlapping start", at(9, 30), at(10, 15), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Conflicts(tc.start, tc.end, at(10, 0), at(11, 0), 30*time.Minute)
			if got != tc.want {
				t.Fatalf("Conflicts(%v-%v) = %v, want %v", tc.start, tc.end, got, tc.want)
			}
		})
	}
}

func TestAppendReservationConflict(t *testing.T) {
	l := NewInMemoryLedger(30 * time.Minute)
	ctx := context.Background()

	first, err := l.AppendReservation(ctx, Reservation{RoomID: "room-1", Start: at(10, 0), End: at(11, 0), HeldBy: "Alex"})
	if err != nil {
		t.Fatalf("AppendReservation() error = %v", err)
	}
	if first.ID == "" {
		t.Fatalf("reservation ID should be assigned")
	}

	_, err = l.AppendReservation(ctx, Reservation{RoomID: "room-1", Start: at(11, 15), End: at(12, 0), HeldBy: "Sam"})
	if !errors.Is(err, booking.ErrBookingConflict) {
		t.Fatalf("AppendReservation() error = %v, want booking conflict", err)
	}

	if _, err := l.AppendReservation(ctx, Reservation{RoomID: "room-2", Start: at(10, 0), End: at(11, 0), HeldBy: "Sam"}); err != nil {
		t.Fatalf("other room should not conflict, got %v", err)
	}
}

func TestAppendReservationConcurrent(t *testing.T) {
	l := NewInMemoryLedger(30 * time.Minute)
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.AppendReservation(ctx, Reservation{
				RoomID: "room-1",
				Start:  at(14, 0),
				End:    at(15, 0),
				HeldBy: "racer",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, booking.ErrBookingConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want exactly 1", succeeded)
	}

	rs, err := l.ListReservations(ctx, "room-1")
	if err != nil {
		t.Fatalf("ListReservations() error = %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("len(reservations) = %d, want 1", len(rs))
	}
}

func TestCancelReservationTombstone(t *testing.T) {
	l := NewInMemoryLedger(30 * time.Minute)
	ctx := context.Background()

	r, err := l.AppendReservation(ctx, Reservation{RoomID: "room-1", Start: at(10, 0), End: at(11, 0), HeldBy: "Alex"})
	if err != nil {
		t.Fatalf("AppendReservation() error = %v", err)
	}
	if err := l.CancelReservation(ctx, r.ID); err != nil {
		t.Fatalf("CancelReservation() error = %v", err)
	}

	rs, err := l.ListReservations(ctx, "room-1")
	if err != nil {
		t.Fatalf("ListReservations() error = %v", err)
	}
	if len(rs) != 0 {
		t.Fatalf("cancelled reservation still listed: %v", rs)
	}

	// The slot opens back up after cancellation.
	if _, err := l.AppendReservation(ctx, Reservation{RoomID: "room-1", Start: at(10, 0), End: at(11, 0), HeldBy: "Sam"}); err != nil {
		t.Fatalf("rebooking cancelled slot failed: %v", err)
	}

	if err := l.CancelReservation(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CancelReservation(missing) error = %v, want ErrNotFound", err)
	}
}

func TestAppendReservationRejectsInvertedInterval(t *testing.T) {
	l := NewInMemoryLedger(0)
	if _, err := l.AppendReservation(context.Background(), Reservation{RoomID: "r", Start: at(11, 0), End: at(10, 0)}); err == nil {
		t.Fatalf("AppendReservation() should reject end before start")
	}
}
