package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"roomclerk/internal/booking"
)

// PostgresLedger persists reservations in PostgreSQL. Appends take a
// per-room advisory lock inside the transaction, re-check overlap,
// then insert, so two overlapping confirmations for the same room
// serialize and exactly one wins.
type PostgresLedger struct {
	pool   *pgxpool.Pool
	buffer time.Duration
}

func NewPostgresLedger(ctx context.Context, databaseURL string, buffer time.Duration) (*PostgresLedger, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	l := &PostgresLedger{pool: pool, buffer: buffer}
	if l.buffer < 0 {
		l.buffer = DefaultTurnoverBuffer
	}
	if err := l.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

func (l *PostgresLedger) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			held_by TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (start_time < end_time)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_room_start ON reservations (room_id, start_time);`,
		`CREATE TABLE IF NOT EXISTS reservation_tombstones (
			reservation_id TEXT PRIMARY KEY REFERENCES reservations(id),
			cancelled_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}
	for _, stmt := range stmts {
		if _, err := l.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init ledger schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (l *PostgresLedger) ListReservations(ctx context.Context, roomID string) ([]Reservation, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, room_id, start_time, end_time, held_by, created_at
		 FROM reservations r
		 WHERE room_id=$1
		   AND NOT EXISTS (SELECT 1 FROM reservation_tombstones t WHERE t.reservation_id = r.id)
		 ORDER BY start_time`,
		roomID)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.ID, &r.RoomID, &r.Start, &r.End, &r.HeldBy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservation rows: %w", err)
	}
	return out, nil
}

func (l *PostgresLedger) AppendReservation(ctx context.Context, r Reservation) (Reservation, error) {
	if !r.End.After(r.Start) {
		return Reservation{}, fmt.Errorf("reservation end must be after start")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return Reservation{}, fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, r.RoomID); err != nil {
		return Reservation{}, fmt.Errorf("lock room %s: %w", r.RoomID, err)
	}

	var conflicts int
	err = tx.QueryRow(ctx,
		`SELECT count(*) FROM reservations res
		 WHERE res.room_id=$1
		   AND res.start_time < $3
		   AND res.end_time + $4 > $2
		   AND NOT EXISTS (SELECT 1 FROM reservation_tombstones t WHERE t.reservation_id = res.id)`,
		r.RoomID, r.Start, r.End, l.buffer).Scan(&conflicts)
	if err != nil {
		return Reservation{}, fmt.Errorf("check overlap: %w", err)
	}
	if conflicts > 0 {
		return Reservation{}, fmt.Errorf("room %s: %w", r.RoomID, booking.ErrBookingConflict)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO reservations (id, room_id, start_time, end_time, held_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.RoomID, r.Start, r.End, r.HeldBy, r.CreatedAt)
	if err != nil {
		return Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Reservation{}, fmt.Errorf("commit append tx: %w", err)
	}
	return r, nil
}

func (l *PostgresLedger) CancelReservation(ctx context.Context, reservationID string) error {
	tag, err := l.pool.Exec(ctx,
		`INSERT INTO reservation_tombstones (reservation_id)
		 SELECT id FROM reservations WHERE id=$1
		 ON CONFLICT (reservation_id) DO NOTHING`,
		reservationID)
	if err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either unknown id or already tombstoned; check which.
		var exists bool
		if err := l.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM reservations WHERE id=$1)`, reservationID).Scan(&exists); err != nil {
			return fmt.Errorf("cancel reservation: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}
