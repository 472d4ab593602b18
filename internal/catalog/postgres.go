package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCatalog reads the room inventory from PostgreSQL.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

func NewPostgresCatalog(ctx context.Context, databaseURL string) (*PostgresCatalog, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresCatalog{pool: pool}, nil
}

// NewPostgresCatalogWithPool shares an existing pool (catalog and
// ledger typically point at the same database).
func NewPostgresCatalogWithPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresCatalog, error) {
	if err := initSchema(ctx, pool); err != nil {
		return nil, err
	}
	return &PostgresCatalog{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			capacity INT NOT NULL CHECK (capacity >= 1),
			equipment TEXT[] NOT NULL DEFAULT '{}'
		);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init catalog schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (c *PostgresCatalog) ListRooms(ctx context.Context) ([]Room, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, name, capacity, equipment FROM rooms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var r Room
		if err := rows.Scan(&r.ID, &r.Name, &r.Capacity, &r.Equipment); err != nil {
			return nil, fmt.Errorf("scan room row: %w", err)
		}
		rooms = append(rooms, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate room rows: %w", err)
	}
	return rooms, nil
}

func (c *PostgresCatalog) ByID(ctx context.Context, id string) (Room, error) {
	var r Room
	err := c.pool.QueryRow(ctx,
		`SELECT id, name, capacity, equipment FROM rooms WHERE id=$1`, id).
		Scan(&r.ID, &r.Name, &r.Capacity, &r.Equipment)
	if errors.Is(err, pgx.ErrNoRows) {
		return Room{}, ErrNotFound
	}
	if err != nil {
		return Room{}, fmt.Errorf("query room by id: %w", err)
	}
	return r, nil
}

func (c *PostgresCatalog) ByName(ctx context.Context, name string) (Room, error) {
	var r Room
	err := c.pool.QueryRow(ctx,
		`SELECT id, name, capacity, equipment FROM rooms WHERE lower(name)=lower($1)`, name).
		Scan(&r.ID, &r.Name, &r.Capacity, &r.Equipment)
	if errors.Is(err, pgx.ErrNoRows) {
		return Room{}, ErrNotFound
	}
	if err != nil {
		return Room{}, fmt.Errorf("query room by name: %w", err)
	}
	return r, nil
}

func (c *PostgresCatalog) Close() error {
	c.pool.Close()
	return nil
}
