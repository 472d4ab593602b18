package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// InMemoryCatalog holds the room inventory in process. Used for tests
// and for file-seeded local runs.
type InMemoryCatalog struct {
	mu    sync.RWMutex
	rooms []Room
}

func NewInMemoryCatalog(rooms []Room) *InMemoryCatalog {
	out := make([]Room, len(rooms))
	copy(out, rooms)
	return &InMemoryCatalog{rooms: out}
}

// NewFileCatalog seeds an in-memory catalog from a JSON file holding
// an array of rooms.
func NewFileCatalog(path string) (*InMemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rooms file: %w", err)
	}
	var rooms []Room
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("parse rooms file: %w", err)
	}
	return NewInMemoryCatalog(rooms), nil
}

func (c *InMemoryCatalog) ListRooms(_ context.Context) ([]Room, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Room, len(c.rooms))
	copy(out, c.rooms)
	return out, nil
}

func (c *InMemoryCatalog) ByID(_ context.Context, id string) (Room, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.rooms {
		if r.ID == id {
			return r, nil
		}
	}
	return Room{}, ErrNotFound
}

func (c *InMemoryCatalog) ByName(_ context.Context, name string) (Room, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.rooms {
		if strings.EqualFold(r.Name, name) {
			return r, nil
		}
	}
	return Room{}, ErrNotFound
}

func (c *InMemoryCatalog) Close() error { return nil }
