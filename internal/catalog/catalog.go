package catalog

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("room not found")

// Room is immutable reference data describing one bookable resource.
type Room struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Capacity  int      `json:"capacity"`
	Equipment []string `json:"equipment"`
}

// HasEquipment reports whether the room's equipment covers every
// requested item (subset semantics; an empty request matches all).
func (r Room) HasEquipment(requested []string) bool {
	if len(requested) == 0 {
		return true
	}
	have := make(map[string]bool, len(r.Equipment))
	for _, e := range r.Equipment {
		have[strings.ToLower(strings.TrimSpace(e))] = true
	}
	for _, want := range requested {
		if !have[strings.ToLower(strings.TrimSpace(want))] {
			return false
		}
	}
	return true
}

// Catalog answers capability queries over the room inventory.
// Implementations may cache for the process lifetime; refresh policy
// belongs to the owner of the backing data.
type Catalog interface {
	ListRooms(ctx context.Context) ([]Room, error)
	ByID(ctx context.Context, id string) (Room, error)
	ByName(ctx context.Context, name string) (Room, error)
	Close() error
}
