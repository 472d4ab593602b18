package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestHasEquipmentSubset(t *testing.T) {
	room := Room{Equipment: []string{"Projector", "whiteboard"}}

	if !room.HasEquipment(nil) {
		t.Fatalf("empty request should match any room")
	}
	if !room.HasEquipment([]string{"projector"}) {
		t.Fatalf("case-insensitive match failed")
	}
	if !room.HasEquipment([]string{"projector", "whiteboard"}) {
		t.Fatalf("full subset should match")
	}
	if room.HasEquipment([]string{"projector", "video"}) {
		t.Fatalf("missing item should not match")
	}
}

func TestInMemoryCatalogLookups(t *testing.T) {
	c := NewInMemoryCatalog([]Room{
		{ID: "room-1", Name: "Huddle", Capacity: 2},
		{ID: "room-2", Name: "Studio", Capacity: 6},
	})
	ctx := context.Background()

	rooms, err := c.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms() error = %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("len(rooms) = %d, want 2", len(rooms))
	}

	got, err := c.ByID(ctx, "room-2")
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if got.Name != "Studio" {
		t.Fatalf("ByID() = %+v, want Studio", got)
	}

	got, err = c.ByName(ctx, "huddle")
	if err != nil {
		t.Fatalf("ByName() error = %v", err)
	}
	if got.ID != "room-1" {
		t.Fatalf("ByName() = %+v, want room-1", got)
	}

	if _, err := c.ByID(ctx, "room-9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestNewFileCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.json")
	data := `[{"id":"room-1","name":"Huddle","capacity":2,"equipment":["whiteboard"]}]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	c, err := NewFileCatalog(path)
	if err != nil {
		t.Fatalf("NewFileCatalog() error = %v", err)
	}
	room, err := c.ByID(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if room.Capacity != 2 || len(room.Equipment) != 1 {
		t.Fatalf("room = %+v", room)
	}

	if _, err := NewFileCatalog(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("NewFileCatalog(absent) should fail")
	}
}
