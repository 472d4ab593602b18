package resolver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"roomclerk/internal/catalog"
	"roomclerk/internal/ledger"
)

// Resolver matches completed booking requests against the room
// catalog and the reservation ledger. It owns neither: both are read
// through their repository interfaces.
type Resolver struct {
	catalog catalog.Catalog
	ledger  ledger.Ledger
	buffer  time.Duration
}

func New(cat catalog.Catalog, led ledger.Ledger, buffer time.Duration) *Resolver {
	if buffer < 0 {
		buffer = ledger.DefaultTurnoverBuffer
	}
	return &Resolver{catalog: cat, ledger: led, buffer: buffer}
}

// FindCandidates returns the rooms whose capacity covers the request
// and whose equipment is a superset of the requested set, in catalog
// order. An empty result means no room matches the capability
// requirements at all.
func (r *Resolver) FindCandidates(ctx context.Context, minCapacity int, equipment []string) ([]catalog.Room, error) {
	rooms, err := r.catalog.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	var out []catalog.Room
	for _, room := range rooms {
		if room.Capacity >= minCapacity && room.HasEquipment(equipment) {
			out = append(out, room)
		}
	}
	return out, nil
}

// CheckAvailability reports whether the room is free for [start, end)
// under the turnover buffer.
func (r *Resolver) CheckAvailability(ctx context.Context, room catalog.Room, start, end time.Time) (bool, error) {
	existing, err := r.ledger.ListReservations(ctx, room.ID)
	if err != nil {
		return false, fmt.Errorf("list reservations for %s: %w", room.ID, err)
	}
	for _, res := range existing {
		if ledger.Conflicts(start, end, res.Start, res.End, r.buffer) {
			return false, nil
		}
	}
	return true, nil
}

// RankAndFilter partitions candidates by availability, preserving
// candidate order within each partition. The first available room in
// catalog order is the one offered to the user.
func (r *Resolver) RankAndFilter(ctx context.Context, candidates []catalog.Room, start, end time.Time) (available, unavailable []catalog.Room, err error) {
	for _, room := range candidates {
		free, err := r.CheckAvailability(ctx, room, start, end)
		if err != nil {
			return nil, nil, err
		}
		if free {
			available = append(available, room)
		} else {
			unavailable = append(unavailable, room)
		}
	}
	return available, unavailable, nil
}

// FindSimilar is the fallback when no room passes the strict
// capability filter: rooms with sufficient capacity, ranked by
// equipment-overlap count descending (catalog order breaks ties),
// overlap zero excluded, top n. It is offered as a suggestion, never
// substituted for a strict match.
func (r *Resolver) FindSimilar(ctx context.Context, minCapacity int, equipment []string, n int) ([]catalog.Room, error) {
	if n <= 0 {
		n = 3
	}
	rooms, err := r.catalog.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	requested := make(map[string]bool, len(equipment))
	for _, e := range equipment {
		requested[e] = true
	}

	type scored struct {
		overlap int
		room    catalog.Room
	}
	var candidates []scored
	for _, room := range rooms {
		if room.Capacity < minCapacity {
			continue
		}
		overlap := 0
		for _, e := range room.Equipment {
			if requested[e] {
				overlap++
			}
		}
		if overlap > 0 {
			candidates = append(candidates, scored{overlap: overlap, room: room})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].overlap > candidates[j].overlap
	})

	out := make([]catalog.Room, 0, n)
	for _, c := range candidates {
		if len(out) == n {
			break
		}
		out = append(out, c.room)
	}
	return out, nil
}
