// Package inventory tracks the living plants of one farm and keeps every
// plant and its slot pointing at each other.
package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"farm_scheduler/crops"
	"farm_scheduler/farmerr"
	"farm_scheduler/layout"
)

var (
	// ErrSlotTaken is returned when a slot already holds a plant.
	ErrSlotTaken = errors.New("slot already holds a plant")
	// ErrNoMedium is returned when planting into a slot without growing medium.
	ErrNoMedium = errors.New("slot has no growing medium")
	// ErrDuplicateID is returned when restoring a plant id already in use.
	ErrDuplicateID = errors.New("plant id already in use")
)

// Inventory owns the live plants and the id sequence. It is not safe for
// concurrent use; the schedule engine serializes access.
type Inventory struct {
	plants map[uint64]*Plant
	nextID uint64
}

func New() *Inventory {
	return &Inventory{
		plants: make(map[uint64]*Plant),
		nextID: 1,
	}
}

// Plant records a seeding: a new plant of type pt is placed in slot at
// stage Seed.
func (inv *Inventory) Plant(slot *layout.Slot, pt *crops.PlantType) (*Plant, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	if !slot.Occupied {
		return nil, fmt.Errorf("slot %s: %w", slot.ID, ErrNoMedium)
	}

	p := &Plant{ID: inv.nextID, Type: pt, Slot: slot, Stage: crops.Seed}
	inv.nextID++
	inv.bind(p)
	return p, nil
}

// Restore re-inserts a plant recovered from durable storage under its
// original id. The id sequence continues after the highest restored id.
func (inv *Inventory) Restore(id uint64, pt *crops.PlantType, slot *layout.Slot, stage crops.GrowthStage, days int) (*Plant, error) {
	if id == 0 {
		return nil, errors.New("plant id 0 is reserved")
	}
	if _, exists := inv.plants[id]; exists {
		return nil, fmt.Errorf("plant %d: %w", id, ErrDuplicateID)
	}
	if !stage.Valid() {
		return nil, fmt.Errorf("plant %d: invalid stage %d", id, int(stage))
	}
	if days < 0 {
		return nil, fmt.Errorf("plant %d: negative days in stage %d", id, days)
	}
	if err := checkSlot(slot); err != nil {
		return nil, err
	}

	p := &Plant{ID: id, Type: pt, Slot: slot, Stage: stage, DaysInStage: days}
	if id >= inv.nextID {
		inv.nextID = id + 1
	}
	inv.bind(p)
	return p, nil
}

// Remove takes a plant out of the inventory and frees its slot. The slot
// keeps its growing medium.
func (inv *Inventory) Remove(id uint64) (*Plant, error) {
	p, err := inv.Get(id)
	if err != nil {
		return nil, err
	}
	delete(inv.plants, id)
	if p.Slot != nil && p.Slot.PlantID == p.ID {
		p.Slot.PlantID = 0
	}
	return p, nil
}

// Get returns the plant with the given id.
func (inv *Inventory) Get(id uint64) (*Plant, error) {
	p, ok := inv.plants[id]
	if !ok {
		return nil, farmerr.NotFound("plant", strconv.FormatUint(id, 10))
	}
	return p, nil
}

// All returns the plants ordered by id.
func (inv *Inventory) All() []*Plant {
	out := make([]*Plant, 0, len(inv.plants))
	for _, p := range inv.plants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (inv *Inventory) Len() int { return len(inv.plants) }

// NextID is the id the next seeded plant will receive.
func (inv *Inventory) NextID() uint64 { return inv.nextID }

// CheckSymmetry verifies that every plant's slot points back at it and
// that every slot of l holding a plant id refers to a live plant in that
// slot.
func (inv *Inventory) CheckSymmetry(l *layout.Layout) error {
	for _, p := range inv.plants {
		if p.Slot == nil {
			return fmt.Errorf("plant %d has no slot", p.ID)
		}
		slot, err := l.Slot(p.Slot.ID)
		if err != nil {
			return fmt.Errorf("plant %d: %w", p.ID, err)
		}
		if slot != p.Slot {
			return fmt.Errorf("plant %d references a slot %s outside the layout", p.ID, p.Slot.ID)
		}
		if slot.PlantID != p.ID {
			return fmt.Errorf("plant %d in slot %s but slot holds plant %d", p.ID, slot.ID, slot.PlantID)
		}
	}
	for _, slot := range l.Slots() {
		if slot.Free() {
			continue
		}
		p, ok := inv.plants[slot.PlantID]
		if !ok {
			return fmt.Errorf("slot %s holds unknown plant %d", slot.ID, slot.PlantID)
		}
		if p.Slot != slot {
			return fmt.Errorf("slot %s holds plant %d which sits elsewhere", slot.ID, p.ID)
		}
	}
	return nil
}

func (inv *Inventory) bind(p *Plant) {
	inv.plants[p.ID] = p
	p.Slot.PlantID = p.ID
}

func checkSlot(slot *layout.Slot) error {
	if slot == nil {
		return errors.New("slot is nil")
	}
	if !slot.Free() {
		return fmt.Errorf("slot %s: %w", slot.ID, ErrSlotTaken)
	}
	return nil
}
