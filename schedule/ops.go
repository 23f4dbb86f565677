package schedule

import (
	"context"
	"errors"
	"fmt"

	"farm_scheduler/inventory"
	"farm_scheduler/records"

	"github.com/rs/zerolog/log"
)

// ErrBadInput marks caller mistakes other than unknown ids.
var ErrBadInput = errors.New("bad input")

// Plants returns every live plant ordered by id.
func (e *Engine) Plants() []PlantView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return viewPlants(e.inv.All())
}

// Plant returns one live plant.
func (e *Engine) Plant(id uint64) (PlantView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.inv.Get(id)
	if err != nil {
		return PlantView{}, err
	}
	return viewPlant(p), nil
}

// Slots returns every slot of the layout ordered by id.
func (e *Engine) Slots() []SlotView {
	e.mu.Lock()
	defer e.mu.Unlock()
	slots := e.layout.Slots()
	out := make([]SlotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, viewSlot(s))
	}
	return out
}

// SlotsNeedingPeat lists slots without growing medium.
func (e *Engine) SlotsNeedingPeat() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slotsNeedingPeat()
}

func (e *Engine) slotsNeedingPeat() []string {
	var ids []string
	for _, s := range e.layout.Slots() {
		if !s.Occupied {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// RecomputeRepotSchedule rebuilds the repot table from the inventory and
// returns it as ordered buckets.
func (e *Engine) RecomputeRepotSchedule() []Bucket {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recompute()
	return e.buckets()
}

// RepotTable returns the current repot table as ordered buckets.
func (e *Engine) RepotTable() []Bucket {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buckets()
}

func (e *Engine) buckets() []Bucket {
	keys := e.repot.Keys()
	out := make([]Bucket, 0, len(keys))
	for _, k := range keys {
		out = append(out, Bucket{Remaining: k, Plants: viewPlants(e.repot.Bucket(k))})
	}
	return out
}

// Due returns the plants due for repot now.
func (e *Engine) Due() []PlantView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return viewPlants(e.repot.Due())
}

// AdvanceDay records one elapsed day for a single plant.
func (e *Engine) AdvanceDay(ctx context.Context, id uint64) (PlantView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.inv.Get(id)
	if err != nil {
		return PlantView{}, err
	}
	p.AdvanceDay()
	e.persistPlants(ctx, p)
	e.recompute()
	return viewPlant(p), nil
}

// AdvanceAllDays records one elapsed day for every plant and returns how
// many plants were advanced.
func (e *Engine) AdvanceAllDays(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advanceAll(ctx, 1)
}

func (e *Engine) advanceAll(ctx context.Context, days int) int {
	plants := e.inv.All()
	for _, p := range plants {
		for range days {
			p.AdvanceDay()
		}
	}
	if len(plants) > 0 {
		e.persistPlants(ctx, plants...)
	}
	e.recompute()
	return len(plants)
}

// Promote moves a plant to its next growth stage. At stage Full it returns
// a farmerr.NoOpError and the plant is left as it was.
func (e *Engine) Promote(ctx context.Context, id uint64) (PlantView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.inv.Get(id)
	if err != nil {
		return PlantView{}, err
	}
	if err := p.Promote(); err != nil {
		log.Warn().Err(err).Uint64("plant", id).Msg("Promotion refused")
		return viewPlant(p), err
	}
	e.persistPlants(ctx, p)
	e.recompute()
	log.Info().Uint64("plant", id).Str("stage", p.Stage.String()).Msg("Plant promoted")
	return viewPlant(p), nil
}

// Seed places a new plant of typeName into slotID.
func (e *Engine) Seed(ctx context.Context, slotID, typeName string) (PlantView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pt, err := e.catalog.Lookup(typeName)
	if err != nil {
		return PlantView{}, err
	}
	slot, err := e.layout.Slot(slotID)
	if err != nil {
		return PlantView{}, err
	}
	p, err := e.inv.Plant(slot, pt)
	if err != nil {
		return PlantView{}, fmt.Errorf("%w: %w", ErrBadInput, err)
	}
	e.persistPlants(ctx, p)
	e.persistSlots(ctx, slot)
	e.recompute()
	log.Info().Uint64("plant", p.ID).Str("type", pt.Name).Str("slot", slot.ID).Msg("Plant seeded")
	return viewPlant(p), nil
}

// Remove harvests a plant: it leaves the inventory, its slot is freed and
// its record deleted.
func (e *Engine) Remove(ctx context.Context, id uint64) (PlantView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.remove(ctx, id)
	if err != nil {
		return PlantView{}, err
	}
	e.recompute()
	log.Info().Uint64("plant", id).Msg("Plant removed")
	return viewPlant(p), nil
}

func (e *Engine) remove(ctx context.Context, id uint64) (*inventory.Plant, error) {
	p, err := e.inv.Remove(id)
	if err != nil {
		return nil, err
	}
	if err := e.store.Delete(ctx, records.KindPlant, p.Key()); err != nil {
		log.Error().Err(err).Uint64("plant", id).Msg("Failed to delete plant record")
	}
	e.persistSlots(ctx, p.Slot)
	return p, nil
}

// SetSlotMedium records whether a slot holds growing medium. Medium cannot
// be taken out from under a plant.
func (e *Engine) SetSlotMedium(ctx context.Context, slotID string, occupied bool) (SlotView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot, err := e.layout.Slot(slotID)
	if err != nil {
		return SlotView{}, err
	}
	if !occupied && !slot.Free() {
		return viewSlot(slot), fmt.Errorf("%w: slot %s: %w", ErrBadInput, slot.ID, inventory.ErrSlotTaken)
	}
	slot.Occupied = occupied
	e.persistSlots(ctx, slot)
	return viewSlot(slot), nil
}

// SweepDead removes every plant isDead reports as dead and returns them.
func (e *Engine) SweepDead(ctx context.Context, isDead DeathPredicate) []PlantView {
	if isDead == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var dead []PlantView
	for _, p := range e.inv.All() {
		if !isDead(p) {
			continue
		}
		if _, err := e.remove(ctx, p.ID); err != nil {
			log.Error().Err(err).Uint64("plant", p.ID).Msg("Failed to remove dead plant")
			continue
		}
		dead = append(dead, viewPlant(p))
		log.Info().Uint64("plant", p.ID).Str("slot", p.Slot.ID).Msg("Dead plant removed")
	}
	if len(dead) > 0 {
		e.recompute()
	}
	return dead
}
