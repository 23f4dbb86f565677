// Package schedule owns the live farm state and derives the watering and
// repot schedules from it. All mutations go through one Engine whose mutex
// covers the inventory and its persistence together.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"farm_scheduler/crops"
	"farm_scheduler/inventory"
	"farm_scheduler/layout"
	"farm_scheduler/notify"
	"farm_scheduler/records"

	"github.com/rs/zerolog/log"
)

const (
	DefaultWaterStep    = 6
	DefaultMoveSpeed    = 800
	DefaultTickInterval = time.Minute
)

// Engine is the schedule engine of one farm.
type Engine struct {
	mu sync.Mutex

	catalog *crops.Catalog
	layout  *layout.Layout
	tools   *layout.ToolRegistry
	inv     *inventory.Inventory
	store   *records.Store

	actuator Actuator
	notifier notify.Notifier
	outcomes *OutcomeLog

	waterStep    int
	waterTimes   []int
	repot        RepotSchedule
	moveSpeed    int
	tickInterval time.Duration
	now          func() time.Time
	lastTick     time.Time
}

type Option func(*Engine)

func WithActuator(a Actuator) Option {
	return func(e *Engine) {
		if a != nil {
			e.actuator = a
		}
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

func WithOutcomeLog(l *OutcomeLog) Option {
	return func(e *Engine) { e.outcomes = l }
}

func WithTools(t *layout.ToolRegistry) Option {
	return func(e *Engine) {
		if t != nil {
			e.tools = t
		}
	}
}

// WithWaterStep sets the hours between watering checkpoints.
func WithWaterStep(hours int) Option {
	return func(e *Engine) { e.waterStep = hours }
}

func WithMoveSpeed(speed int) Option {
	return func(e *Engine) {
		if speed > 0 {
			e.moveSpeed = speed
		}
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.tickInterval = d
		}
	}
}

// WithClock replaces time.Now for the run loop.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New builds an engine over an empty inventory. Call Restore to rehydrate
// persisted plants and slots.
func New(catalog *crops.Catalog, l *layout.Layout, store *records.Store, opts ...Option) (*Engine, error) {
	if catalog == nil || l == nil || store == nil {
		return nil, errors.New("schedule: catalog, layout and store are required")
	}
	e := &Engine{
		catalog:      catalog,
		layout:       l,
		tools:        layout.DefaultTools(),
		inv:          inventory.New(),
		store:        store,
		actuator:     logActuator{},
		notifier:     notify.LogNotifier{},
		waterStep:    DefaultWaterStep,
		moveSpeed:    DefaultMoveSpeed,
		tickInterval: DefaultTickInterval,
		now:          time.Now,
		repot:        RepotSchedule{},
	}
	for _, opt := range opts {
		opt(e)
	}

	times, err := BuildWaterTimes(e.waterStep)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	e.waterTimes = times
	return e, nil
}

// RestoreReport summarizes a rehydration.
type RestoreReport struct {
	Slots        records.Report `json:"slots"`
	Plants       records.Report `json:"plants"`
	SlotsDropped []string       `json:"slots_dropped,omitempty"`
	// PlantsSkipped holds ids of well-formed records that no longer fit the
	// catalog or layout.
	PlantsSkipped []uint64 `json:"plants_skipped,omitempty"`
}

// Restore loads persisted slots and plants, reconciles them against the
// layout and rebuilds the repot table. Unreadable or stale records are
// skipped and logged.
func (e *Engine) Restore(ctx context.Context) RestoreReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	var report RestoreReport

	slotRecs, slotReport := e.store.LoadSlots(ctx)
	report.Slots = slotReport
	states := make([]layout.SlotState, 0, len(slotRecs))
	for _, rec := range slotRecs {
		states = append(states, layout.SlotState{ID: rec.ID, Occupied: rec.Occupied})
	}
	report.SlotsDropped = e.layout.Reconcile(states).Dropped

	plantRecs, plantReport := e.store.LoadPlants(ctx)
	report.Plants = plantReport
	for _, rec := range plantRecs {
		if err := e.restorePlant(rec); err != nil {
			log.Warn().Err(err).Uint64("plant", rec.ID).Str("slot", rec.SlotID).Msg("Skipping persisted plant")
			report.PlantsSkipped = append(report.PlantsSkipped, rec.ID)
		}
	}

	e.recompute()
	log.Info().
		Int("plants", e.inv.Len()).
		Int("slots", e.layout.SlotCount()).
		Int("corrupt_plants", len(plantReport.Failed)).
		Int("corrupt_slots", len(slotReport.Failed)).
		Msg("Farm state restored")
	return report
}

func (e *Engine) restorePlant(rec records.PlantRecord) error {
	pt, err := e.catalog.Lookup(rec.Type)
	if err != nil {
		return err
	}
	slot, err := e.layout.Slot(rec.SlotID)
	if err != nil {
		return err
	}
	if _, err := e.inv.Restore(rec.ID, pt, slot, crops.GrowthStage(rec.GrowthStage), rec.DaysInStage); err != nil {
		return err
	}
	// a placed plant implies growing medium
	slot.Occupied = true
	return nil
}

// SaveAll persists every plant and slot.
func (e *Engine) SaveAll(ctx context.Context) (records.Report, records.Report) {
	e.mu.Lock()
	defer e.mu.Unlock()
	plants := e.persistPlants(ctx, e.inv.All()...)
	slots := e.persistSlots(ctx, e.layout.Slots()...)
	return plants, slots
}

func (e *Engine) persistPlants(ctx context.Context, plants ...*inventory.Plant) records.Report {
	recs := make([]records.PlantRecord, 0, len(plants))
	now := time.Now().UTC()
	for _, p := range plants {
		recs = append(recs, records.PlantRecord{
			Version:     records.SchemaVersion,
			ID:          p.ID,
			Type:        p.Type.Name,
			SlotID:      p.Slot.ID,
			GrowthStage: int(p.Stage),
			DaysInStage: p.DaysInStage,
			SavedAt:     now,
		})
	}
	return e.store.SavePlants(ctx, recs)
}

func (e *Engine) persistSlots(ctx context.Context, slots ...*layout.Slot) records.Report {
	recs := make([]records.SlotRecord, 0, len(slots))
	now := time.Now().UTC()
	for _, s := range slots {
		recs = append(recs, records.SlotRecord{
			Version:  records.SchemaVersion,
			ID:       s.ID,
			ZoneID:   s.ZoneID(),
			X:        s.Position.X,
			Y:        s.Position.Y,
			Z:        s.Position.Z,
			Occupied: s.Occupied,
			PlantID:  s.PlantID,
			SavedAt:  now,
		})
	}
	return e.store.SaveSlots(ctx, recs)
}

// recompute replaces the repot table. Callers hold e.mu.
func (e *Engine) recompute() {
	e.repot = ComputeRepotSchedule(e.inv.All())
	for _, p := range e.repot.Overdue() {
		log.Warn().
			Uint64("plant", p.ID).
			Str("type", p.Type.Name).
			Str("stage", p.Stage.String()).
			Int("days_overdue", -p.Remaining()).
			Msg("Plant overstayed its stage")
	}
}

// WaterTimes returns the hours of the day at which zones are watered.
func (e *Engine) WaterTimes() []int {
	out := make([]int, len(e.waterTimes))
	copy(out, e.waterTimes)
	return out
}

// IsWaterTime reports whether zone is due for water at hour.
func (e *Engine) IsWaterTime(zoneID, hour int) (WaterCheck, error) {
	if hour < 0 || hour >= HoursPerDay {
		return WaterCheck{}, fmt.Errorf("hour %d: %w", hour, ErrBadInput)
	}
	zone, err := e.layout.Zone(zoneID)
	if err != nil {
		return WaterCheck{}, err
	}
	return WaterCheck{
		ZoneID:     zone.ID,
		Hour:       hour,
		Due:        containsHour(e.waterTimes, hour),
		WaterPoint: zone.WaterPoint,
	}, nil
}

// Zones returns the layout's zones.
func (e *Engine) Zones() []*layout.Zone {
	return e.layout.Zones()
}

// Tools returns the tool parking positions.
func (e *Engine) Tools() map[string]layout.Point {
	return e.tools.All()
}

// Tool returns one tool position.
func (e *Engine) Tool(name string) (layout.Point, error) {
	return e.tools.Position(name)
}

// CatalogNames lists the known plant types.
func (e *Engine) CatalogNames() []string {
	return e.catalog.Names()
}

// PlantType looks a catalog entry up by name.
func (e *Engine) PlantType(name string) (*crops.PlantType, error) {
	return e.catalog.Lookup(name)
}
