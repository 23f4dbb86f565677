// Package layout builds the farm's spatial model (zones and slots) from the
// static layout description and keeps it as the ground truth for slot
// identity and position.
package layout

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"farm_scheduler/descriptor"
	"farm_scheduler/farmerr"

	"github.com/rs/zerolog/log"
)

// Layout is the parsed set of zones and slots.
type Layout struct {
	zones map[int]*Zone
	slots map[string]*Slot
}

func newLayout() *Layout {
	return &Layout{
		zones: make(map[int]*Zone),
		slots: make(map[string]*Slot),
	}
}

// Load reads and parses the layout description at path. An unreadable or
// unparsable document is a LayoutLoadError; bad zone, bed or pot records are
// logged and skipped.
func Load(path string) (*Layout, error) {
	doc, err := descriptor.Read(path)
	if err != nil {
		return nil, &farmerr.LayoutLoadError{Path: path, Err: err}
	}
	log.Info().Str("path", path).Msg("Accessed pot layout")

	l, err := Parse(doc)
	if err != nil {
		return nil, &farmerr.LayoutLoadError{Path: path, Err: err}
	}
	log.Info().Int("zones", len(l.zones)).Int("slots", len(l.slots)).Msg("Loaded pot layout")
	return l, nil
}

// Parse builds a Layout from a description document.
func Parse(doc *descriptor.Document) (*Layout, error) {
	l := newLayout()
	for i, rec := range doc.Records {
		zone, err := parseZone(rec)
		if err != nil {
			log.Warn().Err(err).Str("path", doc.Path).Int("record", i).Msg("Skipping zone record")
			continue
		}
		if _, exists := l.zones[zone.ID]; exists {
			log.Warn().Str("path", doc.Path).Int("zone", zone.ID).Msg("Skipping duplicate zone")
			continue
		}
		l.zones[zone.ID] = zone

		if zone.Dense() {
			l.addBeds(zone, rec.Children)
		} else {
			l.addPots(zone, rec.Children)
		}
	}

	if len(l.zones) == 0 {
		return nil, errors.New("no valid zones")
	}
	return l, nil
}

func (l *Layout) addBeds(zone *Zone, records []descriptor.Record) {
	for i, rec := range records {
		bed, err := parseBed(rec)
		if err != nil {
			log.Warn().Err(err).Int("zone", zone.ID).Int("bed", i).Msg("Skipping bed record")
			continue
		}
		for _, slot := range GenerateGrid(zone, bed) {
			l.addSlot(slot)
		}
	}
}

func (l *Layout) addPots(zone *Zone, records []descriptor.Record) {
	for i, rec := range records {
		slot, err := parsePot(zone, rec)
		if err != nil {
			log.Warn().Err(err).Int("zone", zone.ID).Int("pot", i).Msg("Skipping pot record")
			continue
		}
		l.addSlot(slot)
	}
}

func (l *Layout) addSlot(slot *Slot) {
	if _, exists := l.slots[slot.ID]; exists {
		log.Warn().Str("slot", slot.ID).Int("zone", slot.ZoneID()).Msg("Skipping duplicate slot")
		return
	}
	l.slots[slot.ID] = slot
	slot.Zone.slots = append(slot.Zone.slots, slot)
}

// GenerateGrid lays slots on a regular grid inside bed: i runs from
// X1+Border while i < X2-Border, j from Y1+Border while j < Y2-Border, both
// stepping by Dist.
func GenerateGrid(zone *Zone, bed Bed) []*Slot {
	if bed.Dist <= 0 {
		return nil
	}
	var slots []*Slot
	for i := bed.Bounds.X1 + bed.Border; i < bed.Bounds.X2-bed.Border; i += bed.Dist {
		for j := bed.Bounds.Y1 + bed.Border; j < bed.Bounds.Y2-bed.Border; j += bed.Dist {
			slots = append(slots, &Slot{
				ID:       GridSlotID(zone.ID, i, j),
				Zone:     zone,
				Position: Point{X: i, Y: j, Z: bed.Z},
			})
		}
	}
	return slots
}

// Zone returns the zone with the given id.
func (l *Layout) Zone(id int) (*Zone, error) {
	z, ok := l.zones[id]
	if !ok {
		return nil, farmerr.NotFound("zone", strconv.Itoa(id))
	}
	return z, nil
}

// Slot returns the slot with the given id.
func (l *Layout) Slot(id string) (*Slot, error) {
	s, ok := l.slots[id]
	if !ok {
		return nil, farmerr.NotFound("slot", id)
	}
	return s, nil
}

// Zones returns all zones ordered by id.
func (l *Layout) Zones() []*Zone {
	zones := make([]*Zone, 0, len(l.zones))
	for _, z := range l.zones {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].ID < zones[j].ID })
	return zones
}

// Slots returns all slots ordered by id.
func (l *Layout) Slots() []*Slot {
	slots := make([]*Slot, 0, len(l.slots))
	for _, s := range l.slots {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
	return slots
}

// SlotCount returns the number of slots in the layout.
func (l *Layout) SlotCount() int { return len(l.slots) }

// SlotState is the durable part of a slot that survives restarts.
type SlotState struct {
	ID       string
	Occupied bool
}

// ReconcileReport summarizes a Reconcile call.
type ReconcileReport struct {
	Applied int
	Dropped []string
}

// Reconcile applies persisted slot state to the parsed layout. The physical
// layout is authoritative: states for slots it does not contain are dropped.
// Plant references are not restored here; the inventory rebinds them.
func (l *Layout) Reconcile(states []SlotState) ReconcileReport {
	var report ReconcileReport
	for _, st := range states {
		slot, ok := l.slots[st.ID]
		if !ok {
			log.Warn().Str("slot", st.ID).Msg("Dropping persisted slot absent from layout")
			report.Dropped = append(report.Dropped, st.ID)
			continue
		}
		slot.Occupied = st.Occupied
		report.Applied++
	}
	return report
}

func parseZone(rec descriptor.Record) (*Zone, error) {
	var (
		z   Zone
		err error
	)
	fields := []struct {
		key string
		dst *int
	}{
		{"id", &z.ID},
		{"gs", &z.GrowthStageClass},
		{"x1", &z.Bounds.X1},
		{"y1", &z.Bounds.Y1},
		{"x2", &z.Bounds.X2},
		{"y2", &z.Bounds.Y2},
		{"xw", &z.WaterPoint.X},
		{"yw", &z.WaterPoint.Y},
		{"zw", &z.WaterPoint.Z},
	}
	for _, f := range fields {
		if *f.dst, err = rec.Int(f.key); err != nil {
			return nil, fmt.Errorf("zone: %w", err)
		}
	}
	if z.Bounds.X2 < z.Bounds.X1 || z.Bounds.Y2 < z.Bounds.Y1 {
		return nil, fmt.Errorf("zone %d: inverted bounds", z.ID)
	}
	return &z, nil
}

func parseBed(rec descriptor.Record) (Bed, error) {
	var (
		b   Bed
		err error
	)
	fields := []struct {
		key string
		dst *int
	}{
		{"x1", &b.Bounds.X1},
		{"y1", &b.Bounds.Y1},
		{"x2", &b.Bounds.X2},
		{"y2", &b.Bounds.Y2},
		{"z", &b.Z},
		{"border", &b.Border},
		{"dist", &b.Dist},
	}
	for _, f := range fields {
		if *f.dst, err = rec.Int(f.key); err != nil {
			return Bed{}, fmt.Errorf("bed: %w", err)
		}
	}
	if b.Dist <= 0 {
		return Bed{}, fmt.Errorf("bed: dist %d must be positive", b.Dist)
	}
	if b.Border < 0 {
		return Bed{}, fmt.Errorf("bed: border %d is negative", b.Border)
	}
	return b, nil
}

func parsePot(zone *Zone, rec descriptor.Record) (*Slot, error) {
	id, err := rec.String("id")
	if err != nil {
		return nil, fmt.Errorf("pot: %w", err)
	}
	s := &Slot{ID: id, Zone: zone}
	if s.Position.X, err = rec.Int("x"); err != nil {
		return nil, fmt.Errorf("pot %q: %w", id, err)
	}
	if s.Position.Y, err = rec.Int("y"); err != nil {
		return nil, fmt.Errorf("pot %q: %w", id, err)
	}
	if s.Position.Z, err = rec.Int("z"); err != nil {
		return nil, fmt.Errorf("pot %q: %w", id, err)
	}
	return s, nil
}
