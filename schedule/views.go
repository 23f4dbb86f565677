package schedule

import (
	"farm_scheduler/inventory"
	"farm_scheduler/layout"
)

// PlantView is a snapshot of a plant safe to hand out of the engine lock.
type PlantView struct {
	ID          uint64       `json:"id"`
	Type        string       `json:"type"`
	SlotID      string       `json:"slot_id"`
	ZoneID      int          `json:"zone_id"`
	Position    layout.Point `json:"position"`
	Stage       string       `json:"stage"`
	StageIndex  int          `json:"stage_index"`
	DaysInStage int          `json:"days_in_stage"`
	Remaining   int          `json:"remaining"`
}

func viewPlant(p *inventory.Plant) PlantView {
	v := PlantView{
		ID:          p.ID,
		Type:        p.Type.Name,
		Stage:       p.Stage.String(),
		StageIndex:  int(p.Stage),
		DaysInStage: p.DaysInStage,
		Remaining:   p.Remaining(),
	}
	if p.Slot != nil {
		v.SlotID = p.Slot.ID
		v.ZoneID = p.Slot.ZoneID()
		v.Position = p.Slot.Position
	}
	return v
}

func viewPlants(plants []*inventory.Plant) []PlantView {
	out := make([]PlantView, 0, len(plants))
	for _, p := range plants {
		out = append(out, viewPlant(p))
	}
	return out
}

// SlotView is a snapshot of a slot.
type SlotView struct {
	ID       string       `json:"id"`
	ZoneID   int          `json:"zone_id"`
	Position layout.Point `json:"position"`
	Occupied bool         `json:"occupied"`
	PlantID  uint64       `json:"plant_id,omitempty"`
}

func viewSlot(s *layout.Slot) SlotView {
	return SlotView{
		ID:       s.ID,
		ZoneID:   s.ZoneID(),
		Position: s.Position,
		Occupied: s.Occupied,
		PlantID:  s.PlantID,
	}
}

// WaterCheck answers whether a zone is due for water at an hour.
type WaterCheck struct {
	ZoneID     int          `json:"zone_id"`
	Hour       int          `json:"hour"`
	Due        bool         `json:"due"`
	WaterPoint layout.Point `json:"water_point"`
}

// Bucket is one entry of the repot table.
type Bucket struct {
	Remaining int         `json:"remaining"`
	Plants    []PlantView `json:"plants"`
}

// TickResult summarizes the work one tick requested.
type TickResult struct {
	NewHour       bool     `json:"new_hour"`
	NewDay        bool     `json:"new_day"`
	DaysAdvanced  int      `json:"days_advanced"`
	ZonesWatered  []int    `json:"zones_watered,omitempty"`
	MovesIssued   []uint64 `json:"moves_issued,omitempty"`
	SlotsNeedPeat []string `json:"slots_need_peat,omitempty"`
}
