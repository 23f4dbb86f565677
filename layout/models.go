package layout

import "fmt"

// DenseClass is the growth stage class whose zones generate their slots from beds.
const DenseClass = 0

// Point is a position in farm coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Rect is an axis-aligned extent (X1,Y1)-(X2,Y2).
type Rect struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Zone is a region of the farm sharing one water access point.
type Zone struct {
	ID               int   `json:"id"`
	GrowthStageClass int   `json:"growth_stage_class"`
	Bounds           Rect  `json:"bounds"`
	WaterPoint       Point `json:"water_point"`

	slots []*Slot
}

// Dense reports whether the zone's slots are generated on a grid.
func (z *Zone) Dense() bool {
	return z.GrowthStageClass == DenseClass
}

// Slots returns the zone's slots in layout order.
func (z *Zone) Slots() []*Slot {
	out := make([]*Slot, len(z.slots))
	copy(out, z.slots)
	return out
}

// Bed is a rectangular growing bed inside a dense zone.
type Bed struct {
	Bounds Rect
	Z      int
	Border int
	Dist   int
}

// Slot is a single plantable location (a "pot").
type Slot struct {
	ID       string
	Zone     *Zone
	Position Point
	// Occupied means the slot holds growing medium and may be planted.
	Occupied bool
	// PlantID is the id of the plant placed here, 0 when empty.
	PlantID uint64
}

// Free reports whether no plant is placed in the slot.
func (s *Slot) Free() bool {
	return s.PlantID == 0
}

// ZoneID returns the owning zone id, or -1 for a detached slot.
func (s *Slot) ZoneID() int {
	if s.Zone == nil {
		return -1
	}
	return s.Zone.ID
}

// GridSlotID is the identifier of a generated slot.
func GridSlotID(zoneID, i, j int) string {
	return fmt.Sprintf("%d,%d,%d", zoneID, i, j)
}
