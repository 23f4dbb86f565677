package crops

import "fmt"

// GrowthStage is the position of a plant in its three-stage life cycle.
type GrowthStage int

const (
	Seed GrowthStage = iota
	PreGrowth
	Full
)

// StageCount is the number of growth stages a cultivar defines durations for.
const StageCount = 3

func (s GrowthStage) String() string {
	switch s {
	case Seed:
		return "Seed"
	case PreGrowth:
		return "PreGrowth"
	case Full:
		return "Full"
	}
	return fmt.Sprintf("GrowthStage(%d)", int(s))
}

// Valid reports whether s is one of the three known stages.
func (s GrowthStage) Valid() bool {
	return s >= Seed && s <= Full
}

// Terminal reports whether no stage exists beyond s.
func (s GrowthStage) Terminal() bool {
	return s == Full
}

// Offset is a 3D displacement relative to a slot.
type Offset struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// PlantType is an immutable catalog entry describing one cultivar.
type PlantType struct {
	Name         string          `json:"name"`
	RequiresHole bool            `json:"requires_hole"`
	StageDays    [StageCount]int `json:"stage_days"`
	SeedOffset   Offset          `json:"seed_offset"`
}

// Duration returns the number of days a plant of this type spends in stage.
func (pt *PlantType) Duration(stage GrowthStage) int {
	if !stage.Valid() {
		return 0
	}
	return pt.StageDays[stage]
}
