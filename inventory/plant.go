package inventory

import (
	"strconv"

	"farm_scheduler/crops"
	"farm_scheduler/farmerr"
	"farm_scheduler/layout"
)

// Plant is a living plant placed in a slot.
type Plant struct {
	ID          uint64
	Type        *crops.PlantType
	Slot        *layout.Slot
	Stage       crops.GrowthStage
	DaysInStage int
}

// Key is the plant id as used for durable record keys.
func (p *Plant) Key() string {
	return strconv.FormatUint(p.ID, 10)
}

// Remaining is the number of days until the plant is due for its next
// placement. It is negative when the plant overstayed its stage.
func (p *Plant) Remaining() int {
	return p.Type.Duration(p.Stage) - p.DaysInStage
}

// Ready reports whether the plant has spent its full stage duration.
func (p *Plant) Ready() bool {
	return p.Remaining() <= 0
}

// AdvanceDay records one elapsed calendar day.
func (p *Plant) AdvanceDay() {
	p.DaysInStage++
}

// Promote moves the plant to its next growth stage. At Full it returns a
// NoOpError and leaves the plant untouched.
func (p *Plant) Promote() error {
	if p.Stage.Terminal() {
		return &farmerr.NoOpError{Op: "promote plant " + p.Key(), Reason: "already at stage Full"}
	}
	p.Stage++
	p.DaysInStage = 0
	return nil
}
