package fleet

import (
	"farm_scheduler/layout"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RegisteredDevice struct {
	gorm.Model
	UUID         uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	Name         string
	SerialNumber string
	Status       DeviceStatus
	WorkerType   WorkerType
	DeviceType   DeviceType
	Zone         string
}

func (d *RegisteredDevice) BeforeCreate(tx *gorm.DB) error {
	if d.UUID == uuid.Nil { // Only generate if not already set
		d.UUID = uuid.New()
	}
	return nil
}

// IrrigationDevice holds sprinkler specifics. Rows go away with their
// RegisteredDevice on a hard delete.
type IrrigationDevice struct {
	gorm.Model
	RegisteredDeviceID uint
	Device             RegisteredDevice `gorm:"foreignKey:RegisteredDeviceID;constraint:OnDelete:CASCADE"`
	GallonsPerMinute   float32
}

// MotionDevice holds gantry specifics.
type MotionDevice struct {
	gorm.Model
	RegisteredDeviceID uint
	Device             RegisteredDevice `gorm:"foreignKey:RegisteredDeviceID;constraint:OnDelete:CASCADE"`
	HomeX              int
	HomeY              int
	HomeZ              int
}

func (m *MotionDevice) Home() layout.Point {
	return layout.Point{X: m.HomeX, Y: m.HomeY, Z: m.HomeZ}
}

// Models lists the tables the fleet needs migrated.
func Models() []any {
	return []any{&RegisteredDevice{}, &IrrigationDevice{}, &MotionDevice{}}
}
