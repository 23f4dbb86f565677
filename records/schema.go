package records

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// SchemaVersion is written into every record. Records from a newer schema
// are treated as corrupt rather than guessed at.
const SchemaVersion = 1

// Kind selects the record directory.
type Kind string

const (
	KindPlant Kind = "plants"
	KindSlot  Kind = "slots"
)

// Record is a durable entity encoding.
type Record interface {
	Key() string
	Validate() error
}

// PlantRecord is the on-disk form of a plant.
type PlantRecord struct {
	Version     int       `json:"version"`
	ID          uint64    `json:"id"`
	Type        string    `json:"type"`
	SlotID      string    `json:"slot_id"`
	GrowthStage int       `json:"growth_stage"`
	DaysInStage int       `json:"days_in_stage"`
	SavedAt     time.Time `json:"saved_at"`
}

func (r PlantRecord) Key() string {
	return strconv.FormatUint(r.ID, 10)
}

func (r PlantRecord) Validate() error {
	if err := checkVersion(r.Version); err != nil {
		return err
	}
	switch {
	case r.ID == 0:
		return errors.New("missing plant id")
	case r.Type == "":
		return errors.New("missing plant type")
	case r.SlotID == "":
		return errors.New("missing slot id")
	case r.GrowthStage < 0 || r.GrowthStage > 2:
		return fmt.Errorf("growth stage %d out of range", r.GrowthStage)
	case r.DaysInStage < 0:
		return fmt.Errorf("days in stage %d is negative", r.DaysInStage)
	}
	return nil
}

// SlotRecord is the on-disk form of a slot. Position and zone are kept for
// diagnosis only; the layout file stays authoritative for both.
type SlotRecord struct {
	Version  int       `json:"version"`
	ID       string    `json:"id"`
	ZoneID   int       `json:"zone_id"`
	X        int       `json:"x"`
	Y        int       `json:"y"`
	Z        int       `json:"z"`
	Occupied bool      `json:"occupied"`
	PlantID  uint64    `json:"plant_id,omitempty"`
	SavedAt  time.Time `json:"saved_at"`
}

func (r SlotRecord) Key() string { return r.ID }

func (r SlotRecord) Validate() error {
	if err := checkVersion(r.Version); err != nil {
		return err
	}
	if r.ID == "" {
		return errors.New("missing slot id")
	}
	return nil
}

func checkVersion(v int) error {
	if v < 1 || v > SchemaVersion {
		return fmt.Errorf("unsupported schema version %d", v)
	}
	return nil
}
