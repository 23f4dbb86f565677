package schedule

import (
	"context"

	"farm_scheduler/inventory"
	"farm_scheduler/layout"

	"github.com/rs/zerolog/log"
)

// Actuator is the physical execution layer the engine feeds requests to.
type Actuator interface {
	ActivateZoneWater(ctx context.Context, zone *layout.Zone) error
	MoveTo(ctx context.Context, target layout.Point, speed int) error
	ReportOutcome(ctx context.Context, action string, success bool) error
}

// DeathPredicate reports whether a plant is dead. It is supplied by a
// health or sensing collaborator; the engine never decides death itself.
type DeathPredicate func(p *inventory.Plant) bool

// logActuator only logs requests. It stands in when no fleet is attached.
type logActuator struct{}

func (logActuator) ActivateZoneWater(_ context.Context, zone *layout.Zone) error {
	log.Info().Int("zone", zone.ID).Interface("water_point", zone.WaterPoint).Msg("Water requested")
	return nil
}

func (logActuator) MoveTo(_ context.Context, target layout.Point, speed int) error {
	log.Info().Interface("target", target).Int("speed", speed).Msg("Move requested")
	return nil
}

func (logActuator) ReportOutcome(_ context.Context, action string, success bool) error {
	log.Info().Str("action", action).Bool("success", success).Msg("Outcome folded")
	return nil
}
