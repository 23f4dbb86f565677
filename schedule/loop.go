package schedule

import (
	"context"
	"time"

	"farm_scheduler/layout"
	"farm_scheduler/notify"

	"github.com/rs/zerolog/log"
)

const shutdownSaveTimeout = 10 * time.Second

type moveRequest struct {
	plantID uint64
	target  layout.Point
}

// Tick performs the work due at now: watering when a new checkpoint hour
// begins, and the daily bookkeeping when a new calendar day begins. The
// first tick only establishes the clock and may water; days are counted
// from it.
func (e *Engine) Tick(ctx context.Context, now time.Time) TickResult {
	e.mu.Lock()
	var res TickResult
	first := e.lastTick.IsZero()
	res.NewHour = first || !sameHour(e.lastTick, now)
	if !first && now.After(e.lastTick) {
		res.DaysAdvanced = calendarDaysBetween(e.lastTick, now)
	}
	res.NewDay = res.DaysAdvanced > 0
	e.lastTick = now

	var moves []moveRequest
	if res.NewDay {
		e.advanceAll(ctx, res.DaysAdvanced)
		for _, p := range e.repot.Due() {
			moves = append(moves, moveRequest{plantID: p.ID, target: p.Slot.Position})
		}
		res.SlotsNeedPeat = e.slotsNeedingPeat()
	}
	water := res.NewHour && containsHour(e.waterTimes, now.Hour())
	speed := e.moveSpeed
	e.mu.Unlock()

	// actuation runs outside the lock; outcome reports re-enter the engine
	if water {
		for _, zone := range e.layout.Zones() {
			if err := e.actuator.ActivateZoneWater(ctx, zone); err != nil {
				log.Error().Err(err).Int("zone", zone.ID).Msg("Water request failed")
				e.notifyError(ctx, "water", err)
				continue
			}
			res.ZonesWatered = append(res.ZonesWatered, zone.ID)
		}
	}

	if len(moves) > 0 {
		ids := make([]uint64, 0, len(moves))
		for _, m := range moves {
			ids = append(ids, m.plantID)
		}
		e.notify(ctx, notify.KindPlantsReady, map[string]any{"plants": ids})
		for _, m := range moves {
			if err := e.actuator.MoveTo(ctx, m.target, speed); err != nil {
				log.Error().Err(err).Uint64("plant", m.plantID).Msg("Move request failed")
				e.notifyError(ctx, "move", err)
				continue
			}
			res.MovesIssued = append(res.MovesIssued, m.plantID)
		}
	}

	if len(res.SlotsNeedPeat) > 0 {
		e.notify(ctx, notify.KindPotsNeedPeat, map[string]any{"slots": res.SlotsNeedPeat})
	}
	return res
}

// Run ticks until ctx is cancelled, then saves the whole farm state.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", e.tickInterval).Ints("water_hours", e.waterTimes).Msg("Scheduler started")
	e.Tick(ctx, e.now())
	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), shutdownSaveTimeout)
			plants, slots := e.SaveAll(saveCtx)
			cancel()
			log.Info().
				Int("plants_saved", plants.Succeeded).
				Int("slots_saved", slots.Succeeded).
				Msg("Scheduler stopped")
			return nil
		case <-ticker.C:
			e.Tick(ctx, e.now())
		}
	}
}

func (e *Engine) notify(ctx context.Context, kind notify.Kind, payload map[string]any) {
	if err := e.notifier.Notify(ctx, notify.NewEvent(kind, payload)); err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("Notification failed")
	}
}

func (e *Engine) notifyError(ctx context.Context, action string, err error) {
	e.notify(ctx, notify.KindError, map[string]any{"action": action, "error": err.Error()})
}

func sameHour(a, b time.Time) bool {
	b = b.In(a.Location())
	return calendarDaysBetween(a, b) == 0 && a.Hour() == b.Hour()
}

func calendarDaysBetween(from, to time.Time) int {
	to = to.In(from.Location())
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
