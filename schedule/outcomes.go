package schedule

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"farm_scheduler/notify"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Action names a physical action the actuation layer performed.
type Action string

const (
	ActionWater   Action = "water"
	ActionMove    Action = "move"
	ActionRepot   Action = "repot"
	ActionHarvest Action = "harvest"
)

func (a Action) Valid() bool {
	switch a {
	case ActionWater, ActionMove, ActionRepot, ActionHarvest:
		return true
	}
	return false
}

// Outcome is a report from the actuation layer. Subject is the plant id
// for repot and harvest, the zone id for water.
type Outcome struct {
	Action  Action `json:"action"`
	Subject string `json:"subject"`
	Success bool   `json:"success"`
	Detail  string `json:"detail,omitempty"`
}

// ActionOutcome is the audit row of one reported outcome.
type ActionOutcome struct {
	gorm.Model
	Action  string `gorm:"index"`
	Subject string `gorm:"index"`
	Success bool
	Detail  string
}

// OutcomeLog stores reported outcomes.
type OutcomeLog struct {
	db *gorm.DB
}

func NewOutcomeLog(db *gorm.DB) *OutcomeLog {
	return &OutcomeLog{db: db}
}

func (l *OutcomeLog) Append(ctx context.Context, o Outcome) error {
	row := &ActionOutcome{
		Action:  string(o.Action),
		Subject: o.Subject,
		Success: o.Success,
		Detail:  o.Detail,
	}
	return gorm.G[ActionOutcome](l.db).Create(ctx, row)
}

// Recent returns up to limit outcomes, newest first.
func (l *OutcomeLog) Recent(ctx context.Context, limit int) ([]ActionOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	return gorm.G[ActionOutcome](l.db).Order("id desc").Limit(limit).Find(ctx)
}

// RecordOutcome folds a reported outcome into the farm state. A successful
// repot promotes the plant, a successful harvest removes it and a failure
// raises an error notification. The folded result is echoed back to the
// actuator.
func (e *Engine) RecordOutcome(ctx context.Context, o Outcome) error {
	if !o.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrBadInput, o.Action)
	}
	if e.outcomes != nil {
		if err := e.outcomes.Append(ctx, o); err != nil {
			log.Error().Err(err).Str("action", string(o.Action)).Msg("Failed to store outcome")
		}
	}

	var err error
	switch {
	case !o.Success:
		log.Warn().Str("action", string(o.Action)).Str("subject", o.Subject).Str("detail", o.Detail).Msg("Action failed")
		e.notify(ctx, notify.KindError, map[string]any{
			"action":  string(o.Action),
			"subject": o.Subject,
			"detail":  o.Detail,
		})
	case o.Action == ActionRepot:
		var id uint64
		if id, err = parsePlantID(o.Subject); err == nil {
			_, err = e.Promote(ctx, id)
		}
	case o.Action == ActionHarvest:
		var id uint64
		if id, err = parsePlantID(o.Subject); err == nil {
			_, err = e.Remove(ctx, id)
		}
	}

	if rerr := e.actuator.ReportOutcome(ctx, string(o.Action), o.Success && err == nil); rerr != nil {
		log.Error().Err(rerr).Str("action", string(o.Action)).Msg("Failed to echo outcome")
	}
	return err
}

func parsePlantID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.Join(ErrBadInput, fmt.Errorf("invalid plant id %q", s))
	}
	return id, nil
}
