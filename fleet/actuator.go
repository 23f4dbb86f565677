package fleet

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"farm_scheduler/layout"
	"farm_scheduler/schedule"

	"github.com/rs/zerolog/log"
)

const DefaultWaterDuration = 5 * time.Minute

// OutcomeSink receives the outcome of every settled fleet task.
type OutcomeSink func(ctx context.Context, o schedule.Outcome) error

// BrokerActuator turns engine requests into broker tasks.
type BrokerActuator struct {
	broker        Broker
	waterDuration time.Duration
}

type ActuatorOption func(*BrokerActuator)

func WithWaterDuration(d time.Duration) ActuatorOption {
	return func(a *BrokerActuator) {
		if d > 0 {
			a.waterDuration = d
		}
	}
}

func NewBrokerActuator(broker Broker, opts ...ActuatorOption) *BrokerActuator {
	a := &BrokerActuator{
		broker:        broker,
		waterDuration: DefaultWaterDuration,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *BrokerActuator) ActivateZoneWater(ctx context.Context, zone *layout.Zone) error {
	name := strconv.Itoa(zone.ID)
	task := NewTask(IrrigationTopic(name), InstructionStart)
	task.Zone = name
	task.Target = zone.WaterPoint
	task.Duration = a.waterDuration
	return a.publish(ctx, task)
}

func (a *BrokerActuator) MoveTo(ctx context.Context, target layout.Point, speed int) error {
	task := NewTask(TopicGantry, InstructionMove)
	task.Target = target
	task.Speed = speed
	return a.publish(ctx, task)
}

// ReportOutcome echoes an outcome to whoever listens on TopicOutcomes.
// Nobody listening is not an error.
func (a *BrokerActuator) ReportOutcome(ctx context.Context, action string, success bool) error {
	if !a.broker.HasSubscribers(TopicOutcomes) {
		log.Debug().Str("action", action).Bool("success", success).Msg("No outcome listeners")
		return nil
	}
	task := NewTask(TopicOutcomes, InstructionOutcome)
	task.Action = action
	task.Success = success
	return a.broker.Publish(ctx, task)
}

func (a *BrokerActuator) publish(ctx context.Context, task Task) error {
	if !a.broker.HasSubscribers(task.Topic) {
		return fmt.Errorf("no device serves topic %s", task.Topic)
	}
	if err := a.broker.Publish(ctx, task); err != nil {
		return fmt.Errorf("publish %s to %s: %w", task.Instruction, task.Topic, err)
	}
	return nil
}

// Bind forwards the outcome of every settled water or move task to sink.
func (a *BrokerActuator) Bind(ctx context.Context, sink OutcomeSink) {
	a.broker.OnSettled(func(state TaskState) {
		o, ok := outcomeOf(state)
		if !ok {
			return
		}
		if err := sink(ctx, o); err != nil {
			log.Warn().Err(err).Stringer("task", state.Task.ID).Msg("Outcome not recorded")
		}
	})
}

func outcomeOf(state TaskState) (schedule.Outcome, bool) {
	o := schedule.Outcome{
		Success: state.Status == Complete,
		Detail:  state.LastError,
	}
	switch state.Task.Instruction {
	case InstructionStart:
		o.Action = schedule.ActionWater
		o.Subject = state.Task.Zone
	case InstructionMove:
		o.Action = schedule.ActionMove
		p := state.Task.Target
		o.Subject = fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z)
	default:
		return schedule.Outcome{}, false
	}
	return o, true
}
