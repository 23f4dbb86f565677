package fleet

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Irrigator interface {
	StartWater(ctx context.Context, d time.Duration) error
	StopWater()
}

// Sprinkler waters one zone. A start task with a duration waters for that
// long and then completes; without one it waters until a stop task.
type Sprinkler struct {
	device
	Zone            string
	IsActive        bool
	PressureReading float32
	cancelWatering  context.CancelFunc
	mu              sync.Mutex
}

func NewSprinkler(broker Broker, zone string) *Sprinkler {
	s := &Sprinkler{Zone: zone}
	s.init(broker, IrrigationTopic(zone), s)
	return s
}

func (s *Sprinkler) HandleTask(task Task) {
	log.Debug().Stringer("task", task.ID).Str("instruction", task.Instruction).Str("zone", s.Zone).
		Msg("Sprinkler received task")
	switch task.Instruction {
	case InstructionStart:
		s.handleStartTask(task)
	case InstructionStop:
		s.StopWater()
		s.ack(NewTaskAck(task.ID, Complete, s.ID))
	default:
		log.Warn().Str("instruction", task.Instruction).Msg("Unknown sprinkler instruction")
		s.ack(NewErrTaskAck(task.ID, s.ID, "unknown instruction type"))
	}
}

func (s *Sprinkler) handleStartTask(task Task) {
	s.ack(NewTaskAck(task.ID, Running, s.ID))

	ctx, cancel := context.WithCancel(s.ctx)
	s.mu.Lock()
	if s.cancelWatering != nil {
		s.cancelWatering()
	}
	s.cancelWatering = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		err := s.StartWater(ctx, task.Duration)
		switch {
		case err == nil:
			s.ack(NewTaskAck(task.ID, Complete, s.ID))
		case errors.Is(err, context.Canceled) && s.ctx.Err() == nil:
			// stopped on request
			s.ack(NewTaskAck(task.ID, Complete, s.ID))
		case s.ctx.Err() != nil:
			// device shutdown, no ACK
		default:
			s.ack(NewErrTaskAck(task.ID, s.ID, err.Error()))
		}
	}()
}

// StartWater opens the valve until d elapses, or until ctx ends when d is
// zero.
func (s *Sprinkler) StartWater(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.IsActive = true
	s.mu.Unlock()
	log.Info().Str("zone", s.Zone).Dur("duration", d).Msg("Starting water")

	defer func() {
		s.mu.Lock()
		s.IsActive = false
		s.mu.Unlock()
	}()

	var done <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		done = timer.C
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		log.Info().Str("zone", s.Zone).Msg("Watering finished")
		return nil
	}
}

func (s *Sprinkler) StopWater() {
	log.Info().Str("zone", s.Zone).Msg("Stopping water")
	s.mu.Lock()
	if s.cancelWatering != nil {
		s.cancelWatering()
		s.cancelWatering = nil
	}
	s.mu.Unlock()
}

func (s *Sprinkler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.IsActive
}
