package fleet

import (
	"errors"
	"math"
	"sync"
	"time"

	"farm_scheduler/layout"

	"github.com/rs/zerolog/log"
)

// maxTravel caps one simulated move.
const maxTravel = 30 * time.Second

// Gantry is the simulated tool carriage. Speed is in layout units per
// second.
type Gantry struct {
	device
	position layout.Point
	mu       sync.Mutex
}

func NewGantry(broker Broker, home layout.Point) *Gantry {
	g := &Gantry{position: home}
	g.init(broker, TopicGantry, g)
	return g
}

func (g *Gantry) HandleTask(task Task) {
	if task.Instruction != InstructionMove {
		log.Warn().Str("instruction", task.Instruction).Msg("Unknown gantry instruction")
		g.ack(NewErrTaskAck(task.ID, g.ID, "unknown instruction type"))
		return
	}
	g.ack(NewTaskAck(task.ID, Running, g.ID))

	if err := g.move(task.Target, task.Speed); err != nil {
		if g.ctx.Err() != nil {
			return
		}
		g.ack(NewErrTaskAck(task.ID, g.ID, err.Error()))
		return
	}
	g.ack(NewTaskAck(task.ID, Complete, g.ID))
}

func (g *Gantry) move(target layout.Point, speed int) error {
	if speed <= 0 {
		return errors.New("speed must be positive")
	}
	g.mu.Lock()
	from := g.position
	g.mu.Unlock()

	travel := travelTime(from, target, speed)
	log.Info().Interface("from", from).Interface("to", target).Dur("travel", travel).Msg("Gantry moving")

	timer := time.NewTimer(travel)
	defer timer.Stop()
	select {
	case <-g.ctx.Done():
		return g.ctx.Err()
	case <-timer.C:
	}

	g.mu.Lock()
	g.position = target
	g.mu.Unlock()
	return nil
}

// Position is where the gantry currently parks.
func (g *Gantry) Position() layout.Point {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.position
}

func travelTime(from, to layout.Point, speed int) time.Duration {
	dx := float64(to.X - from.X)
	dy := float64(to.Y - from.Y)
	dz := float64(to.Z - from.Z)
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
	d := time.Duration(dist / float64(speed) * float64(time.Second))
	return min(d, maxTravel)
}
