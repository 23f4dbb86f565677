// Package fleet runs the devices that carry out schedule requests and the
// broker that routes tasks and acknowledgements between them
package fleet

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type Worker interface {
	TaskHandler
	GetID() uuid.UUID
	Topic() string
	Start(ctx context.Context)
	Shutdown()
}

type WorkerType string

const (
	WorkerTypeIrrigation WorkerType = "Irrigation"
	WorkerTypeMotion     WorkerType = "Motion"
)

type DeviceType string

const (
	DeviceTypeSprinkler DeviceType = "Sprinkler"
	DeviceTypeGantry    DeviceType = "Gantry"
)

// WorkerType returns the worker class a device type belongs to.
func (t DeviceType) WorkerType() WorkerType {
	if t == DeviceTypeGantry {
		return WorkerTypeMotion
	}
	return WorkerTypeIrrigation
}

type DeviceStatus string

const (
	DeviceStatusUnknown   DeviceStatus = "Unknown"
	DeviceStatusAvailable DeviceStatus = "Available"
	DeviceStatusBusy      DeviceStatus = "Busy"
)

type device struct {
	ID      uuid.UUID
	broker  Broker // Interface for testability and flexibility
	inbox   chan Task
	topic   string             // Subscription topic for cleanup
	ctx     context.Context    // Device lifecycle context
	cancel  context.CancelFunc // Cancel function for shutdown
	wg      sync.WaitGroup
	handler TaskHandler // device-specific task handler
	once    sync.Once
}

func (d *device) init(broker Broker, topic string, handler TaskHandler) {
	d.ID = uuid.New()
	d.broker = broker
	d.inbox = broker.Subscribe(topic)
	d.topic = topic
	d.handler = handler
}

func (d *device) GetID() uuid.UUID {
	return d.ID
}

func (d *device) Topic() string {
	return d.topic
}

func (d *device) Start(ctx context.Context) {
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.listen(d.ctx)
}

func (d *device) Shutdown() {
	d.once.Do(func() {
		if d.cancel != nil {
			d.cancel()
		}
		d.broker.Unsubscribe(d.topic, d.inbox)
		d.wg.Wait()
	})
}

func (d *device) ack(a TaskAck) {
	select {
	case d.broker.GetACKChannel() <- a:
	case <-d.ctx.Done():
	}
}

func (d *device) listen(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case task := <-d.inbox:
			if d.handler != nil {
				d.handler.HandleTask(task)
			}
		case <-ctx.Done():
			return
		}
	}
}
