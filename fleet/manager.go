package fleet

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

type DeviceManager struct {
	devices map[string]Worker
	cancels map[string]context.CancelFunc
	mu      sync.RWMutex
	appCtx  context.Context
	broker  Broker
}

func NewDeviceManager(appCtx context.Context, broker Broker) *DeviceManager {
	return &DeviceManager{
		devices: make(map[string]Worker),
		cancels: make(map[string]context.CancelFunc),
		appCtx:  appCtx,
		broker:  broker,
	}
}

// Register starts worker under the manager's application context.
func (m *DeviceManager) Register(worker Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := worker.GetID().String()
	if _, exists := m.devices[key]; exists {
		return fmt.Errorf("device for key %s already exists", key)
	}
	ctx, cancel := context.WithCancel(m.appCtx)

	worker.Start(ctx)

	m.devices[key] = worker
	m.cancels[key] = cancel
	log.Info().Str("device", key).Str("topic", worker.Topic()).Msg("Device registered")
	return nil
}

func (m *DeviceManager) Unregister(worker Worker) error {
	return m.UnregisterByWorkerId(worker.GetID().String())
}

func (m *DeviceManager) UnregisterByWorkerId(uid string) error {
	m.mu.Lock()
	w, found := m.devices[uid]
	cancel := m.cancels[uid]
	delete(m.devices, uid)
	delete(m.cancels, uid)
	m.mu.Unlock()

	if !found {
		return fmt.Errorf("worker with id %s not found", uid)
	}
	if cancel != nil {
		cancel()
	}
	w.Shutdown()
	log.Info().Str("device", uid).Msg("Device unregistered")
	return nil
}

// Get returns the running worker with id uid.
func (m *DeviceManager) Get(uid string) (Worker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.devices[uid]
	return w, ok
}

// Serving reports whether some running worker listens on topic.
func (m *DeviceManager) Serving(topic string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.devices {
		if w.Topic() == topic {
			return true
		}
	}
	return false
}

// Topics lists the topics of the running workers.
func (m *DeviceManager) Topics() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, w := range m.devices {
		if !seen[w.Topic()] {
			seen[w.Topic()] = true
			out = append(out, w.Topic())
		}
	}
	sort.Strings(out)
	return out
}

func (m *DeviceManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.devices)
}

// ShutdownAll stops every worker. Workers must stop before the broker does.
func (m *DeviceManager) ShutdownAll() {
	m.mu.Lock()
	workers := m.devices
	cancels := m.cancels
	m.devices = make(map[string]Worker)
	m.cancels = make(map[string]context.CancelFunc)
	m.mu.Unlock()

	for key, w := range workers {
		if cancel := cancels[key]; cancel != nil {
			cancel()
		}
		w.Shutdown()
	}
	log.Info().Int("devices", len(workers)).Msg("Fleet stopped")
}
