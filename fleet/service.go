package fleet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"farm_scheduler/farmerr"
	"farm_scheduler/layout"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ErrInvalidRequest marks requests rejected before anything is started.
var ErrInvalidRequest = errors.New("invalid request")

type RegisterDeviceReq struct {
	Name             string       `json:"name"`
	SerialNumber     string       `json:"serial_number"`
	DeviceType       DeviceType   `json:"device_type"`
	Zone             string       `json:"zone"`
	GallonsPerMinute float32      `json:"gallons_per_minute"`
	Home             layout.Point `json:"home"`
}

// DeviceView is a registered device and whether it is running.
type DeviceView struct {
	UUID         uuid.UUID  `json:"uuid"`
	Name         string     `json:"name"`
	SerialNumber string     `json:"serial_number"`
	DeviceType   DeviceType `json:"device_type"`
	WorkerType   WorkerType `json:"worker_type"`
	Zone         string     `json:"zone,omitempty"`
	Topic        string     `json:"topic,omitempty"`
	Running      bool       `json:"running"`
}

type DeviceService struct {
	registry *DeviceManager
	broker   Broker
	db       *gorm.DB
}

func NewDeviceService(r *DeviceManager, b Broker, db *gorm.DB) *DeviceService {
	return &DeviceService{
		registry: r,
		broker:   b,
		db:       db,
	}
}

// normalizeDeviceType accepts device types in any letter case.
func normalizeDeviceType(t DeviceType) (DeviceType, error) {
	switch {
	case strings.EqualFold(string(t), string(DeviceTypeSprinkler)):
		return DeviceTypeSprinkler, nil
	case strings.EqualFold(string(t), string(DeviceTypeGantry)):
		return DeviceTypeGantry, nil
	}
	return "", fmt.Errorf("%w: unsupported device type %q", ErrInvalidRequest, t)
}

// RegisterDevice starts a device and records it so it is started again on
// the next boot.
func (s *DeviceService) RegisterDevice(ctx context.Context, req RegisterDeviceReq) (uuid.UUID, error) {
	kind, err := normalizeDeviceType(req.DeviceType)
	if err != nil {
		return uuid.Nil, err
	}
	if kind == DeviceTypeSprinkler && req.Zone == "" {
		return uuid.Nil, fmt.Errorf("%w: sprinkler needs a zone", ErrInvalidRequest)
	}

	worker := s.newWorker(kind, req.Zone, req.Home)
	if err := s.registry.Register(worker); err != nil {
		return uuid.Nil, err
	}

	reg := RegisteredDevice{
		UUID:         worker.GetID(),
		Name:         req.Name,
		SerialNumber: req.SerialNumber,
		Status:       DeviceStatusAvailable,
		WorkerType:   kind.WorkerType(),
		DeviceType:   kind,
		Zone:         req.Zone,
	}
	switch kind {
	case DeviceTypeSprinkler:
		err = gorm.G[IrrigationDevice](s.db).Create(ctx, &IrrigationDevice{
			Device:           reg,
			GallonsPerMinute: req.GallonsPerMinute,
		})
	case DeviceTypeGantry:
		err = gorm.G[MotionDevice](s.db).Create(ctx, &MotionDevice{
			Device: reg,
			HomeX:  req.Home.X,
			HomeY:  req.Home.Y,
			HomeZ:  req.Home.Z,
		})
	}
	if err != nil {
		if uerr := s.registry.Unregister(worker); uerr != nil {
			log.Warn().Err(uerr).Msg("Rollback of device registration failed")
		}
		return uuid.Nil, fmt.Errorf("store device: %w", err)
	}

	log.Info().Stringer("device", worker.GetID()).Str("type", string(kind)).Str("topic", worker.Topic()).
		Msg("Successfully created device")
	return worker.GetID(), nil
}

func (s *DeviceService) newWorker(kind DeviceType, zone string, home layout.Point) Worker {
	if kind == DeviceTypeGantry {
		return NewGantry(s.broker, home)
	}
	return NewSprinkler(s.broker, zone)
}

// UnregisterDevice stops the device and hard deletes its rows so the
// detail tables cascade.
func (s *DeviceService) UnregisterDevice(ctx context.Context, id uuid.UUID) error {
	stopErr := s.registry.UnregisterByWorkerId(id.String())

	res := s.db.WithContext(ctx).Unscoped().Where("uuid = ?", id).Delete(&RegisteredDevice{})
	if res.Error != nil {
		return fmt.Errorf("delete device %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 && stopErr != nil {
		return farmerr.NotFound("device", id.String())
	}
	log.Info().Stringer("device", id).Msg("Device removed")
	return nil
}

func (s *DeviceService) ListDevices(ctx context.Context) ([]DeviceView, error) {
	rows, err := gorm.G[RegisteredDevice](s.db).Order("id").Find(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	out := make([]DeviceView, 0, len(rows))
	for _, r := range rows {
		v := DeviceView{
			UUID:         r.UUID,
			Name:         r.Name,
			SerialNumber: r.SerialNumber,
			DeviceType:   r.DeviceType,
			WorkerType:   r.WorkerType,
			Zone:         r.Zone,
		}
		if w, ok := s.registry.Get(r.UUID.String()); ok {
			v.Running = true
			v.Topic = w.Topic()
		}
		out = append(out, v)
	}
	return out, nil
}

// RestoreDevices starts every stored device under its stored id. Devices
// that cannot be started are logged and skipped.
func (s *DeviceService) RestoreDevices(ctx context.Context) (int, error) {
	rows, err := gorm.G[RegisteredDevice](s.db).Order("id").Find(ctx)
	if err != nil {
		return 0, fmt.Errorf("load devices: %w", err)
	}
	started := 0
	for _, r := range rows {
		if _, running := s.registry.Get(r.UUID.String()); running {
			continue
		}
		var home layout.Point
		if r.DeviceType == DeviceTypeGantry {
			md, err := gorm.G[MotionDevice](s.db).Where("registered_device_id = ?", r.ID).First(ctx)
			if err != nil {
				log.Warn().Err(err).Stringer("device", r.UUID).Msg("Gantry details missing, using origin")
			} else {
				home = md.Home()
			}
		}
		kind, err := normalizeDeviceType(r.DeviceType)
		if err != nil {
			log.Warn().Err(err).Stringer("device", r.UUID).Msg("Skipping stored device")
			continue
		}
		worker := s.newWorker(kind, r.Zone, home)
		setWorkerID(worker, r.UUID)
		if err := s.registry.Register(worker); err != nil {
			log.Warn().Err(err).Stringer("device", r.UUID).Msg("Skipping stored device")
			continue
		}
		started++
	}
	log.Info().Int("devices", started).Msg("Stored devices started")
	return started, nil
}

// EnsureSimulated registers a simulated sprinkler for every zone and a
// gantry when nothing serves those topics yet.
func (s *DeviceService) EnsureSimulated(ctx context.Context, zones []string, home layout.Point) error {
	for _, zone := range zones {
		if s.registry.Serving(IrrigationTopic(zone)) {
			continue
		}
		if _, err := s.RegisterDevice(ctx, RegisterDeviceReq{
			Name:       "sim-sprinkler-" + zone,
			DeviceType: DeviceTypeSprinkler,
			Zone:       zone,
		}); err != nil {
			return fmt.Errorf("simulated sprinkler for zone %s: %w", zone, err)
		}
	}
	if !s.registry.Serving(TopicGantry) {
		if _, err := s.RegisterDevice(ctx, RegisterDeviceReq{
			Name:       "sim-gantry",
			DeviceType: DeviceTypeGantry,
			Home:       home,
		}); err != nil {
			return fmt.Errorf("simulated gantry: %w", err)
		}
	}
	return nil
}

// PublishTask sends a hand-built task to the fleet.
func (s *DeviceService) PublishTask(ctx context.Context, task Task) (uuid.UUID, error) {
	if task.Topic == "" || task.Instruction == "" {
		return uuid.Nil, fmt.Errorf("%w: task needs a topic and an instruction", ErrInvalidRequest)
	}
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if err := s.broker.Publish(ctx, task); err != nil {
		return task.ID, err
	}
	return task.ID, nil
}

func (s *DeviceService) TaskStatus(id uuid.UUID) (*TaskState, error) {
	return s.broker.GetTaskStatus(id)
}

func setWorkerID(w Worker, id uuid.UUID) {
	switch d := w.(type) {
	case *Sprinkler:
		d.ID = id
	case *Gantry:
		d.ID = id
	}
}
