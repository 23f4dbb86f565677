package main

import (
	"context"
	"fmt"
	"strconv"

	"farm_scheduler/crops"
	"farm_scheduler/database"
	"farm_scheduler/fleet"
	"farm_scheduler/layout"
	"farm_scheduler/notify"
	"farm_scheduler/records"
	"farm_scheduler/schedule"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// IOC container
type FMS struct {
	config   *AppConfig
	appCtx   context.Context
	db       *gorm.DB
	notifier notify.Notifier

	broker   *fleet.MessageBroker
	manager  *fleet.DeviceManager
	devices  *fleet.DeviceService
	actuator *fleet.BrokerActuator

	store   *records.Store
	engine  *schedule.Engine
	watcher *layout.Watcher
}

type FMSOption func(*FMS) error

func NewFMS(ctx context.Context, opts ...FMSOption) (*FMS, error) {
	fms := &FMS{
		config:   DefaultConfig(),
		appCtx:   ctx,
		notifier: notify.LogNotifier{},
	}

	for _, opt := range opts {
		if err := opt(fms); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	cfg := fms.config

	catalog, err := crops.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	farm, err := layout.Load(cfg.LayoutPath)
	if err != nil {
		return nil, err
	}
	tools, err := layout.LoadTools(cfg.ToolsPath)
	if err != nil {
		return nil, err
	}
	fms.store, err = records.New(cfg.DataDir,
		records.WithRecordTimeout(cfg.RecordTimeout),
		records.WithWorkers(cfg.RecordWorkers),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	// Initialize database if not provided
	if fms.db == nil {
		db, err := database.InitDatabase(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		fms.db = db
	}
	if cfg.AutoMigrate {
		models := append(fleet.Models(), &schedule.ActionOutcome{})
		if err := database.AutoMigrate(fms.db, models...); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	fms.broker = fleet.NewMessageBroker()
	fms.manager = fleet.NewDeviceManager(ctx, fms.broker)
	fms.devices = fleet.NewDeviceService(fms.manager, fms.broker, fms.db)
	fms.actuator = fleet.NewBrokerActuator(fms.broker, fleet.WithWaterDuration(cfg.WaterDuration))

	fms.engine, err = schedule.New(catalog, farm, fms.store,
		schedule.WithActuator(fms.actuator),
		schedule.WithNotifier(fms.notifier),
		schedule.WithOutcomeLog(schedule.NewOutcomeLog(fms.db)),
		schedule.WithTools(tools),
		schedule.WithWaterStep(cfg.WaterStepHours),
		schedule.WithMoveSpeed(cfg.MoveSpeed),
		schedule.WithTickInterval(cfg.TickInterval),
	)
	if err != nil {
		fms.broker.Shutdown()
		return nil, err
	}
	fms.actuator.Bind(ctx, fms.engine.RecordOutcome)

	return fms, nil
}

// Start restores the farm and fleet state and starts watching the
// description files.
func (fms *FMS) Start(ctx context.Context) error {
	fms.engine.Restore(ctx)

	if _, err := fms.devices.RestoreDevices(ctx); err != nil {
		return err
	}
	if fms.config.SimulateDevices {
		zones := make([]string, 0)
		for _, z := range fms.engine.Zones() {
			zones = append(zones, strconv.Itoa(z.ID))
		}
		if err := fms.devices.EnsureSimulated(ctx, zones, layout.Point{}); err != nil {
			return err
		}
	}

	if fms.config.WatchLayout {
		w, err := layout.NewWatcher(fms.config.LayoutPath, fms.config.CatalogPath, fms.config.ToolsPath)
		if err != nil {
			return fmt.Errorf("failed to watch layout files: %w", err)
		}
		if err := w.Start(); err != nil {
			return fmt.Errorf("failed to watch layout files: %w", err)
		}
		fms.watcher = w
		go fms.reportLayoutChanges(w)
	}
	return nil
}

func (fms *FMS) reportLayoutChanges(w *layout.Watcher) {
	for change := range w.Changes {
		log.Warn().Str("file", change.File).Stringer("change", change.Kind).
			Msg("Description file changed, restart required")
		event := notify.NewEvent(notify.KindError, map[string]any{
			"file":   change.File,
			"change": change.Kind.String(),
			"detail": "restart required",
		})
		if err := fms.notifier.Notify(fms.appCtx, event); err != nil {
			log.Error().Err(err).Msg("Notification failed")
		}
	}
}

// Shutdown stops the devices before the broker they acknowledge to.
func (fms *FMS) Shutdown() {
	if fms.watcher != nil {
		fms.watcher.Stop()
	}
	fms.manager.ShutdownAll()
	fms.broker.Shutdown()
	if err := database.Close(fms.db); err != nil {
		log.Warn().Err(err).Msg("Closing database")
	}
}

func WithConfig(cfg *AppConfig) FMSOption {
	return func(fms *FMS) error {
		if cfg == nil {
			return fmt.Errorf("nil config")
		}
		fms.config = cfg
		return nil
	}
}

func WithDatabase(db *gorm.DB) FMSOption {
	return func(fms *FMS) error {
		fms.db = db
		return nil
	}
}

func WithNotifier(n notify.Notifier) FMSOption {
	return func(fms *FMS) error {
		fms.notifier = n
		return nil
	}
}

func WithAppName(name string) FMSOption {
	return func(fms *FMS) error {
		fms.config.AppName = name
		return nil
	}
}

func WithPort(port int) FMSOption {
	return func(fms *FMS) error {
		fms.config.Port = port
		return nil
	}
}
