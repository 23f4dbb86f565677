package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds the runtime configuration. Values come from
// .farmsched.yaml, FARMSCHED_* env vars and flags, in rising priority.
type AppConfig struct {
	AppName         string        `mapstructure:"app_name"`
	Environment     string        `mapstructure:"environment"`
	Port            int           `mapstructure:"port"`
	LayoutPath      string        `mapstructure:"layout_path"`
	CatalogPath     string        `mapstructure:"catalog_path"`
	ToolsPath       string        `mapstructure:"tools_path"`
	DataDir         string        `mapstructure:"data_dir"`
	DBPath          string        `mapstructure:"db_path"`
	WaterStepHours  int           `mapstructure:"water_step_hours"`
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	RecordTimeout   time.Duration `mapstructure:"record_timeout"`
	RecordWorkers   int           `mapstructure:"record_workers"`
	WaterDuration   time.Duration `mapstructure:"water_duration"`
	MoveSpeed       int           `mapstructure:"move_speed"`
	LogLevel        string        `mapstructure:"log_level"`
	WatchLayout     bool          `mapstructure:"watch_layout"`
	SimulateDevices bool          `mapstructure:"simulate_devices"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "farmsched")
	v.SetDefault("environment", "dev")
	v.SetDefault("port", 3000)
	v.SetDefault("layout_path", "potLayout.xml")
	v.SetDefault("catalog_path", "plantTypes.xml")
	v.SetDefault("tools_path", "tools.xml")
	v.SetDefault("data_dir", "data")
	v.SetDefault("db_path", "farmsched.db")
	v.SetDefault("water_step_hours", 6)
	v.SetDefault("tick_interval", time.Minute)
	v.SetDefault("record_timeout", 5*time.Second)
	v.SetDefault("record_workers", 8)
	v.SetDefault("water_duration", 5*time.Minute)
	v.SetDefault("move_speed", 800)
	v.SetDefault("log_level", "info")
	v.SetDefault("watch_layout", true)
	v.SetDefault("simulate_devices", true)
	v.SetDefault("auto_migrate", true)
}

// loadConfig applies the defaults to v and decodes it.
func loadConfig(v *viper.Viper) (*AppConfig, error) {
	setDefaults(v)
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("port %d out of range", c.Port)
	case c.WaterStepHours <= 0:
		return fmt.Errorf("water_step_hours must be positive, got %d", c.WaterStepHours)
	case c.TickInterval <= 0:
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	case c.MoveSpeed <= 0:
		return fmt.Errorf("move_speed must be positive, got %d", c.MoveSpeed)
	case c.LayoutPath == "" || c.CatalogPath == "":
		return fmt.Errorf("layout_path and catalog_path are required")
	}
	return nil
}

func DefaultConfig() *AppConfig {
	cfg, err := loadConfig(viper.New())
	if err != nil {
		panic(err)
	}
	return cfg
}
