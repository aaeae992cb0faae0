package perfmon

import (
	"github.com/ghalamif/perfmon/internal/adapters/hardware"
	"github.com/ghalamif/perfmon/internal/adapters/observer"
	"github.com/ghalamif/perfmon/internal/adapters/store"
	"github.com/ghalamif/perfmon/internal/app/config"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	SamplingConfig = config.SamplingConfig
	HardwareConfig = config.HardwareConfig
	// HostConfig selects the mount and sensors read from the local machine.
	HostConfig     = hardware.Config
	StoreConfig    = store.Config
	APIConfig      = config.APIConfig
	AlertsConfig   = config.AlertsConfig
	AMQPConfig     = observer.AMQPConfig
	LogConfig      = config.LogConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}

// SaveConfig writes cfg as YAML.
func SaveConfig(path string, cfg *Config) error {
	return config.Save(path, cfg)
}
