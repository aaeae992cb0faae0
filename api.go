package perfmon

import (
	"context"

	base "github.com/ghalamif/perfmon/pkg/perfmon"
)

// Re-exported errors for convenience.
var (
	ErrHardwareRead            = base.ErrHardwareRead
	ErrPersistence             = base.ErrPersistence
	ErrConfiguration           = base.ErrConfiguration
	ErrHardwareInfoUnavailable = base.ErrHardwareInfoUnavailable
)

// Type aliases so consumers can import github.com/ghalamif/perfmon directly.
type (
	Config          = base.Config
	SamplingConfig  = base.SamplingConfig
	HardwareConfig  = base.HardwareConfig
	HostConfig      = base.HostConfig
	StoreConfig     = base.StoreConfig
	APIConfig       = base.APIConfig
	AlertsConfig    = base.AlertsConfig
	AMQPConfig      = base.AMQPConfig
	LogConfig       = base.LogConfig
	Monitor         = base.Monitor
	MonitorOption   = base.MonitorOption
	Sample          = base.Sample
	Record          = base.Record
	Thresholds      = base.Thresholds
	ThresholdPolicy = base.ThresholdPolicy
	Metric          = base.Metric
	HardwareInfo    = base.HardwareInfo
	HardwareSource  = base.HardwareSource
	Store           = base.Store
	StoreOpener     = base.StoreOpener
	RecordPredicate = base.RecordPredicate
	Observer        = base.Observer
	Observability   = base.Observability
	Field           = base.Field
	Summary         = base.Summary
	MetricSummary   = base.MetricSummary
	Trends          = base.Trends
	State           = base.State
)

const (
	MetricCPU         = base.MetricCPU
	MetricMemory      = base.MetricMemory
	MetricDisk        = base.MetricDisk
	MetricTemperature = base.MetricTemperature
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

func SaveConfig(path string, cfg *Config) error {
	return base.SaveConfig(path, cfg)
}

func DefaultThresholds() Thresholds {
	return base.DefaultThresholds()
}

// Monitor and options.
func NewMonitor(cfg *Config, opts ...MonitorOption) (*Monitor, error) {
	return base.NewMonitor(cfg, opts...)
}

func Conf(path string, opts ...MonitorOption) (*Monitor, error) {
	return base.Conf(path, opts...)
}

// Run loads path and monitors until ctx is cancelled.
func Run(ctx context.Context, path string, opts ...MonitorOption) error {
	m, err := base.Conf(path, opts...)
	if err != nil {
		return err
	}
	return m.Run(ctx)
}

func WithHardwareSource(src HardwareSource) MonitorOption {
	return base.WithHardwareSource(src)
}

func WithStore(st Store) MonitorOption {
	return base.WithStore(st)
}

func WithStoreOpener(open StoreOpener) MonitorOption {
	return base.WithStoreOpener(open)
}

func WithObservability(obs Observability) MonitorOption {
	return base.WithObservability(obs)
}

func WithObserver(obs ...Observer) MonitorOption {
	return base.WithObserver(obs...)
}

func WithoutAPI() MonitorOption {
	return base.WithoutAPI()
}

func OnSample(name string, fn func(Sample)) MonitorOption {
	return base.OnSample(name, fn)
}

// Observer adapters.
func NewCallbackObserver(name string, fn func(Sample)) Observer {
	return base.NewCallbackObserver(name, fn)
}

func NewHistoryObserver(size int) (Observer, func() []Sample) {
	return base.NewHistoryObserver(size)
}
