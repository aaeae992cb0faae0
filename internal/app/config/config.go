package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/perfmon/internal/adapters/hardware"
	"github.com/ghalamif/perfmon/internal/adapters/observer"
	"github.com/ghalamif/perfmon/internal/adapters/store"
	"github.com/ghalamif/perfmon/internal/domain"
)

type Config struct {
	Sampling   SamplingConfig    `yaml:"sampling"`
	Thresholds domain.Thresholds `yaml:"thresholds"`
	Store      store.Config      `yaml:"store"`
	Hardware   HardwareConfig    `yaml:"hardware"`
	API        APIConfig         `yaml:"api"`
	Alerts     AlertsConfig      `yaml:"alerts"`
	Log        LogConfig         `yaml:"log"`
}

type SamplingConfig struct {
	Interval    time.Duration `yaml:"interval"`
	UIRefresh   time.Duration `yaml:"ui_refresh"`
	HistorySize int           `yaml:"history_size"`
}

type HardwareConfig struct {
	// Source is "host" or "simulated".
	Source          string `yaml:"source"`
	Seed            int64  `yaml:"seed"`
	hardware.Config `yaml:",inline"`
}

type APIConfig struct {
	Disabled  bool    `yaml:"disabled"`
	Addr      string  `yaml:"addr"`
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

type AlertsConfig struct {
	AMQP observer.AMQPConfig `yaml:"amqp"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Thresholds: domain.DefaultThresholds()}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML file. Threshold keys missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Config{Thresholds: domain.DefaultThresholds()}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, errors.Join(domain.ErrConfiguration, err)
	}

	return &cfg, nil
}

// Save writes cfg as YAML, creating the parent directory.
func Save(path string, cfg *Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return errors.Join(domain.ErrConfiguration, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Sampling.Interval == 0 {
		c.Sampling.Interval = time.Second
	}
	if c.Sampling.UIRefresh == 0 {
		c.Sampling.UIRefresh = time.Second
	}
	if c.Sampling.HistorySize == 0 {
		c.Sampling.HistorySize = 60
	}
	if c.Hardware.Source == "" {
		c.Hardware.Source = "host"
	}
	if c.API.Addr == "" {
		c.API.Addr = ":9100"
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = 20
	}
	if c.API.Burst == 0 {
		c.API.Burst = 40
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	c.Store.ApplyDefaults()
	c.Hardware.ApplyDefaults()
	if c.Alerts.AMQP.URL != "" {
		c.Alerts.AMQP.ApplyDefaults()
	}
}

func (c *Config) validate() error {
	if c.Sampling.Interval <= 0 {
		return fmt.Errorf("sampling.interval must be positive, got %s", c.Sampling.Interval)
	}
	if c.Sampling.UIRefresh <= 0 {
		return fmt.Errorf("sampling.ui_refresh must be positive, got %s", c.Sampling.UIRefresh)
	}
	if c.Sampling.HistorySize < 0 {
		return fmt.Errorf("sampling.history_size must not be negative")
	}
	switch c.Hardware.Source {
	case "host", "simulated":
	default:
		return fmt.Errorf("hardware.source must be host or simulated, got %q", c.Hardware.Source)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}
	if c.API.RateLimit < 0 || c.API.Burst < 0 {
		return fmt.Errorf("api.rate_limit and api.burst must not be negative")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// Logger builds the slog logger described by the log section.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	lvl, err := c.LogLevel()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
