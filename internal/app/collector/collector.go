// Package collector turns raw hardware readings into domain samples.
//
// A reading that cannot be obtained never fails the whole sample: cpu, memory
// and disk degrade to 0, and a missing CPU temperature is replaced by a
// synthetic value in [40,60).
package collector

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ghalamif/perfmon/internal/domain"
	"github.com/ghalamif/perfmon/internal/ports"
)

const (
	fallbackTempMin  = 40.0
	fallbackTempSpan = 20.0
)

var errZeroTotal = errors.New("source reported zero total")

type Option func(*Collector)

// WithRand sets the random source used for the temperature fallback.
func WithRand(r *rand.Rand) Option {
	return func(c *Collector) {
		if r != nil {
			c.rng = r
		}
	}
}

// WithClock overrides time.Now for sample timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// WithObservability reports degraded channels.
func WithObservability(obs ports.Observability) Option {
	return func(c *Collector) {
		c.obs = obs
	}
}

type Collector struct {
	src ports.HardwareSource
	obs ports.Observability
	now func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func New(src ports.HardwareSource, opts ...Option) *Collector {
	c := &Collector{
		src: src,
		now: time.Now,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Collect reads every channel once. It only fails when ctx is done.
func (c *Collector) Collect(ctx context.Context) (domain.Sample, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sample{}, err
	}

	ts := c.now()

	cpu, err := c.src.ReadCPULoad(ctx)
	if err != nil || math.IsNaN(cpu) {
		c.degraded(domain.MetricCPU, err)
		cpu = 0
	}

	memPct, err := usedPercent(c.src.ReadMemory(ctx))
	if err != nil {
		c.degraded(domain.MetricMemory, err)
	}

	diskPct, err := usedPercent(c.src.ReadDisk(ctx))
	if err != nil {
		c.degraded(domain.MetricDisk, err)
	}

	temp := c.temperature(ctx)

	if err := ctx.Err(); err != nil {
		return domain.Sample{}, err
	}

	return domain.Sample{
		Timestamp:   ts,
		CPUUsage:    cpu,
		MemoryUsage: memPct,
		DiskUsage:   diskPct,
		Temperature: temp,
	}, nil
}

func (c *Collector) temperature(ctx context.Context) float64 {
	t, ok, err := c.src.ReadCPUTemperature(ctx)
	if err != nil {
		c.degraded(domain.MetricTemperature, err)
	}
	if err != nil || !ok || math.IsNaN(t) || t <= 0 {
		return c.syntheticTemperature()
	}
	return t
}

func (c *Collector) syntheticTemperature() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fallbackTempMin + c.rng.Float64()*fallbackTempSpan
}

func (c *Collector) degraded(m domain.Metric, err error) {
	if c.obs == nil {
		return
	}
	if err == nil {
		err = errors.New("invalid reading")
	}
	c.obs.IncCounter(ports.MetricCollectFailures, 1)
	c.obs.LogError("hardware_read_degraded", &domain.HardwareReadError{Metric: m, Err: err},
		ports.Field{Key: "metric", Value: m.String()})
}

func usedPercent(total, free uint64, err error) (float64, error) {
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, errZeroTotal
	}
	if free > total {
		free = total
	}
	return float64(total-free) * 100.0 / float64(total), nil
}

var _ ports.Collector = (*Collector)(nil)
