package domain

import "sync"

// Thresholds is a set of per-metric limits. A value is abnormal when it is
// strictly greater than its limit.
type Thresholds struct {
	CPU         float64 `yaml:"cpu" json:"cpu"`
	Memory      float64 `yaml:"memory" json:"memory"`
	Disk        float64 `yaml:"disk" json:"disk"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
}

// DefaultThresholds returns 90/85/95/80.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPU:         DefaultCPUThreshold,
		Memory:      DefaultMemoryThreshold,
		Disk:        DefaultDiskThreshold,
		Temperature: DefaultTemperatureThreshold,
	}
}

func (t Thresholds) CPUAbnormal(v float64) bool         { return v > t.CPU }
func (t Thresholds) MemoryAbnormal(v float64) bool      { return v > t.Memory }
func (t Thresholds) DiskAbnormal(v float64) bool        { return v > t.Disk }
func (t Thresholds) TemperatureAbnormal(v float64) bool { return v > t.Temperature }

// Classify reports whether cpu, memory or disk exceeds its limit. The
// temperature limit is ignored.
func (t Thresholds) Classify(s Sample) bool {
	return t.CPUAbnormal(s.CPUUsage) || t.MemoryAbnormal(s.MemoryUsage) || t.DiskAbnormal(s.DiskUsage)
}

// Exceeds reports whether any of the four limits, temperature included, is
// exceeded.
func (t Thresholds) Exceeds(s Sample) bool {
	return t.Classify(s) || t.TemperatureAbnormal(s.Temperature)
}

// ThresholdPolicy holds the configured limits and may be changed while the
// scheduler is reading it. Assigned values are not validated.
type ThresholdPolicy struct {
	mu sync.RWMutex
	t  Thresholds
}

func NewThresholdPolicy(t Thresholds) *ThresholdPolicy {
	return &ThresholdPolicy{t: t}
}

// NewDefaultThresholdPolicy returns a policy seeded with DefaultThresholds.
func NewDefaultThresholdPolicy() *ThresholdPolicy {
	return NewThresholdPolicy(DefaultThresholds())
}

func (p *ThresholdPolicy) Snapshot() Thresholds {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.t
}

func (p *ThresholdPolicy) Classify(s Sample) bool {
	return p.Snapshot().Classify(s)
}

func (p *ThresholdPolicy) CPUThreshold() float64         { return p.Snapshot().CPU }
func (p *ThresholdPolicy) MemoryThreshold() float64      { return p.Snapshot().Memory }
func (p *ThresholdPolicy) DiskThreshold() float64        { return p.Snapshot().Disk }
func (p *ThresholdPolicy) TemperatureThreshold() float64 { return p.Snapshot().Temperature }

func (p *ThresholdPolicy) SetCPUThreshold(v float64) {
	p.mu.Lock()
	p.t.CPU = v
	p.mu.Unlock()
}

func (p *ThresholdPolicy) SetMemoryThreshold(v float64) {
	p.mu.Lock()
	p.t.Memory = v
	p.mu.Unlock()
}

func (p *ThresholdPolicy) SetDiskThreshold(v float64) {
	p.mu.Lock()
	p.t.Disk = v
	p.mu.Unlock()
}

func (p *ThresholdPolicy) SetTemperatureThreshold(v float64) {
	p.mu.Lock()
	p.t.Temperature = v
	p.mu.Unlock()
}

// Set replaces all four limits at once.
func (p *ThresholdPolicy) Set(t Thresholds) {
	p.mu.Lock()
	p.t = t
	p.mu.Unlock()
}
