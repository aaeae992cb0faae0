// Package analysis detects trends over an already collected, ordered history.
package analysis

import (
	"time"

	"github.com/ghalamif/perfmon/internal/app/stats"
	"github.com/ghalamif/perfmon/internal/domain"
)

// Analyzer is read-only over the samples it was built with.
type Analyzer struct {
	samples []domain.Sample
}

func New(samples []domain.Sample) *Analyzer {
	cp := make([]domain.Sample, len(samples))
	copy(cp, samples)
	return &Analyzer{samples: cp}
}

func (a *Analyzer) Len() int { return len(a.samples) }

// IsCPULoadRising reports whether there are at least three samples and CPU
// usage never strictly decreases.
func (a *Analyzer) IsCPULoadRising() bool {
	if len(a.samples) < 3 {
		return false
	}
	for i := 1; i < len(a.samples); i++ {
		if a.samples[i].CPUUsage < a.samples[i-1].CPUUsage {
			return false
		}
	}
	return true
}

// MaxMemoryDrop is the largest decrease in memory usage between adjacent
// samples, or 0.
func (a *Analyzer) MaxMemoryDrop() float64 {
	var drop float64
	for i := 1; i < len(a.samples); i++ {
		if d := a.samples[i-1].MemoryUsage - a.samples[i].MemoryUsage; d > drop {
			drop = d
		}
	}
	return drop
}

// PeakCPUSample returns the earliest sample with the highest CPU usage.
func (a *Analyzer) PeakCPUSample() (domain.Sample, bool) {
	if len(a.samples) == 0 {
		return domain.Sample{}, false
	}
	peak := a.samples[0]
	for _, s := range a.samples[1:] {
		if s.CPUUsage > peak.CPUUsage {
			peak = s
		}
	}
	return peak, true
}

// FirstAbnormalTime returns the timestamp of the first sample exceeding any
// of the four limits in t, temperature included.
func (a *Analyzer) FirstAbnormalTime(t domain.Thresholds) (time.Time, bool) {
	for _, s := range a.samples {
		if t.Exceeds(s) {
			return s.Timestamp, true
		}
	}
	return time.Time{}, false
}

func (a *Analyzer) CountOverThresholds(t domain.Thresholds) int {
	return stats.CountOverThresholds(a.samples, t)
}

// Trends is the serialisable view of an analysis run.
type Trends struct {
	Samples           int            `json:"samples"`
	CPULoadRising     bool           `json:"cpu_load_rising"`
	MaxMemoryDrop     float64        `json:"max_memory_drop"`
	PeakCPU           *domain.Sample `json:"peak_cpu,omitempty"`
	FirstAbnormalTime *time.Time     `json:"first_abnormal_time,omitempty"`
	Exceedances       int            `json:"exceedances"`
}

func (a *Analyzer) Trends(t domain.Thresholds) Trends {
	out := Trends{
		Samples:       len(a.samples),
		CPULoadRising: a.IsCPULoadRising(),
		MaxMemoryDrop: a.MaxMemoryDrop(),
		Exceedances:   a.CountOverThresholds(t),
	}
	if peak, ok := a.PeakCPUSample(); ok {
		out.PeakCPU = &peak
	}
	if ts, ok := a.FirstAbnormalTime(t); ok {
		out.FirstAbnormalTime = &ts
	}
	return out
}
