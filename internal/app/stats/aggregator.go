// Package stats computes batch statistics over an in-memory set of samples.
// Nothing is cached: every call recomputes from the current set.
package stats

import (
	"sync"
	"time"

	mstats "github.com/montanaflynn/stats"

	"github.com/ghalamif/perfmon/internal/domain"
)

// Aggregator is a caller-fed, insertion-ordered sample set. It is safe for
// concurrent use so it can double as an Observer sink.
type Aggregator struct {
	mu      sync.RWMutex
	samples []domain.Sample
}

func NewAggregator(initial ...domain.Sample) *Aggregator {
	a := &Aggregator{}
	a.samples = append(a.samples, initial...)
	return a
}

func (a *Aggregator) Add(s domain.Sample) {
	a.mu.Lock()
	a.samples = append(a.samples, s)
	a.mu.Unlock()
}

func (a *Aggregator) Clear() {
	a.mu.Lock()
	a.samples = nil
	a.mu.Unlock()
}

func (a *Aggregator) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.samples)
}

// Snapshot returns a copy of the set in insertion order.
func (a *Aggregator) Snapshot() []domain.Sample {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.Sample, len(a.samples))
	copy(out, a.samples)
	return out
}

// Latest returns the most recently added sample.
func (a *Aggregator) Latest() (domain.Sample, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.samples) == 0 {
		return domain.Sample{}, false
	}
	return a.samples[len(a.samples)-1], true
}

func (a *Aggregator) Average(m domain.Metric) float64 { return Mean(a.values(m)) }
func (a *Aggregator) Max(m domain.Metric) float64     { return Max(a.values(m)) }
func (a *Aggregator) Min(m domain.Metric) float64     { return Min(a.values(m)) }

// StdDev is the sample standard deviation (divisor n-1), 0 for n <= 1.
func (a *Aggregator) StdDev(m domain.Metric) float64 { return StdDev(a.values(m)) }

// CountOver counts samples whose metric is strictly above threshold.
func (a *Aggregator) CountOver(m domain.Metric, threshold float64) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := 0
	for _, s := range a.samples {
		if m.Value(s) > threshold {
			n++
		}
	}
	return n
}

// CountOverThresholds sums per-metric exceedances; one sample can add up to 4.
func (a *Aggregator) CountOverThresholds(t domain.Thresholds) int {
	return CountOverThresholds(a.Snapshot(), t)
}

// AbnormalCount counts samples matching the default abnormality rule.
func (a *Aggregator) AbnormalCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := 0
	for _, s := range a.samples {
		if s.IsAbnormal() {
			n++
		}
	}
	return n
}

// DataBetween returns samples with from <= ts <= to. A zero bound is open.
func (a *Aggregator) DataBetween(from, to time.Time) []domain.Sample {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []domain.Sample
	for _, s := range a.samples {
		if !from.IsZero() && s.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && s.Timestamp.After(to) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (a *Aggregator) AverageBetween(m domain.Metric, from, to time.Time) float64 {
	return Mean(Values(a.DataBetween(from, to), m))
}

func (a *Aggregator) values(m domain.Metric) []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Values(a.samples, m)
}

// Values projects one metric out of samples.
func Values(samples []domain.Sample, m domain.Metric) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = m.Value(s)
	}
	return out
}

// Mean, Max and Min return 0 on empty input.
func Mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	m, err := mstats.Mean(v)
	if err != nil {
		return 0
	}
	return m
}

func Max(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	m, err := mstats.Max(v)
	if err != nil {
		return 0
	}
	return m
}

func Min(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	m, err := mstats.Min(v)
	if err != nil {
		return 0
	}
	return m
}

func StdDev(v []float64) float64 {
	if len(v) <= 1 {
		return 0
	}
	sd, err := mstats.StandardDeviationSample(v)
	if err != nil {
		return 0
	}
	return sd
}

func CountOverThresholds(samples []domain.Sample, t domain.Thresholds) int {
	n := 0
	for _, s := range samples {
		if t.CPUAbnormal(s.CPUUsage) {
			n++
		}
		if t.MemoryAbnormal(s.MemoryUsage) {
			n++
		}
		if t.DiskAbnormal(s.DiskUsage) {
			n++
		}
		if t.TemperatureAbnormal(s.Temperature) {
			n++
		}
	}
	return n
}
