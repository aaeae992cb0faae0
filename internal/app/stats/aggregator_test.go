package stats

import (
	"math"
	"testing"
	"time"

	"github.com/ghalamif/perfmon/internal/domain"
)

func cpuSamples(vals ...float64) []domain.Sample {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Sample, len(vals))
	for i, v := range vals {
		out[i] = domain.Sample{Timestamp: base.Add(time.Duration(i) * time.Second), CPUUsage: v}
	}
	return out
}

func TestEmptySetReturnsZero(t *testing.T) {
	a := NewAggregator()
	for _, m := range domain.Metrics {
		if a.Average(m) != 0 || a.Max(m) != 0 || a.Min(m) != 0 || a.StdDev(m) != 0 {
			t.Fatalf("%s: expected zeros on empty set", m)
		}
	}
	if a.AverageBetween(domain.MetricCPU, time.Time{}, time.Time{}) != 0 {
		t.Fatalf("expected 0 average over empty range")
	}
	if _, ok := a.Latest(); ok {
		t.Fatalf("empty set has no latest sample")
	}
}

func TestStdDevUsesSampleDivisor(t *testing.T) {
	a := NewAggregator(cpuSamples(42)...)
	if got := a.StdDev(domain.MetricCPU); got != 0 {
		t.Fatalf("stddev of one sample should be 0, got %f", got)
	}

	a = NewAggregator(cpuSamples(10, 20, 30)...)
	if got := a.StdDev(domain.MetricCPU); math.Abs(got-10) > 1e-9 {
		t.Fatalf("expected 10, got %f", got)
	}
	if a.Average(domain.MetricCPU) != 20 || a.Min(domain.MetricCPU) != 10 || a.Max(domain.MetricCPU) != 30 {
		t.Fatalf("unexpected avg/min/max")
	}
}

func TestCountOverThresholdsIsEventCount(t *testing.T) {
	a := NewAggregator(domain.Sample{CPUUsage: 95, MemoryUsage: 90, DiskUsage: 50, Temperature: 50})
	if got := a.CountOverThresholds(domain.DefaultThresholds()); got != 2 {
		t.Fatalf("expected 2 exceedances, got %d", got)
	}

	a.Add(domain.Sample{CPUUsage: 99, MemoryUsage: 99, DiskUsage: 99, Temperature: 99})
	if got := a.CountOverThresholds(domain.DefaultThresholds()); got != 6 {
		t.Fatalf("expected 6 exceedances, got %d", got)
	}
	if got := a.CountOver(domain.MetricDisk, 95); got != 1 {
		t.Fatalf("expected 1 disk exceedance, got %d", got)
	}
}

func TestAbnormalCountIgnoresTemperature(t *testing.T) {
	a := NewAggregator(
		domain.Sample{Temperature: 120},
		domain.Sample{CPUUsage: 91},
		domain.Sample{MemoryUsage: 85},
		domain.Sample{DiskUsage: 95.1},
	)
	if got := a.AbnormalCount(); got != 2 {
		t.Fatalf("expected 2 abnormal samples, got %d", got)
	}
}

func TestDataBetweenInclusiveAndOpenBounds(t *testing.T) {
	samples := cpuSamples(10, 20, 30, 40)
	a := NewAggregator(samples...)

	got := a.DataBetween(samples[1].Timestamp, samples[2].Timestamp)
	if len(got) != 2 || got[0].CPUUsage != 20 || got[1].CPUUsage != 30 {
		t.Fatalf("unexpected inclusive range: %+v", got)
	}
	if got := a.DataBetween(time.Time{}, samples[1].Timestamp); len(got) != 2 {
		t.Fatalf("open lower bound: expected 2, got %d", len(got))
	}
	if got := a.DataBetween(samples[2].Timestamp, time.Time{}); len(got) != 2 {
		t.Fatalf("open upper bound: expected 2, got %d", len(got))
	}
	if avg := a.AverageBetween(domain.MetricCPU, samples[2].Timestamp, time.Time{}); avg != 35 {
		t.Fatalf("expected 35, got %f", avg)
	}
}

func TestAddClearSnapshot(t *testing.T) {
	a := NewAggregator()
	a.Add(domain.Sample{CPUUsage: 1})
	a.Add(domain.Sample{CPUUsage: 2})
	if a.Count() != 2 {
		t.Fatalf("expected 2 samples, got %d", a.Count())
	}
	if s, _ := a.Latest(); s.CPUUsage != 2 {
		t.Fatalf("latest should be the last added sample")
	}
	snap := a.Snapshot()
	snap[0].CPUUsage = 100
	if a.Max(domain.MetricCPU) != 2 {
		t.Fatalf("snapshot must not alias internal state")
	}
	a.Clear()
	if a.Count() != 0 {
		t.Fatalf("clear left %d samples", a.Count())
	}
}

func TestSummary(t *testing.T) {
	a := NewAggregator(cpuSamples(10, 20, 30)...)
	sum := a.Summary(domain.DefaultThresholds())
	if sum.Count != 3 || sum.AbnormalCount != 0 || sum.Exceedances != 0 {
		t.Fatalf("unexpected counts: %+v", sum)
	}
	cpu := sum.Metrics["cpu"]
	if cpu.Average != 20 || cpu.Min != 10 || cpu.Max != 30 || math.Abs(cpu.StdDev-10) > 1e-9 {
		t.Fatalf("unexpected cpu summary: %+v", cpu)
	}
	if _, ok := sum.Metrics["temperature"]; !ok {
		t.Fatalf("summary should include every metric")
	}
}
