package analysis

import (
	"testing"
	"time"

	"github.com/ghalamif/perfmon/internal/domain"
)

var t0 = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

func series(f func(i int, s *domain.Sample), n int) []domain.Sample {
	out := make([]domain.Sample, n)
	for i := range out {
		out[i].Timestamp = t0.Add(time.Duration(i) * time.Second)
		f(i, &out[i])
	}
	return out
}

func cpu(vals ...float64) []domain.Sample {
	return series(func(i int, s *domain.Sample) { s.CPUUsage = vals[i] }, len(vals))
}

func TestIsCPULoadRising(t *testing.T) {
	if !New(cpu(10, 20, 20, 30)).IsCPULoadRising() {
		t.Fatalf("non-decreasing series should be rising")
	}
	if New(cpu(10, 20, 15, 30)).IsCPULoadRising() {
		t.Fatalf("a strict decrease invalidates the trend")
	}
	if New(cpu(10, 20)).IsCPULoadRising() {
		t.Fatalf("fewer than three samples is never rising")
	}
}

func TestMaxMemoryDrop(t *testing.T) {
	mem := []float64{50, 30, 40, 10}
	a := New(series(func(i int, s *domain.Sample) { s.MemoryUsage = mem[i] }, len(mem)))
	if got := a.MaxMemoryDrop(); got != 20 {
		t.Fatalf("expected 20, got %f", got)
	}

	rising := []float64{10, 20, 30}
	a = New(series(func(i int, s *domain.Sample) { s.MemoryUsage = rising[i] }, len(rising)))
	if got := a.MaxMemoryDrop(); got != 0 {
		t.Fatalf("expected 0 with no drop, got %f", got)
	}
	if got := New(nil).MaxMemoryDrop(); got != 0 {
		t.Fatalf("expected 0 on empty input, got %f", got)
	}
}

func TestPeakCPUSampleFirstOccurrence(t *testing.T) {
	samples := cpu(40, 90, 90, 30)
	peak, ok := New(samples).PeakCPUSample()
	if !ok {
		t.Fatalf("expected a peak")
	}
	if !peak.Timestamp.Equal(samples[1].Timestamp) {
		t.Fatalf("expected sample at index 1, got %v", peak.Timestamp)
	}
	if _, ok := New(nil).PeakCPUSample(); ok {
		t.Fatalf("empty input has no peak")
	}
}

func TestFirstAbnormalTimeIncludesTemperature(t *testing.T) {
	samples := []domain.Sample{
		{Timestamp: t0, CPUUsage: 10, Temperature: 50},
		{Timestamp: t0.Add(time.Second), CPUUsage: 10, Temperature: 81},
		{Timestamp: t0.Add(2 * time.Second), CPUUsage: 95},
	}
	ts, ok := New(samples).FirstAbnormalTime(domain.DefaultThresholds())
	if !ok || !ts.Equal(samples[1].Timestamp) {
		t.Fatalf("expected the temperature breach, got %v ok=%v", ts, ok)
	}
	if samples[1].IsAbnormal() {
		t.Fatalf("default abnormality rule must still ignore temperature")
	}
	if _, ok := New(samples[:1]).FirstAbnormalTime(domain.DefaultThresholds()); ok {
		t.Fatalf("expected no abnormal time")
	}
}

func TestAnalyzerCopiesInput(t *testing.T) {
	samples := cpu(10, 20, 30)
	a := New(samples)
	samples[1].CPUUsage = 0
	if !a.IsCPULoadRising() {
		t.Fatalf("analyzer must not observe caller mutations")
	}
}

func TestTrends(t *testing.T) {
	samples := cpu(10, 95, 96)
	tr := New(samples).Trends(domain.DefaultThresholds())
	if !tr.CPULoadRising || tr.Samples != 3 || tr.Exceedances != 2 {
		t.Fatalf("unexpected trends: %+v", tr)
	}
	if tr.PeakCPU == nil || tr.PeakCPU.CPUUsage != 96 {
		t.Fatalf("unexpected peak: %+v", tr.PeakCPU)
	}
	if tr.FirstAbnormalTime == nil || !tr.FirstAbnormalTime.Equal(samples[1].Timestamp) {
		t.Fatalf("unexpected first abnormal time: %v", tr.FirstAbnormalTime)
	}
}
