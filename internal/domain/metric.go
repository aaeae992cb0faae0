package domain

import (
	"fmt"
	"strings"
)

// Metric selects one channel of a Sample.
type Metric int

const (
	MetricCPU Metric = iota
	MetricMemory
	MetricDisk
	MetricTemperature
)

// Metrics lists every channel in display order.
var Metrics = []Metric{MetricCPU, MetricMemory, MetricDisk, MetricTemperature}

func (m Metric) String() string {
	switch m {
	case MetricCPU:
		return "cpu"
	case MetricMemory:
		return "memory"
	case MetricDisk:
		return "disk"
	case MetricTemperature:
		return "temperature"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// Value extracts the metric's reading from s.
func (m Metric) Value(s Sample) float64 {
	switch m {
	case MetricCPU:
		return s.CPUUsage
	case MetricMemory:
		return s.MemoryUsage
	case MetricDisk:
		return s.DiskUsage
	case MetricTemperature:
		return s.Temperature
	default:
		return 0
	}
}

// ParseMetric accepts the String form plus a few short aliases.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cpu":
		return MetricCPU, nil
	case "memory", "mem", "ram":
		return MetricMemory, nil
	case "disk":
		return MetricDisk, nil
	case "temperature", "temp":
		return MetricTemperature, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", name)
	}
}
