package domain

import "time"

// Default limits used by the built-in abnormality rule. They do not follow a
// reconfigured ThresholdPolicy.
const (
	DefaultCPUThreshold         = 90.0
	DefaultMemoryThreshold      = 85.0
	DefaultDiskThreshold        = 95.0
	DefaultTemperatureThreshold = 80.0
)

// Sample is one observation of the host vitals. Usage fields are percentages,
// Temperature is in degrees Celsius.
type Sample struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryUsage float64   `json:"memory_usage"`
	DiskUsage   float64   `json:"disk_usage"`
	Temperature float64   `json:"temperature"`
}

// IsAbnormal applies the default rule: cpu > 90, memory > 85 or disk > 95.
// Temperature is not part of it.
func (s Sample) IsAbnormal() bool {
	return s.CPUUsage > DefaultCPUThreshold ||
		s.MemoryUsage > DefaultMemoryThreshold ||
		s.DiskUsage > DefaultDiskThreshold
}

// Record is a persisted abnormal sample. ID is assigned by the store.
type Record struct {
	ID int64 `json:"id"`
	Sample
}
