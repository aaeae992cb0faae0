package ports

// Metric names emitted through Observability.
const (
	MetricSamplesCollected = "perfmon_samples_collected_total"
	MetricAbnormalSamples  = "perfmon_abnormal_samples_total"
	MetricCollectFailures  = "perfmon_collect_failures_total"
	MetricStoreFailures    = "perfmon_store_failures_total"
	MetricObserverDrops    = "perfmon_observer_dropped_total"
	MetricTickLatency      = "perfmon_tick_duration_seconds"
	MetricCPUUsage         = "perfmon_cpu_usage_percent"
	MetricMemoryUsage      = "perfmon_memory_usage_percent"
	MetricDiskUsage        = "perfmon_disk_usage_percent"
	MetricTemperature      = "perfmon_temperature_celsius"
)

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)
}

type Field struct {
	Key   string
	Value any
}

// NopObservability discards logs and metrics.
type NopObservability struct{}

func (NopObservability) LogInfo(string, ...Field)            {}
func (NopObservability) LogError(string, error, ...Field)    {}
func (NopObservability) LogCritical(string, error, ...Field) {}
func (NopObservability) IncCounter(string, float64)          {}
func (NopObservability) ObserveLatency(string, float64)      {}
func (NopObservability) SetGauge(string, float64)            {}
