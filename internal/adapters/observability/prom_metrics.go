package observability

import (
	"io"
	"log/slog"

	"github.com/ghalamif/perfmon/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names registered by PromObs.
const (
	SamplesCollected = ports.MetricSamplesCollected
	AbnormalSamples  = ports.MetricAbnormalSamples
	CollectFailures  = ports.MetricCollectFailures
	StoreFailures    = ports.MetricStoreFailures
	ObserverDrops    = ports.MetricObserverDrops
	TickLatency      = ports.MetricTickLatency
	CPUUsage         = ports.MetricCPUUsage
	MemoryUsage      = ports.MetricMemoryUsage
	DiskUsage        = ports.MetricDiskUsage
	Temperature      = ports.MetricTemperature
)

type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the perfmon metrics with the default registerer.
func NewPromObs(logger *slog.Logger) *PromObs {
	return NewPromObsWith(prometheus.DefaultRegisterer, logger)
}

// NewPromObsWith registers with reg. A nil logger discards log output.
func NewPromObsWith(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	collected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: SamplesCollected,
		Help: "Total samples produced by the collector.",
	})
	abnormal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: AbnormalSamples,
		Help: "Samples classified abnormal and handed to the store.",
	})
	collectFail := prometheus.NewCounter(prometheus.CounterOpts{
		Name: CollectFailures,
		Help: "Ticks or channels whose hardware read failed.",
	})
	storeFail := prometheus.NewCounter(prometheus.CounterOpts{
		Name: StoreFailures,
		Help: "Abnormal samples dropped because the store write failed.",
	})
	drops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ObserverDrops,
		Help: "Samples not delivered to a full observer channel.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    TickLatency,
		Help:    "Duration of one collection tick including persistence.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})
	cpu := prometheus.NewGauge(prometheus.GaugeOpts{Name: CPUUsage, Help: "Latest CPU usage."})
	mem := prometheus.NewGauge(prometheus.GaugeOpts{Name: MemoryUsage, Help: "Latest memory usage."})
	disk := prometheus.NewGauge(prometheus.GaugeOpts{Name: DiskUsage, Help: "Latest disk usage."})
	temp := prometheus.NewGauge(prometheus.GaugeOpts{Name: Temperature, Help: "Latest CPU temperature."})

	reg.MustRegister(collected, abnormal, collectFail, storeFail, drops, latency, cpu, mem, disk, temp)

	return &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			SamplesCollected: collected,
			AbnormalSamples:  abnormal,
			CollectFailures:  collectFail,
			StoreFailures:    storeFail,
			ObserverDrops:    drops,
		},
		gauges: map[string]prometheus.Gauge{
			CPUUsage:    cpu,
			MemoryUsage: mem,
			DiskUsage:   disk,
			Temperature: temp,
		},
		histos: map[string]prometheus.Observer{
			TickLatency: latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(attrs(fields), "error", err)...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(attrs(fields), "error", err, "critical", true)...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
