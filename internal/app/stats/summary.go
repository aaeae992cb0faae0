package stats

import "github.com/ghalamif/perfmon/internal/domain"

type MetricSummary struct {
	Average float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	StdDev  float64 `json:"stddev"`
}

type Summary struct {
	Count         int                      `json:"count"`
	AbnormalCount int                      `json:"abnormal_count"`
	Exceedances   int                      `json:"exceedances"`
	Metrics       map[string]MetricSummary `json:"metrics"`
}

// Summary computes every per-metric statistic from one consistent snapshot.
func (a *Aggregator) Summary(t domain.Thresholds) Summary {
	snap := a.Snapshot()
	out := Summary{
		Count:       len(snap),
		Exceedances: CountOverThresholds(snap, t),
		Metrics:     make(map[string]MetricSummary, len(domain.Metrics)),
	}
	for _, s := range snap {
		if s.IsAbnormal() {
			out.AbnormalCount++
		}
	}
	for _, m := range domain.Metrics {
		v := Values(snap, m)
		out.Metrics[m.String()] = MetricSummary{
			Average: Mean(v),
			Min:     Min(v),
			Max:     Max(v),
			StdDev:  StdDev(v),
		}
	}
	return out
}
