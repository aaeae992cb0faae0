package perfmon

import (
	"github.com/ghalamif/perfmon/internal/app/analysis"
	"github.com/ghalamif/perfmon/internal/app/scheduler"
	"github.com/ghalamif/perfmon/internal/app/stats"
	"github.com/ghalamif/perfmon/internal/domain"
	"github.com/ghalamif/perfmon/internal/ports"
)

type (
	Sample          = domain.Sample
	Record          = domain.Record
	Thresholds      = domain.Thresholds
	ThresholdPolicy = domain.ThresholdPolicy
	Metric          = domain.Metric
	HardwareInfo    = domain.HardwareInfo

	HardwareSource  = ports.HardwareSource
	Store           = ports.Store
	StoreOpener     = ports.StoreOpener
	RecordPredicate = ports.RecordPredicate
	Observer        = ports.Observer
	Observability   = ports.Observability
	Field           = ports.Field

	Summary       = stats.Summary
	MetricSummary = stats.MetricSummary
	Trends        = analysis.Trends
	State         = scheduler.State

	HardwareReadError = domain.HardwareReadError
	PersistenceError  = domain.PersistenceError
)

const (
	MetricCPU         = domain.MetricCPU
	MetricMemory      = domain.MetricMemory
	MetricDisk        = domain.MetricDisk
	MetricTemperature = domain.MetricTemperature

	Stopped = scheduler.Stopped
	Running = scheduler.Running
)

var (
	ErrHardwareRead            = domain.ErrHardwareRead
	ErrPersistence             = domain.ErrPersistence
	ErrConfiguration           = domain.ErrConfiguration
	ErrHardwareInfoUnavailable = domain.ErrHardwareInfoUnavailable
)

// DefaultThresholds returns 90/85/95/80.
func DefaultThresholds() Thresholds { return domain.DefaultThresholds() }

// NewAnalyzer exposes the trend analyzer over an arbitrary sample slice.
func NewAnalyzer(samples []Sample) *analysis.Analyzer { return analysis.New(samples) }

// NewAggregator exposes the statistics aggregator for caller-fed sample sets.
func NewAggregator(samples ...Sample) *stats.Aggregator { return stats.NewAggregator(samples...) }
