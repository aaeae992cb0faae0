package perfmon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ghalamif/perfmon/internal/adapters/api"
	"github.com/ghalamif/perfmon/internal/adapters/hardware"
	"github.com/ghalamif/perfmon/internal/adapters/history"
	"github.com/ghalamif/perfmon/internal/adapters/observability"
	"github.com/ghalamif/perfmon/internal/adapters/observer"
	"github.com/ghalamif/perfmon/internal/adapters/store"
	"github.com/ghalamif/perfmon/internal/app/analysis"
	"github.com/ghalamif/perfmon/internal/app/collector"
	"github.com/ghalamif/perfmon/internal/app/export"
	"github.com/ghalamif/perfmon/internal/app/scheduler"
	"github.com/ghalamif/perfmon/internal/app/stats"
	"github.com/ghalamif/perfmon/internal/domain"
	"github.com/ghalamif/perfmon/internal/ports"
)

// MonitorOption customizes the dependencies used by Monitor.
type MonitorOption func(*monitorOverrides)

type monitorOverrides struct {
	source        HardwareSource
	opener        StoreOpener
	observability Observability
	observers     []Observer
	disableAPI    bool
}

// WithHardwareSource replaces the host or simulated source selected by config.
func WithHardwareSource(src HardwareSource) MonitorOption {
	return func(o *monitorOverrides) {
		o.source = src
	}
}

// WithStore persists abnormal samples into st. The monitor never closes a
// store passed this way.
func WithStore(st Store) MonitorOption {
	return func(o *monitorOverrides) {
		if st == nil {
			return
		}
		o.opener = func(context.Context) (ports.Store, error) {
			return borrowedStore{st}, nil
		}
	}
}

// WithStoreOpener controls how the store is opened at every Start.
func WithStoreOpener(open StoreOpener) MonitorOption {
	return func(o *monitorOverrides) {
		o.opener = open
	}
}

// WithObservability plugs in a custom logging and metrics backend.
func WithObservability(obs Observability) MonitorOption {
	return func(o *monitorOverrides) {
		o.observability = obs
	}
}

// WithObserver registers extra observers for every sample.
func WithObserver(obs ...Observer) MonitorOption {
	return func(o *monitorOverrides) {
		o.observers = append(o.observers, obs...)
	}
}

// WithoutAPI skips the HTTP server regardless of config.
func WithoutAPI() MonitorOption {
	return func(o *monitorOverrides) {
		o.disableAPI = true
	}
}

// Monitor wires collector, scheduler, observers, store and HTTP API and
// exposes simple lifecycle hooks for embedding perfmon inside any Go service.
type Monitor struct {
	cfg       *Config
	policy    *domain.ThresholdPolicy
	obs       ports.Observability
	src       ports.HardwareSource
	opener    ports.StoreOpener
	scheduler *scheduler.Scheduler
	agg       *stats.Aggregator
	history   *observer.History
	server    *api.Server

	dialAlerts func(observer.AMQPConfig, *domain.ThresholdPolicy, ports.Observability) (alertPublisher, error)
	alerts     alertPublisher

	mu         sync.Mutex
	store      ports.Store
	channels   []*observer.Channel
	apiStarted bool
}

// NewMonitor bootstraps the default adapters (gopsutil host source, sqlite
// store, Prometheus observability, HTTP API) from cfg. MonitorOption values
// override any of them.
func NewMonitor(cfg *Config, opts ...MonitorOption) (*Monitor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var overrides monitorOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	obs := overrides.observability
	if obs == nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		obs = observability.NewPromObsWith(reg, cfg.Logger(os.Stderr))
		gatherer = reg
	}

	src := overrides.source
	if src == nil {
		switch cfg.Hardware.Source {
		case "simulated":
			seed := cfg.Hardware.Seed
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			src = hardware.NewSimulatedSource(seed)
		default:
			src = hardware.NewHostSource(cfg.Hardware.Config)
		}
	}

	opener := overrides.opener
	if opener == nil {
		opener = store.Opener(cfg.Store)
	}

	m := &Monitor{
		cfg:     cfg,
		policy:  domain.NewThresholdPolicy(cfg.Thresholds),
		obs:     obs,
		src:     src,
		opener:  opener,
		agg:     stats.NewAggregator(),
		history: observer.NewHistory(history.NewRing(cfg.Sampling.HistorySize)),
	}
	m.dialAlerts = func(c observer.AMQPConfig, p *domain.ThresholdPolicy, o ports.Observability) (alertPublisher, error) {
		return observer.DialAMQP(c, p, o)
	}

	col := collector.New(src, collector.WithObservability(obs))
	m.scheduler = scheduler.New(col, m.openStore,
		scheduler.WithPolicy(m.policy),
		scheduler.WithObservability(obs),
		scheduler.WithObservers(
			m.history,
			observer.NewCallback("stats", m.agg.Add),
		),
		scheduler.WithObservers(overrides.observers...),
	)

	if !cfg.API.Disabled && !overrides.disableAPI {
		m.server = api.NewServer(api.Config{
			Addr:      cfg.API.Addr,
			RateLimit: cfg.API.RateLimit,
			Burst:     cfg.API.Burst,
			Refresh:   cfg.Sampling.UIRefresh,
		}, m, obs, api.WithGatherer(gatherer))
	}

	return m, nil
}

// Start begins sampling and, when enabled, the HTTP API and AMQP alerts.
// It returns immediately; call Run to block on a context instead.
func (m *Monitor) Start() error {
	if m == nil {
		return fmt.Errorf("monitor is nil")
	}
	if m.scheduler.State() == scheduler.Running {
		return nil
	}

	m.mu.Lock()
	needAlerts := m.cfg.Alerts.AMQP.URL != "" && m.alerts == nil
	m.mu.Unlock()
	if needAlerts {
		pub, err := m.dialAlerts(m.cfg.Alerts.AMQP, m.policy, m.obs)
		if err != nil {
			m.obs.LogError("amqp_dial_failed", err)
		} else {
			m.mu.Lock()
			m.alerts = pub
			m.mu.Unlock()
			m.scheduler.Subscribe(pub)
		}
	}

	if err := m.scheduler.Start(m.cfg.Sampling.Interval); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server != nil && !m.apiStarted {
		if err := m.server.Start(); err != nil {
			return errors.Join(fmt.Errorf("start api: %w", err), m.scheduler.Stop())
		}
		m.apiStarted = true
	}
	return nil
}

// Run starts the monitor and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Shutdown(shutdownCtx)
}

// Stop halts sampling and releases the store. The API keeps serving the
// collected data until Shutdown.
func (m *Monitor) Stop() error {
	err := m.scheduler.Stop()
	m.mu.Lock()
	m.store = nil
	m.mu.Unlock()
	return err
}

// Shutdown stops sampling, the HTTP API, AMQP alerts and channel observers.
// A later Start dials a fresh alert connection.
func (m *Monitor) Shutdown(ctx context.Context) error {
	var errs []error

	if m.server != nil {
		if err := m.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		m.mu.Lock()
		m.apiStarted = false
		m.mu.Unlock()
	}

	if err := m.Stop(); err != nil {
		errs = append(errs, err)
	}

	m.mu.Lock()
	pub := m.alerts
	m.alerts = nil
	m.mu.Unlock()
	if pub != nil {
		m.scheduler.Unsubscribe(pub)
		if err := pub.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	m.mu.Lock()
	for _, ch := range m.channels {
		ch.Close()
	}
	m.channels = nil
	m.mu.Unlock()

	return errors.Join(errs...)
}

// Samples returns a channel receiving every new sample. A reader that falls
// behind misses samples. The channel is closed by Shutdown.
func (m *Monitor) Samples(buffer int) <-chan Sample {
	ch, out := observer.NewChannel("samples", buffer, m.obs)
	m.mu.Lock()
	m.channels = append(m.channels, ch)
	m.mu.Unlock()
	m.scheduler.Subscribe(ch)
	return out
}

// Subscribe registers o for every subsequent sample.
func (m *Monitor) Subscribe(o Observer) { m.scheduler.Subscribe(o) }

func (m *Monitor) State() State      { return m.scheduler.State() }
func (m *Monitor) SessionID() string { return m.scheduler.SessionID() }

// Latest returns the most recent sample, if any.
func (m *Monitor) Latest() (Sample, bool) { return m.scheduler.Latest() }

// History returns the bounded chart window, oldest first.
func (m *Monitor) History() []Sample { return m.history.Ring().Snapshot() }

// Stats summarises every sample collected since the monitor was created.
func (m *Monitor) Stats() Summary { return m.agg.Summary(m.policy.Snapshot()) }

// Aggregator exposes the session statistics for custom queries.
func (m *Monitor) Aggregator() *stats.Aggregator { return m.agg }

// Trends analyses every sample collected since the monitor was created.
func (m *Monitor) Trends() Trends {
	return analysis.New(m.agg.Snapshot()).Trends(m.policy.Snapshot())
}

// HardwareInfo describes the monitored machine when the hardware source
// supports it, and fails with ErrHardwareInfoUnavailable otherwise.
func (m *Monitor) HardwareInfo(ctx context.Context) (HardwareInfo, error) {
	r, ok := m.src.(ports.HardwareInfoReader)
	if !ok {
		return HardwareInfo{}, domain.ErrHardwareInfoUnavailable
	}
	return r.ReadHardwareInfo(ctx)
}

func (m *Monitor) Thresholds() Thresholds { return m.policy.Snapshot() }

// SetThresholds changes which samples are persisted from the next tick on.
func (m *Monitor) SetThresholds(t Thresholds) { m.policy.Set(t) }

func (m *Monitor) Policy() *ThresholdPolicy { return m.policy }

// AbnormalRecords returns every persisted record matching the default
// abnormality rule.
func (m *Monitor) AbnormalRecords(ctx context.Context) ([]Record, error) {
	var recs []Record
	err := m.withStore(ctx, func(st ports.Store) error {
		var err error
		recs, err = st.QueryAbnormal(ctx, nil)
		return err
	})
	return recs, err
}

// ExportAbnormalCSV writes persisted abnormal records to path and returns the
// number of rows written.
func (m *Monitor) ExportAbnormalCSV(ctx context.Context, path string) (int, error) {
	var n int
	err := m.withStore(ctx, func(st ports.Store) error {
		var err error
		n, err = export.AbnormalCSV(ctx, st, nil, path)
		return err
	})
	return n, err
}

func (m *Monitor) openStore(ctx context.Context) (ports.Store, error) {
	st, err := m.opener(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.store = st
	m.mu.Unlock()
	return st, nil
}

// withStore runs fn against the session store, or against a short-lived one
// when the monitor is stopped.
func (m *Monitor) withStore(ctx context.Context, fn func(ports.Store) error) error {
	m.mu.Lock()
	st := m.store
	m.mu.Unlock()
	if st != nil {
		return fn(st)
	}

	st, err := m.opener(ctx)
	if err != nil {
		return err
	}
	return errors.Join(fn(st), st.Close())
}

type alertPublisher interface {
	ports.Observer
	Close() error
}

// borrowedStore keeps Stop from closing a caller-owned store.
type borrowedStore struct{ ports.Store }

func (borrowedStore) Close() error { return nil }

var _ api.Source = (*Monitor)(nil)
