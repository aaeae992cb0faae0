// Package scheduler drives the collector at a fixed rate, fans samples out to
// observers and persists the abnormal ones.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ghalamif/perfmon/internal/domain"
	"github.com/ghalamif/perfmon/internal/ports"
)

type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

var ErrInvalidInterval = errors.New("scheduler: interval must be positive")

type Option func(*Scheduler)

// WithPolicy shares the configurable limits with the rest of the monitor.
func WithPolicy(p *domain.ThresholdPolicy) Option {
	return func(s *Scheduler) {
		if p != nil {
			s.policy = p
		}
	}
}

func WithObservability(obs ports.Observability) Option {
	return func(s *Scheduler) {
		if obs != nil {
			s.obs = obs
		}
	}
}

func WithObservers(obs ...ports.Observer) Option {
	return func(s *Scheduler) {
		s.observers = append(s.observers, obs...)
	}
}

type Scheduler struct {
	collector ports.Collector
	open      ports.StoreOpener
	policy    *domain.ThresholdPolicy
	obs       ports.Observability

	// lifeMu serializes Start and Stop; mu guards the fields below and is
	// never held while waiting on the loop.
	lifeMu  sync.Mutex
	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	done    chan struct{}
	store   ports.Store
	session string

	latest atomic.Pointer[domain.Sample]

	obsMu     sync.RWMutex
	observers []ports.Observer
}

// New builds a stopped scheduler. open may be nil, in which case nothing is
// persisted.
func New(col ports.Collector, open ports.StoreOpener, opts ...Option) *Scheduler {
	s := &Scheduler{
		collector: col,
		open:      open,
		policy:    domain.NewDefaultThresholdPolicy(),
		obs:       ports.NopObservability{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Start opens the store and begins ticking at t=0, interval, 2*interval...
// It is a no-op while already running. A store that cannot be opened is
// logged and the session runs without persistence.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.State() == Running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := uuid.NewString()

	var store ports.Store
	if s.open != nil {
		st, err := s.open(ctx)
		if err != nil {
			s.obs.LogError("store_open_failed", err, ports.Field{Key: "session", Value: session})
		} else {
			store = st
		}
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.session = session
	s.store = store
	s.cancel = cancel
	s.done = done
	s.state = Running
	s.mu.Unlock()

	s.obs.LogInfo("scheduler_started",
		ports.Field{Key: "session", Value: session},
		ports.Field{Key: "interval", Value: interval.String()},
		ports.Field{Key: "persistence", Value: store != nil})

	go s.loop(ctx, interval, store, done)
	return nil
}

// Stop cancels future ticks, waits for the in-flight one and closes the
// store. Calling Stop on a stopped scheduler does nothing. Observers may call
// State, SessionID or Latest while Stop is waiting; State reports Running
// until the store is released.
func (s *Scheduler) Stop() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return nil
	}
	cancel, done, store, session := s.cancel, s.done, s.store, s.session
	s.mu.Unlock()

	cancel()
	<-done

	var err error
	if store != nil {
		if cerr := store.Close(); cerr != nil {
			err = fmt.Errorf("close store: %w", cerr)
			s.obs.LogError("store_close_failed", err)
		}
	}

	s.mu.Lock()
	s.state = Stopped
	s.store = nil
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	s.obs.LogInfo("scheduler_stopped", ports.Field{Key: "session", Value: session})
	return err
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID identifies the current or last monitoring session.
func (s *Scheduler) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Latest returns the most recent sample. It may be up to one interval stale.
func (s *Scheduler) Latest() (domain.Sample, bool) {
	p := s.latest.Load()
	if p == nil {
		return domain.Sample{}, false
	}
	return *p, true
}

// Subscribe registers an observer for every subsequent sample.
func (s *Scheduler) Subscribe(o ports.Observer) {
	if o == nil {
		return
	}
	s.obsMu.Lock()
	s.observers = append(s.observers, o)
	s.obsMu.Unlock()
}

// Unsubscribe removes o. It reports whether o was registered.
func (s *Scheduler) Unsubscribe(o ports.Observer) bool {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	for i, cur := range s.observers {
		if cur == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return true
		}
	}
	return false
}

// Policy is the live threshold set shared with alerting and the API.
// Persistence ignores it and uses Sample.IsAbnormal.
func (s *Scheduler) Policy() *domain.ThresholdPolicy { return s.policy }

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, store ports.Store, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tick(ctx, store)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.tick(ctx, store)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, store ports.Store) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.obs.LogCritical("tick_panic", fmt.Errorf("%v", r))
		}
	}()

	sample, err := s.collector.Collect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.obs.IncCounter(ports.MetricCollectFailures, 1)
		s.obs.LogError("collect_failed", err)
		return
	}

	s.latest.Store(&sample)
	s.obs.IncCounter(ports.MetricSamplesCollected, 1)
	s.obs.SetGauge(ports.MetricCPUUsage, sample.CPUUsage)
	s.obs.SetGauge(ports.MetricMemoryUsage, sample.MemoryUsage)
	s.obs.SetGauge(ports.MetricDiskUsage, sample.DiskUsage)
	s.obs.SetGauge(ports.MetricTemperature, sample.Temperature)

	s.notify(sample)

	if sample.IsAbnormal() {
		s.obs.IncCounter(ports.MetricAbnormalSamples, 1)
		if store != nil {
			// the write of a tick that already collected completes even if
			// Stop is waiting on it
			if err := store.Insert(context.WithoutCancel(ctx), sample); err != nil {
				s.obs.IncCounter(ports.MetricStoreFailures, 1)
				s.obs.LogError("store_insert_failed", err,
					ports.Field{Key: "cpu", Value: sample.CPUUsage},
					ports.Field{Key: "memory", Value: sample.MemoryUsage},
					ports.Field{Key: "disk", Value: sample.DiskUsage})
			}
		}
	}

	s.obs.ObserveLatency(ports.MetricTickLatency, time.Since(start).Seconds())
}

func (s *Scheduler) notify(sample domain.Sample) {
	s.obsMu.RLock()
	observers := append([]ports.Observer(nil), s.observers...)
	s.obsMu.RUnlock()
	for _, o := range observers {
		o.Observe(sample)
	}
}
