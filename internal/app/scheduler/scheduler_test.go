package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ghalamif/perfmon/internal/domain"
	"github.com/ghalamif/perfmon/internal/ports"
)

type funcCollector func(ctx context.Context) (domain.Sample, error)

func (f funcCollector) Collect(ctx context.Context) (domain.Sample, error) { return f(ctx) }

// seqCollector returns samples in order, repeating the last one.
type seqCollector struct {
	mu      sync.Mutex
	samples []domain.Sample
	errs    []error
	calls   int
}

func (c *seqCollector) Collect(ctx context.Context) (domain.Sample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return domain.Sample{}, c.errs[i]
	}
	if i >= len(c.samples) {
		i = len(c.samples) - 1
	}
	return c.samples[i], nil
}

type fakeStore struct {
	mu        sync.Mutex
	inserted  []domain.Sample
	insertErr error
	closed    int
}

func (f *fakeStore) Insert(_ context.Context, s domain.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, s)
	return nil
}

func (f *fakeStore) QueryAbnormal(context.Context, ports.RecordPredicate) ([]domain.Record, error) {
	return nil, nil
}
func (f *fakeStore) All(context.Context) ([]domain.Record, error) { return nil, nil }
func (f *fakeStore) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserted)
}

func openerFor(st *fakeStore, opens *int) ports.StoreOpener {
	return func(context.Context) (ports.Store, error) {
		if opens != nil {
			*opens++
		}
		return st, nil
	}
}

type recordingObs struct {
	mu       sync.Mutex
	counters map[string]float64
	errors   []string
}

func (r *recordingObs) LogInfo(string, ...ports.Field) {}
func (r *recordingObs) LogError(msg string, _ error, _ ...ports.Field) {
	r.mu.Lock()
	r.errors = append(r.errors, msg)
	r.mu.Unlock()
}
func (r *recordingObs) LogCritical(msg string, err error, f ...ports.Field) { r.LogError(msg, err, f...) }
func (r *recordingObs) IncCounter(name string, v float64) {
	r.mu.Lock()
	if r.counters == nil {
		r.counters = map[string]float64{}
	}
	r.counters[name] += v
	r.mu.Unlock()
}
func (r *recordingObs) ObserveLatency(string, float64) {}
func (r *recordingObs) SetGauge(string, float64)       {}

func (r *recordingObs) counter(name string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

type sliceObserver struct {
	mu      sync.Mutex
	samples []domain.Sample
}

func (o *sliceObserver) Observe(s domain.Sample) {
	o.mu.Lock()
	o.samples = append(o.samples, s)
	o.mu.Unlock()
}
func (o *sliceObserver) Name() string { return "slice" }
func (o *sliceObserver) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.samples)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestStopBeforeFirstTickLeavesStoreUntouched(t *testing.T) {
	st := &fakeStore{}
	col := funcCollector(func(ctx context.Context) (domain.Sample, error) {
		<-ctx.Done()
		return domain.Sample{CPUUsage: 99, MemoryUsage: 99, DiskUsage: 99}, ctx.Err()
	})
	s := New(col, openerFor(st, nil))

	if err := s.Start(time.Second); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if st.count() != 0 {
		t.Fatalf("store was modified: %d inserts", st.count())
	}
	if st.closed != 1 {
		t.Fatalf("store should be closed once, got %d", st.closed)
	}
	if _, ok := s.Latest(); ok {
		t.Fatalf("interrupted tick must not publish a sample")
	}
	if s.State() != Stopped {
		t.Fatalf("expected stopped state")
	}
}

func TestTicksPersistOnlyAbnormalSamples(t *testing.T) {
	st := &fakeStore{}
	col := &seqCollector{samples: []domain.Sample{
		{CPUUsage: 10},
		{CPUUsage: 95},
		{MemoryUsage: 90},
		{Temperature: 100},
		{DiskUsage: 10},
	}}
	seen := &sliceObserver{}
	obs := &recordingObs{}
	s := New(col, openerFor(st, nil), WithObservers(seen), WithObservability(obs))

	if err := s.Start(5 * time.Millisecond); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return seen.len() >= 5 })
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if st.count() != 2 {
		t.Fatalf("expected 2 persisted samples, got %d", st.count())
	}
	if st.inserted[0].CPUUsage != 95 || st.inserted[1].MemoryUsage != 90 {
		t.Fatalf("unexpected persisted samples: %+v", st.inserted)
	}
	if obs.counter("perfmon_abnormal_samples_total") != 2 {
		t.Fatalf("expected 2 abnormal samples counted")
	}
	if latest, ok := s.Latest(); !ok || latest.DiskUsage != 10 {
		t.Fatalf("unexpected latest sample %+v ok=%v", latest, ok)
	}
}

func TestPersistenceUsesDefaultRuleNotPolicy(t *testing.T) {
	st := &fakeStore{}
	col := &seqCollector{samples: []domain.Sample{{CPUUsage: 50}, {CPUUsage: 95}}}
	policy := domain.NewDefaultThresholdPolicy()
	policy.SetCPUThreshold(40)
	seen := &sliceObserver{}
	s := New(col, openerFor(st, nil), WithPolicy(policy), WithObservers(seen))

	if err := s.Start(5 * time.Millisecond); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return seen.len() >= 2 })
	policy.SetCPUThreshold(99)
	waitFor(t, func() bool { return seen.len() >= 4 })
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.inserted) == 0 {
		t.Fatalf("cpu=95 is abnormal under the default rule and must be persisted")
	}
	for _, got := range st.inserted {
		if got.CPUUsage != 95 {
			t.Fatalf("cpu=50 must not be persisted even though the policy limit is 40: %+v", st.inserted)
		}
	}
}

type blockingObserver struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	onCall  func()
}

func (b *blockingObserver) Observe(domain.Sample) {
	first := false
	b.once.Do(func() { first = true })
	if !first {
		return
	}
	close(b.entered)
	<-b.release
	b.onCall()
}
func (b *blockingObserver) Name() string { return "blocking" }

func TestObserverCanQuerySchedulerDuringStop(t *testing.T) {
	st := &fakeStore{}
	col := &seqCollector{samples: []domain.Sample{{CPUUsage: 1}}}
	s := New(col, openerFor(st, nil))

	var seenState State
	var seenSession string
	obs := &blockingObserver{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	obs.onCall = func() {
		seenState = s.State()
		seenSession = s.SessionID()
		s.Latest()
	}
	s.Subscribe(obs)

	if err := s.Start(time.Hour); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-obs.entered

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop() }()
	time.Sleep(20 * time.Millisecond)
	close(obs.release)

	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return while an observer queried the scheduler")
	}
	if seenState != Running || seenSession == "" {
		t.Fatalf("observer saw state=%v session=%q", seenState, seenSession)
	}
	if s.State() != Stopped {
		t.Fatalf("expected stopped state")
	}
	if st.closed != 1 {
		t.Fatalf("store closed %d times", st.closed)
	}
}

func TestUnsubscribe(t *testing.T) {
	s := New(&seqCollector{samples: []domain.Sample{{}}}, nil)
	o := &sliceObserver{}
	s.Subscribe(o)
	if !s.Unsubscribe(o) {
		t.Fatalf("expected observer to be removed")
	}
	if s.Unsubscribe(o) {
		t.Fatalf("second unsubscribe should report false")
	}
	s.notify(domain.Sample{})
	if o.len() != 0 {
		t.Fatalf("unsubscribed observer received a sample")
	}
}

func TestStartAndStopAreIdempotent(t *testing.T) {
	st := &fakeStore{}
	opens := 0
	col := &seqCollector{samples: []domain.Sample{{CPUUsage: 1}}}
	s := New(col, openerFor(st, &opens))

	if err := s.Start(time.Hour); err != nil {
		t.Fatalf("start: %v", err)
	}
	session := s.SessionID()
	if err := s.Start(time.Hour); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if opens != 1 || s.SessionID() != session {
		t.Fatalf("second start should be a no-op, opens=%d", opens)
	}
	if s.State() != Running {
		t.Fatalf("expected running state")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if st.closed != 1 {
		t.Fatalf("store closed %d times", st.closed)
	}
}

func TestCollectFailureDoesNotStopLoop(t *testing.T) {
	col := &seqCollector{
		samples: []domain.Sample{{}, {CPUUsage: 12}},
		errs:    []error{errors.New("sensor bus reset")},
	}
	obs := &recordingObs{}
	s := New(col, nil, WithObservability(obs))

	if err := s.Start(5 * time.Millisecond); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool {
		latest, ok := s.Latest()
		return ok && latest.CPUUsage == 12
	})
	_ = s.Stop()

	if obs.counter("perfmon_collect_failures_total") != 1 {
		t.Fatalf("expected one collect failure counted")
	}
}

func TestStoreFailureIsLoggedAndDropped(t *testing.T) {
	st := &fakeStore{insertErr: &domain.PersistenceError{Op: "insert", Err: errors.New("disk full")}}
	col := &seqCollector{samples: []domain.Sample{{CPUUsage: 99}}}
	obs := &recordingObs{}
	seen := &sliceObserver{}
	s := New(col, openerFor(st, nil), WithObservability(obs), WithObservers(seen))

	if err := s.Start(5 * time.Millisecond); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return obs.counter("perfmon_store_failures_total") >= 2 })
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if seen.len() < 2 {
		t.Fatalf("observers must keep receiving samples after a failed write")
	}
}

func TestStoreOpenFailureRunsWithoutPersistence(t *testing.T) {
	col := &seqCollector{samples: []domain.Sample{{CPUUsage: 99}}}
	obs := &recordingObs{}
	opener := func(context.Context) (ports.Store, error) {
		return nil, &domain.PersistenceError{Op: "open", Err: errors.New("permission denied")}
	}
	s := New(col, opener, WithObservability(obs))

	if err := s.Start(5 * time.Millisecond); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { _, ok := s.Latest(); return ok })
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.errors) == 0 || obs.errors[0] != "store_open_failed" {
		t.Fatalf("expected store_open_failed, got %v", obs.errors)
	}
}

func TestInvalidInterval(t *testing.T) {
	s := New(&seqCollector{samples: []domain.Sample{{}}}, nil)
	if err := s.Start(0); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestSubscribeAfterStart(t *testing.T) {
	col := &seqCollector{samples: []domain.Sample{{CPUUsage: 3}}}
	s := New(col, nil)
	if err := s.Start(5 * time.Millisecond); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	late := &sliceObserver{}
	s.Subscribe(late)
	waitFor(t, func() bool { return late.len() > 0 })
}
