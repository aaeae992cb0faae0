package perfmon

import (
	"github.com/ghalamif/perfmon/internal/adapters/history"
	"github.com/ghalamif/perfmon/internal/adapters/observer"
)

// NewCallbackObserver adapts fn into an Observer. fn runs on the sampling
// goroutine and should return quickly.
func NewCallbackObserver(name string, fn func(Sample)) Observer {
	return observer.NewCallback(name, fn)
}

// NewHistoryObserver keeps the last size samples in memory. size <= 0 keeps
// everything.
func NewHistoryObserver(size int) (Observer, func() []Sample) {
	h := observer.NewHistory(history.NewRing(size))
	return h, h.Ring().Snapshot
}

// OnSample registers fn as a callback observer.
func OnSample(name string, fn func(Sample)) MonitorOption {
	return WithObserver(NewCallbackObserver(name, fn))
}

// Conf loads YAML from disk and builds a Monitor in one step.
func Conf(path string, opts ...MonitorOption) (*Monitor, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewMonitor(cfg, opts...)
}
