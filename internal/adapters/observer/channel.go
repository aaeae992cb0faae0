package observer

import (
	"sync"

	"github.com/ghalamif/perfmon/internal/domain"
	"github.com/ghalamif/perfmon/internal/ports"
)

// Channel exposes samples on a buffered channel. When the reader falls behind
// samples are dropped and counted instead of stalling the scheduler.
type Channel struct {
	name string
	obs  ports.Observability

	mu     sync.RWMutex
	ch     chan domain.Sample
	closed bool
}

// NewChannel returns the observer and its read side. Close the observer
// during shutdown to close the channel.
func NewChannel(name string, buffer int, obs ports.Observability) (*Channel, <-chan domain.Sample) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	c := &Channel{name: name, obs: obs, ch: make(chan domain.Sample, buffer)}
	return c, c.ch
}

func (c *Channel) Observe(s domain.Sample) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- s:
	default:
		if c.obs != nil {
			c.obs.IncCounter(ports.MetricObserverDrops, 1)
		}
	}
}

func (c *Channel) Name() string { return c.name }

func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

var _ ports.Observer = (*Channel)(nil)
