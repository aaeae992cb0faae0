// Package observer contains the sample observers the scheduler fans out to.
// Observe runs on the tick goroutine, so none of them block.
package observer

import (
	"github.com/ghalamif/perfmon/internal/adapters/history"
	"github.com/ghalamif/perfmon/internal/domain"
	"github.com/ghalamif/perfmon/internal/ports"
)

// Callback adapts a plain function into an Observer.
type Callback struct {
	name string
	fn   func(domain.Sample)
}

func NewCallback(name string, fn func(domain.Sample)) *Callback {
	if name == "" {
		name = "callback"
	}
	return &Callback{name: name, fn: fn}
}

func (c *Callback) Observe(s domain.Sample) {
	if c.fn != nil {
		c.fn(s)
	}
}

func (c *Callback) Name() string { return c.name }

// History keeps the chart window of recent samples.
type History struct {
	ring *history.Ring
}

func NewHistory(ring *history.Ring) *History {
	if ring == nil {
		ring = history.NewRing(history.DefaultSize)
	}
	return &History{ring: ring}
}

func (h *History) Observe(s domain.Sample) { h.ring.Append(s) }
func (h *History) Name() string            { return "history" }
func (h *History) Ring() *history.Ring     { return h.ring }

var (
	_ ports.Observer = (*Callback)(nil)
	_ ports.Observer = (*History)(nil)
)
