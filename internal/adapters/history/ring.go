package history

import (
	"sync"

	"github.com/ghalamif/perfmon/internal/domain"
)

// DefaultSize matches a one-minute chart at one sample per second.
const DefaultSize = 60

// Ring is a bounded in-memory history that keeps the most recent samples in
// insertion order. A non-positive capacity keeps everything.
type Ring struct {
	mu   sync.Mutex
	data []domain.Sample
	cap  int
}

func NewRing(capacity int) *Ring {
	initial := capacity
	if initial <= 0 {
		initial = DefaultSize
	}
	return &Ring{
		data: make([]domain.Sample, 0, initial),
		cap:  capacity,
	}
}

// Append adds s, evicting the oldest sample when the ring is full.
func (r *Ring) Append(s domain.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cap > 0 && len(r.data) >= r.cap {
		r.data = append(r.data[:0], r.data[1:]...)
	}
	r.data = append(r.data, s)
}

// Snapshot returns a copy, oldest first.
func (r *Ring) Snapshot() []domain.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Sample, len(r.data))
	copy(out, r.data)
	return out
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

func (r *Ring) Cap() int { return r.cap }

func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = r.data[:0]
}
