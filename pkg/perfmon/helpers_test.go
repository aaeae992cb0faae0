package perfmon

import (
	"context"
	"sync"
)

type memStore struct {
	mu     sync.Mutex
	recs   []Record
	closed bool
}

func (m *memStore) Insert(_ context.Context, s Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, Record{ID: int64(len(m.recs) + 1), Sample: s})
	return nil
}

func (m *memStore) QueryAbnormal(_ context.Context, pred RecordPredicate) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pred == nil {
		pred = Sample.IsAbnormal
	}
	var out []Record
	for _, r := range m.recs {
		if pred(r.Sample) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) All(context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.recs...), nil
}

func (m *memStore) Close() error {
	m.closed = true
	return nil
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}
