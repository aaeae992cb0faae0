package ports

import (
	"context"

	"github.com/ghalamif/perfmon/internal/domain"
)

// RecordPredicate selects records in QueryAbnormal. A nil predicate means the
// default abnormality rule.
type RecordPredicate func(domain.Sample) bool

// Store is the append-only abnormal sample store. It is opened once per
// monitoring session and written from a single goroutine.
type Store interface {
	Insert(ctx context.Context, s domain.Sample) error
	QueryAbnormal(ctx context.Context, pred RecordPredicate) ([]domain.Record, error)
	All(ctx context.Context) ([]domain.Record, error)
	Close() error
}

// StoreOpener opens the store when a session starts.
type StoreOpener func(ctx context.Context) (Store, error)
