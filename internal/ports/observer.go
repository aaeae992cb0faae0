package ports

import "github.com/ghalamif/perfmon/internal/domain"

// Observer receives every collected sample. Observe is called on the tick
// goroutine and must not block.
type Observer interface {
	Observe(s domain.Sample)
	Name() string
}
