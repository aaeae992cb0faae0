package ports

import (
	"context"

	"github.com/ghalamif/perfmon/internal/domain"
)

// HardwareSource exposes the raw host readings. Implementations should honour
// ctx cancellation on blocking reads.
type HardwareSource interface {
	// ReadCPULoad returns system CPU load as a percentage (0-100).
	ReadCPULoad(ctx context.Context) (float64, error)
	ReadMemory(ctx context.Context) (total, available uint64, err error)
	ReadDisk(ctx context.Context) (total, free uint64, err error)
	// ReadCPUTemperature returns ok=false when no sensor reading exists.
	ReadCPUTemperature(ctx context.Context) (celsius float64, ok bool, err error)
}

// HardwareInfoReader is implemented by sources that can describe the machine.
type HardwareInfoReader interface {
	ReadHardwareInfo(ctx context.Context) (domain.HardwareInfo, error)
}

type Collector interface {
	Collect(ctx context.Context) (domain.Sample, error)
}
