package hardware

import (
	"context"
	"math/rand"
	"sync"

	"github.com/ghalamif/perfmon/internal/domain"
	"github.com/ghalamif/perfmon/internal/ports"
)

const simulatedTotal = 1 << 30

// SimulatedSource produces random readings in the ranges cpu 20-100,
// memory 30-90, disk 10-95 and temperature 35-75. It is useful for demos and
// hosts where gopsutil has no support.
type SimulatedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulatedSource(seed int64) *SimulatedSource {
	return &SimulatedSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *SimulatedSource) between(lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *SimulatedSource) ReadCPULoad(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.between(20, 100), nil
}

func (s *SimulatedSource) ReadMemory(ctx context.Context) (uint64, uint64, error) {
	return percentToTotals(ctx, s.between(30, 90))
}

func (s *SimulatedSource) ReadDisk(ctx context.Context) (uint64, uint64, error) {
	return percentToTotals(ctx, s.between(10, 95))
}

func (s *SimulatedSource) ReadCPUTemperature(ctx context.Context) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	return s.between(35, 75), true, nil
}

func (s *SimulatedSource) ReadHardwareInfo(ctx context.Context) (domain.HardwareInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.HardwareInfo{}, err
	}
	return domain.HardwareInfo{
		CPUModel:    "Simulated CPU",
		LogicalCPUs: 4,
		DiskModel:   "Simulated Disk",
		Motherboard: "Simulated Board",
		Hostname:    "simulated",
	}.Complete(), nil
}

// FixedSource always reports the same readings. Temperature <= 0 reports the
// sensor as unavailable.
type FixedSource struct {
	CPU         float64
	Memory      float64
	Disk        float64
	Temperature float64
}

func (f FixedSource) ReadCPULoad(ctx context.Context) (float64, error) {
	return f.CPU, ctx.Err()
}

func (f FixedSource) ReadMemory(ctx context.Context) (uint64, uint64, error) {
	return percentToTotals(ctx, f.Memory)
}

func (f FixedSource) ReadDisk(ctx context.Context) (uint64, uint64, error) {
	return percentToTotals(ctx, f.Disk)
}

func (f FixedSource) ReadCPUTemperature(ctx context.Context) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	return f.Temperature, f.Temperature > 0, nil
}

// percentToTotals expresses a used percentage as (total, available) bytes.
func percentToTotals(ctx context.Context, usedPct float64) (uint64, uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if usedPct < 0 {
		usedPct = 0
	}
	if usedPct > 100 {
		usedPct = 100
	}
	free := uint64(float64(simulatedTotal) * (100 - usedPct) / 100)
	return simulatedTotal, free, nil
}

var (
	_ ports.HardwareSource     = (*SimulatedSource)(nil)
	_ ports.HardwareInfoReader = (*SimulatedSource)(nil)
	_ ports.HardwareSource     = FixedSource{}
)
