package hardware

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"

	"github.com/ghalamif/perfmon/internal/domain"
	"github.com/ghalamif/perfmon/internal/ports"
)

// Config selects what the host source measures.
type Config struct {
	// Mount is the filesystem whose usage is reported. Empty means the first
	// partition the OS enumerates.
	Mount string `yaml:"mount"`
	// CPUWindow is how long a CPU load reading is averaged over.
	CPUWindow time.Duration `yaml:"cpu_window"`
	// SensorHints are lower-case substrings matched against sensor keys when
	// picking the CPU temperature.
	SensorHints []string `yaml:"sensor_hints"`
}

func (c *Config) ApplyDefaults() {
	if c.CPUWindow <= 0 {
		c.CPUWindow = time.Second
	}
	if len(c.SensorHints) == 0 {
		c.SensorHints = []string{"coretemp", "k10temp", "cpu", "package", "tctl", "soc"}
	}
}

var errNoPartitions = errors.New("no disk partitions enumerated")

// HostSource reads vitals from the local machine through gopsutil.
type HostSource struct {
	cfg Config

	cpuPercent   func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	virtualMem   func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	partitions   func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	diskUsage    func(ctx context.Context, path string) (*disk.UsageStat, error)
	temperatures func(ctx context.Context) ([]sensors.TemperatureStat, error)

	cpuInfo    func(ctx context.Context) ([]cpu.InfoStat, error)
	cpuCounts  func(ctx context.Context, logical bool) (int, error)
	hostInfo   func(ctx context.Context) (*host.InfoStat, error)
	ioCounters func(ctx context.Context, names ...string) (map[string]disk.IOCountersStat, error)
	board      func() string
}

func NewHostSource(cfg Config) *HostSource {
	cfg.ApplyDefaults()
	return &HostSource{
		cfg:          cfg,
		cpuPercent:   cpu.PercentWithContext,
		virtualMem:   mem.VirtualMemoryWithContext,
		partitions:   disk.PartitionsWithContext,
		diskUsage:    disk.UsageWithContext,
		temperatures: sensors.TemperaturesWithContext,
		cpuInfo:      cpu.InfoWithContext,
		cpuCounts:    cpu.CountsWithContext,
		hostInfo:     host.InfoWithContext,
		ioCounters:   disk.IOCountersWithContext,
		board:        readDMIBoard,
	}
}

func (h *HostSource) ReadCPULoad(ctx context.Context) (float64, error) {
	pcts, err := h.cpuPercent(ctx, h.cfg.CPUWindow, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, errors.New("cpu percent: empty result")
	}
	return pcts[0], nil
}

func (h *HostSource) ReadMemory(ctx context.Context) (uint64, uint64, error) {
	vm, err := h.virtualMem(ctx)
	if err != nil {
		return 0, 0, err
	}
	return vm.Total, vm.Available, nil
}

func (h *HostSource) ReadDisk(ctx context.Context) (uint64, uint64, error) {
	path := h.cfg.Mount
	if path == "" {
		parts, err := h.partitions(ctx, false)
		if err != nil {
			return 0, 0, err
		}
		if len(parts) == 0 {
			return 0, 0, errNoPartitions
		}
		path = parts[0].Mountpoint
	}
	usage, err := h.diskUsage(ctx, path)
	if err != nil {
		return 0, 0, fmt.Errorf("disk usage %s: %w", path, err)
	}
	return usage.Total, usage.Free, nil
}

// ReadCPUTemperature returns the first sensor whose key matches one of the
// configured hints, in hint order.
func (h *HostSource) ReadCPUTemperature(ctx context.Context) (float64, bool, error) {
	temps, err := h.temperatures(ctx)
	if len(temps) == 0 {
		// gopsutil returns partial results with a warning error on some hosts.
		return 0, false, err
	}
	for _, hint := range h.cfg.SensorHints {
		for _, t := range temps {
			if strings.Contains(strings.ToLower(t.SensorKey), hint) && t.Temperature > 0 {
				return t.Temperature, true, nil
			}
		}
	}
	return 0, false, nil
}

// ReadHardwareInfo describes the CPU, first disk and board. Only a failed CPU
// lookup is an error; the other parts are best effort.
func (h *HostSource) ReadHardwareInfo(ctx context.Context) (domain.HardwareInfo, error) {
	var info domain.HardwareInfo

	cpus, err := h.cpuInfo(ctx)
	if err != nil {
		return info, fmt.Errorf("cpu info: %w", err)
	}
	if len(cpus) > 0 {
		info.CPUModel = strings.TrimSpace(cpus[0].ModelName)
	}
	if n, err := h.cpuCounts(ctx, false); err == nil {
		info.CPUCores = n
	}
	if n, err := h.cpuCounts(ctx, true); err == nil {
		info.LogicalCPUs = n
	}

	if hi, err := h.hostInfo(ctx); err == nil && hi != nil {
		info.Hostname = hi.Hostname
		info.Platform = strings.TrimSpace(hi.Platform + " " + hi.PlatformVersion)
		info.Arch = hi.KernelArch
	}

	if counters, err := h.ioCounters(ctx); err == nil {
		info.DiskModel = firstDiskModel(counters)
	}
	info.Motherboard = h.board()

	return info.Complete(), nil
}

// firstDiskModel picks the lowest-named device that carries a label or serial.
func firstDiskModel(counters map[string]disk.IOCountersStat) string {
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := counters[name]
		if c.Label != "" {
			return c.Label
		}
		if c.SerialNumber != "" {
			return c.SerialNumber
		}
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

const dmiDir = "/sys/devices/virtual/dmi/id"

// readDMIBoard returns "vendor name" of the baseboard on Linux, or "".
func readDMIBoard() string {
	var parts []string
	for _, f := range []string{"board_vendor", "board_name"} {
		b, err := os.ReadFile(filepath.Join(dmiDir, f))
		if err != nil {
			continue
		}
		if v := strings.TrimSpace(string(b)); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

var (
	_ ports.HardwareSource     = (*HostSource)(nil)
	_ ports.HardwareInfoReader = (*HostSource)(nil)
)
