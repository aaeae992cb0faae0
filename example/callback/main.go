package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/perfmon/pkg/perfmon"
)

func main() {
	cfg := perfmon.DefaultConfig()
	cfg.Hardware.Source = "simulated"
	cfg.API.Disabled = true

	callback := func(s perfmon.Sample) {
		flag := ""
		if s.IsAbnormal() {
			flag = " ABNORMAL"
		}
		fmt.Printf("%s cpu=%.1f mem=%.1f disk=%.1f temp=%.1f%s\n",
			s.Timestamp.Format(time.RFC3339),
			s.CPUUsage,
			s.MemoryUsage,
			s.DiskUsage,
			s.Temperature,
			flag,
		)
	}

	m, err := perfmon.NewMonitor(cfg, perfmon.OnSample("stdout", callback))
	if err != nil {
		log.Fatalf("build monitor: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
