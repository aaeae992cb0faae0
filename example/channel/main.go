package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/perfmon"
)

func main() {
	m, err := perfmon.Conf("../../configs/perfmon.yaml", perfmon.WithoutAPI())
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go trendWorker(m.Samples(32), m)

	if err := m.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}

// trendWorker prints the rolling trend every ten samples.
func trendWorker(samples <-chan perfmon.Sample, m *perfmon.Monitor) {
	n := 0
	for range samples {
		n++
		if n%10 != 0 {
			continue
		}
		tr := m.Trends()
		fmt.Printf("samples=%d rising=%v max_mem_drop=%.1f exceedances=%d\n",
			tr.Samples, tr.CPULoadRising, tr.MaxMemoryDrop, tr.Exceedances)
	}
}
