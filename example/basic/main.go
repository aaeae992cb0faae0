package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/perfmon"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := perfmon.Run(ctx, "../../configs/perfmon.yaml"); err != nil && err != context.Canceled {
		log.Fatalf("monitor exited: %v", err)
	}
}
