package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alucard017/eMotion-Backend/internal/common/config"
	"github.com/alucard017/eMotion-Backend/internal/common/logging"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.NewLogger("relay-service", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("relay service exited", "error", err.Error())
		os.Exit(1)
	}
}
