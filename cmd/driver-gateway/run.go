package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alucard017/eMotion-Backend/internal/bus"
	"github.com/alucard017/eMotion-Backend/internal/common/auth"
	"github.com/alucard017/eMotion-Backend/internal/common/config"
	"github.com/alucard017/eMotion-Backend/internal/common/httpx"
	"github.com/alucard017/eMotion-Backend/internal/driverhub"
	"github.com/alucard017/eMotion-Backend/internal/longpoll"
)

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	waits := longpoll.NewRegistry(cfg.WaitTimeout)

	avail := driverhub.NewAvailability(cfg.Redis.Addr, cfg.Redis.Password)
	defer avail.Close()

	busClient := bus.NewClient(cfg.AMQPURL(), logger)
	defer busClient.Close()
	if err := busClient.Subscribe(bus.QueueTripOffer, driverhub.NewOfferConsumer(waits, logger)); err != nil {
		return fmt.Errorf("subscribe %s: %w", bus.QueueTripOffer, err)
	}

	r := mux.NewRouter()
	httpx.Use(r, logger)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", httpx.Healthz).Methods(http.MethodGet)
	driverhub.SetupRoutes(r, driverhub.NewHandler(waits, avail, logger), auth.NewVerifier(cfg.JWTSecret))

	return httpx.Serve(ctx, logger, cfg.Services.DriverGatewayPort, r)
}
