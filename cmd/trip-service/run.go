package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alucard017/eMotion-Backend/internal/bus"
	"github.com/alucard017/eMotion-Backend/internal/common/auth"
	"github.com/alucard017/eMotion-Backend/internal/common/config"
	"github.com/alucard017/eMotion-Backend/internal/common/db"
	"github.com/alucard017/eMotion-Backend/internal/common/httpx"
	"github.com/alucard017/eMotion-Backend/internal/notify"
	"github.com/alucard017/eMotion-Backend/internal/profile"
	"github.com/alucard017/eMotion-Backend/internal/trip/handler"
	"github.com/alucard017/eMotion-Backend/internal/trip/payments"
	"github.com/alucard017/eMotion-Backend/internal/trip/repository"
	"github.com/alucard017/eMotion-Backend/internal/trip/service"
)

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pg, err := db.NewPostgres(ctx, cfg.PostgresDSN(), logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.RunMigrations {
		if err := pg.RunMigrations(ctx, "migrations"); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// The broker connection is established on first publish, so a late
	// RabbitMQ does not block startup.
	busClient := bus.NewClient(cfg.AMQPURL(), logger)
	defer busClient.Close()

	var processor payments.Processor
	if os.Getenv("STRIPE_API_KEY") != "" {
		processor = payments.NewStripeProcessor()
	} else {
		logger.Warn("STRIPE_API_KEY not set, fare holds disabled")
	}

	guard := service.NewGuard(
		repository.NewTripRepository(pg.Pool),
		busClient,
		notify.NewClient(cfg.RelayURL, logger),
		profile.NewHTTPDirectory(cfg.RiderProfileURL, cfg.DriverProfileURL),
		processor,
		logger,
	)

	r := mux.NewRouter()
	httpx.Use(r, logger)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", httpx.Healthz).Methods(http.MethodGet)
	handler.SetupRoutes(r, handler.NewTripHandler(guard, logger), auth.NewVerifier(cfg.JWTSecret))

	return httpx.Serve(ctx, logger, cfg.Services.TripServicePort, r)
}
