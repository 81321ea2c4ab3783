package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alucard017/eMotion-Backend/internal/common/config"
	"github.com/alucard017/eMotion-Backend/internal/common/httpx"
	"github.com/alucard017/eMotion-Backend/internal/relay"
)

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	h := relay.NewHandler(relay.NewRegistry(), logger)

	r := mux.NewRouter()
	httpx.Use(r, logger)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", httpx.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/ws", h.HandleWS).Methods(http.MethodGet)
	r.HandleFunc("/notify", h.HandleNotify).Methods(http.MethodPost)

	return httpx.Serve(ctx, logger, cfg.Services.RelayServicePort, r)
}
