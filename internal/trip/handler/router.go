package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/alucard017/eMotion-Backend/internal/common/auth"
)

func SetupRoutes(r *mux.Router, h *TripHandler, verifier *auth.Verifier) {
	api := r.PathPrefix("/trips").Subrouter()
	api.Use(verifier.Middleware)

	api.HandleFunc("", auth.RequireRole(auth.RoleRider, h.CreateTrip)).Methods(http.MethodPost)
	api.HandleFunc("", h.ListTrips).Methods(http.MethodGet)
	api.HandleFunc("/{id}", h.GetTrip).Methods(http.MethodGet)
	api.HandleFunc("/{id}/accept", auth.RequireRole(auth.RoleDriver, h.AcceptTrip)).Methods(http.MethodPost)
	api.HandleFunc("/{id}/start", auth.RequireRole(auth.RoleDriver, h.StartTrip)).Methods(http.MethodPost)
	api.HandleFunc("/{id}/end", auth.RequireRole(auth.RoleDriver, h.EndTrip)).Methods(http.MethodPost)
	api.HandleFunc("/{id}/cancel", auth.RequireRole(auth.RoleRider, h.CancelTrip)).Methods(http.MethodPost)
}
