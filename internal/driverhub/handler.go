package driverhub

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/alucard017/eMotion-Backend/internal/common/auth"
	"github.com/alucard017/eMotion-Backend/internal/common/httpx"
	"github.com/alucard017/eMotion-Backend/internal/longpoll"
)

type Handler struct {
	Waits *longpoll.Registry
	Avail *Availability
	Log   *slog.Logger
}

func NewHandler(waits *longpoll.Registry, avail *Availability, log *slog.Logger) *Handler {
	return &Handler{Waits: waits, Avail: avail, Log: log}
}

// HandleWait parks the driver until the next offer or the deadline. 200
// carries the offered trip; 204 means nothing arrived in time and the
// driver should poll again.
func (h *Handler) HandleWait(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r)

	payload, ok := h.Waits.Wait(r.Context(), claims.SubjectID)
	if r.Context().Err() != nil {
		// Caller disconnected; the connection is gone, nothing to write.
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func (h *Handler) HandleSetAvailability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Available bool `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	claims := auth.FromContext(r)
	if err := h.Avail.Set(r.Context(), claims.SubjectID, req.Available); err != nil {
		h.Log.Error("availability update failed", "driver_id", claims.SubjectID, "error", err.Error())
		httpx.WriteError(w, http.StatusBadGateway, "availability store unavailable")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"driver_id": claims.SubjectID,
		"available": req.Available,
	})
}

func (h *Handler) HandleListAvailable(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.Avail.List(r.Context())
	if err != nil {
		h.Log.Error("availability list failed", "error", err.Error())
		httpx.WriteError(w, http.StatusBadGateway, "availability store unavailable")
		return
	}
	if drivers == nil {
		drivers = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"drivers": drivers})
}

func SetupRoutes(r *mux.Router, h *Handler, verifier *auth.Verifier) {
	api := r.PathPrefix("/drivers").Subrouter()
	api.Use(verifier.Middleware)

	api.HandleFunc("/wait", auth.RequireRole(auth.RoleDriver, h.HandleWait)).Methods(http.MethodPost)
	api.HandleFunc("/availability", auth.RequireRole(auth.RoleDriver, h.HandleSetAvailability)).Methods(http.MethodPost)
	api.HandleFunc("/available", h.HandleListAvailable).Methods(http.MethodGet)
}
