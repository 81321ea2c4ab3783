package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/alucard017/eMotion-Backend/internal/common/auth"
	"github.com/alucard017/eMotion-Backend/internal/common/httpx"
	"github.com/alucard017/eMotion-Backend/internal/trip/model"
	"github.com/alucard017/eMotion-Backend/internal/trip/service"
)

type TripHandler struct {
	Guard *service.Guard
	Log   *slog.Logger
}

func NewTripHandler(guard *service.Guard, log *slog.Logger) *TripHandler {
	return &TripHandler{Guard: guard, Log: log}
}

func (h *TripHandler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	claims := auth.FromContext(r)
	trip, err := h.Guard.Create(r.Context(), claims.SubjectID, req)
	if err != nil {
		h.writeGuardError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, trip)
}

func (h *TripHandler) AcceptTrip(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r)
	trip, err := h.Guard.Accept(r.Context(), mux.Vars(r)["id"], claims.SubjectID)
	if err != nil {
		h.writeGuardError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, trip)
}

func (h *TripHandler) StartTrip(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r)
	trip, err := h.Guard.Start(r.Context(), mux.Vars(r)["id"], claims.SubjectID)
	if err != nil {
		h.writeGuardError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, trip)
}

func (h *TripHandler) EndTrip(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r)
	trip, err := h.Guard.End(r.Context(), mux.Vars(r)["id"], claims.SubjectID)
	if err != nil {
		h.writeGuardError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, trip)
}

func (h *TripHandler) CancelTrip(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r)
	trip, err := h.Guard.Cancel(r.Context(), mux.Vars(r)["id"], claims.SubjectID)
	if err != nil {
		h.writeGuardError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "trip cancelled successfully",
		"trip":    trip,
	})
}

func (h *TripHandler) GetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := h.Guard.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeGuardError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, trip)
}

// ListTrips is the pull-based catch-up path: a subject that missed realtime
// pushes queries trip history by status.
func (h *TripHandler) ListTrips(w http.ResponseWriter, r *http.Request) {
	status := model.Status(r.URL.Query().Get("status"))
	trips, err := h.Guard.List(r.Context(), status)
	if err != nil {
		h.writeGuardError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"trips": trips})
}

func (h *TripHandler) writeGuardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAlreadyClaimed):
		httpx.WriteError(w, http.StatusConflict, "trip already accepted or unavailable")
	case errors.Is(err, service.ErrInvalidTransition):
		httpx.WriteError(w, http.StatusConflict, "trip is not in a state allowing this transition")
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "trip not found")
	default:
		h.Log.Error("trip operation failed", "error", err.Error())
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
