package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/alucard017/eMotion-Backend/internal/common/httpx"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	Registry *Registry
	Log      *slog.Logger
}

func NewHandler(registry *Registry, log *slog.Logger) *Handler {
	return &Handler{Registry: registry, Log: log}
}

// HandleWS upgrades the connection and registers it under (subjectId, role)
// from the query string. A handshake missing either, or naming an unknown
// role, is closed immediately with a policy violation.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	subjectID := r.URL.Query().Get("subjectId")
	role := r.URL.Query().Get("role")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Error("ws upgrade failed", "error", err.Error())
		return
	}
	t := newWSTransport(conn)

	if subjectID == "" || !validRole(role) {
		h.Log.Warn("ws handshake rejected", "subject_id", subjectID, "role", role)
		t.CloseWithReason(websocket.ClosePolicyViolation, "missing or invalid subjectId or role")
		return
	}

	if old := h.Registry.Register(subjectID, role, t); old != nil {
		h.Log.Info("superseding existing connection", "subject_id", subjectID, "role", role)
		old.CloseWithReason(websocket.CloseNormalClosure, "superseded")
	}
	h.Log.Info("ws connected", "subject_id", subjectID, "role", role)

	// Read loop only notices the peer going away; inbound frames carry no
	// meaning on this channel.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	if h.Registry.Remove(subjectID, role, t) {
		h.Log.Info("ws disconnected", "subject_id", subjectID, "role", role)
	}
	conn.Close()
}

type notifyRequest struct {
	SubjectID string          `json:"subjectId"`
	Role      string          `json:"role"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
}

// HandleNotify is the push ingress. 200 reports which roles were reached;
// 404 means no live connection under any targeted role.
func (h *Handler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SubjectID == "" || req.Event == "" {
		httpx.WriteError(w, http.StatusBadRequest, "subjectId and event are required")
		return
	}
	if req.Role != "" && !validRole(req.Role) {
		httpx.WriteError(w, http.StatusBadRequest, "unknown role")
		return
	}

	delivered := h.Registry.Push(req.SubjectID, req.Role, req.Event, req.Data)
	if len(delivered) == 0 {
		httpx.WriteError(w, http.StatusNotFound, "subject not connected on any targeted role")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "event delivered",
		"roles":   delivered,
	})
}

func validRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}
