package relay

import (
	"encoding/json"
	"sync"

	"github.com/alucard017/eMotion-Backend/internal/common/auth"
	"github.com/alucard017/eMotion-Backend/internal/observability"
)

// Roles is the fixed role set a connection may register under.
var Roles = []string{auth.RoleRider, auth.RoleDriver}

// Frame is the fire-and-forget push envelope. No acknowledgment, no replay.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Transport is one live realtime connection.
type Transport interface {
	Send(f Frame) error
	CloseWithReason(code int, reason string) error
}

type key struct {
	subjectID string
	role      string
}

// Registry tracks at most one live transport per (subject, role). All map
// mutation happens under one lock so check-then-act sequences (evict old,
// install new) are atomic as a whole.
type Registry struct {
	mu      sync.Mutex
	entries map[key]Transport
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[key]Transport)}
}

// Register installs t for (subjectID, role) and returns the transport it
// replaced, if any. The caller closes the evicted transport outside the
// lock; its later close-path removal will no-op because the entry no longer
// refers to it.
func (r *Registry) Register(subjectID, role string, t Transport) Transport {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{subjectID, role}
	old := r.entries[k]
	r.entries[k] = t
	if old == nil {
		observability.ConnectionsOpen.WithLabelValues(role).Inc()
	}
	return old
}

// Remove deletes the entry iff it still refers to t. An entry superseded by
// a newer connection stays untouched.
func (r *Registry) Remove(subjectID, role string, t Transport) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{subjectID, role}
	if r.entries[k] != t {
		return false
	}
	delete(r.entries, k)
	observability.ConnectionsOpen.WithLabelValues(role).Dec()
	return true
}

// Push delivers the frame to (subjectID, role), or to every role in the
// fixed set when role is empty, and reports which roles were reached. A
// failed write counts as unreachable; the frame is simply dropped.
func (r *Registry) Push(subjectID, role, event string, data json.RawMessage) []string {
	roles := Roles
	if role != "" {
		roles = []string{role}
	}

	var delivered []string
	for _, rl := range roles {
		r.mu.Lock()
		t := r.entries[key{subjectID, rl}]
		r.mu.Unlock()
		if t == nil {
			continue
		}
		if err := t.Send(Frame{Event: event, Data: data}); err != nil {
			observability.PushesTotal.WithLabelValues("send_error").Inc()
			continue
		}
		delivered = append(delivered, rl)
	}

	if len(delivered) == 0 {
		observability.PushesTotal.WithLabelValues("miss").Inc()
	} else {
		observability.PushesTotal.WithLabelValues("ok").Inc()
	}
	return delivered
}

// Len reports the number of live entries, for tests and health reporting.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
