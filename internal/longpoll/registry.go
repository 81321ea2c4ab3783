package longpoll

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/alucard017/eMotion-Backend/internal/observability"
)

// Registry holds at most one pending single-shot wait per key. Exactly one
// of three paths resolves each entry: a matching event, the deadline, or the
// caller disconnecting. Whichever path claims the entry first wins; the map
// delete under the lock is the claim, so the other paths observe the entry
// gone and no-op.
type Registry struct {
	timeout time.Duration

	mu    sync.Mutex
	waits map[string]*waiter
}

type waiter struct {
	ch chan json.RawMessage // buffered; the claimer sends exactly once
}

func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		timeout: timeout,
		waits:   make(map[string]*waiter),
	}
}

// Wait blocks until the key is resolved, the deadline elapses, or ctx is
// done. ok is true only when a payload arrived. A wait already pending for
// the same key is resolved empty before the new one is installed, so no
// responder handle leaks.
func (r *Registry) Wait(ctx context.Context, key string) (payload json.RawMessage, ok bool) {
	w := &waiter{ch: make(chan json.RawMessage, 1)}

	r.mu.Lock()
	if old := r.waits[key]; old != nil {
		old.ch <- nil
		observability.WaitsResolved.WithLabelValues("replaced").Inc()
	}
	r.waits[key] = w
	observability.WaitsPending.Inc()
	r.mu.Unlock()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case p := <-w.ch:
		observability.WaitsPending.Dec()
		return p, p != nil

	case <-timer.C:
		if r.claim(key, w) {
			observability.WaitsResolved.WithLabelValues("timeout").Inc()
			observability.WaitsPending.Dec()
			return nil, false
		}
		// A resolver won the race; its payload is already buffered.
		p := <-w.ch
		observability.WaitsPending.Dec()
		return p, p != nil

	case <-ctx.Done():
		if !r.claim(key, w) {
			// Entry already resolved; the caller is gone, drop the payload.
			<-w.ch
		} else {
			observability.WaitsResolved.WithLabelValues("disconnect").Inc()
		}
		observability.WaitsPending.Dec()
		return nil, false
	}
}

// Resolve delivers payload to the pending wait for key, if any. Returns
// whether a waiter was resolved.
func (r *Registry) Resolve(key string, payload json.RawMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.waits[key]
	if w == nil {
		return false
	}
	delete(r.waits, key)
	w.ch <- payload
	observability.WaitsResolved.WithLabelValues("event").Inc()
	return true
}

// ResolveAll delivers payload to every pending wait and reports how many
// were resolved. Used for offers not addressed to a specific driver.
func (r *Registry) ResolveAll(payload json.RawMessage) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for key, w := range r.waits {
		delete(r.waits, key)
		w.ch <- payload
		observability.WaitsResolved.WithLabelValues("event").Inc()
		n++
	}
	return n
}

// Pending reports whether a wait is currently registered for key.
func (r *Registry) Pending(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waits[key] != nil
}

func (r *Registry) claim(key string, w *waiter) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waits[key] != w {
		return false
	}
	delete(r.waits, key)
	return true
}
