package driverhub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/alucard017/eMotion-Backend/internal/bus"
	"github.com/alucard017/eMotion-Backend/internal/common/auth"
	"github.com/alucard017/eMotion-Backend/internal/longpoll"
	"github.com/alucard017/eMotion-Backend/internal/trip/model"
)

func newTestServer(t *testing.T, timeout time.Duration) (*httptest.Server, *longpoll.Registry, *auth.Verifier) {
	t.Helper()
	waits := longpoll.NewRegistry(timeout)
	verifier := auth.NewVerifier("test-secret")
	h := NewHandler(waits, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := mux.NewRouter()
	SetupRoutes(r, h, verifier)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, waits, verifier
}

func doWait(srv *httptest.Server, token string) (*http.Response, error) {
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/drivers/wait", bytes.NewReader(nil))
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	return srv.Client().Do(req)
}

func TestWaitResolvedByTargetedOffer(t *testing.T) {
	srv, waits, verifier := newTestServer(t, 5*time.Second)
	token, err := verifier.GenerateToken("d1", auth.RoleDriver)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	respCh := make(chan *http.Response, 1)
	go func() {
		resp, err := doWait(srv, token)
		if err != nil {
			t.Error(err)
		}
		respCh <- resp
	}()

	waitPending(t, waits, "d1")

	consumer := NewOfferConsumer(waits, slog.New(slog.NewTextHandler(io.Discard, nil)))
	offer, _ := json.Marshal(model.Offer{
		DriverID: "d1",
		Trip:     model.EnrichedTrip{Trip: model.Trip{ID: "t1", Status: model.StatusRequested}},
	})
	if err := consumer.HandleMessage(context.Background(), offer); err != nil {
		t.Fatalf("consume: %v", err)
	}

	resp := <-respCh
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	var trip model.EnrichedTrip
	if err := json.Unmarshal(body, &trip); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if trip.ID != "t1" {
		t.Fatalf("trip = %+v", trip)
	}
}

func TestWaitTimesOutWithNoContent(t *testing.T) {
	srv, waits, verifier := newTestServer(t, 50*time.Millisecond)
	token, _ := verifier.GenerateToken("d1", auth.RoleDriver)

	resp, err := doWait(srv, token)
	if err != nil {
		t.Fatalf("wait request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if waits.Pending("d1") {
		t.Fatal("registry must not hold the key after timeout")
	}
}

func TestWaitRequiresDriverRole(t *testing.T) {
	srv, _, verifier := newTestServer(t, time.Second)

	resp, err := doWait(srv, "")
	if err != nil {
		t.Fatalf("wait request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", resp.StatusCode)
	}

	riderToken, _ := verifier.GenerateToken("u1", auth.RoleRider)
	resp, err = doWait(srv, riderToken)
	if err != nil {
		t.Fatalf("wait request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("rider token: status = %d", resp.StatusCode)
	}
}

func TestBroadcastOfferResolvesWait(t *testing.T) {
	srv, waits, verifier := newTestServer(t, 5*time.Second)
	token, _ := verifier.GenerateToken("d2", auth.RoleDriver)

	respCh := make(chan *http.Response, 1)
	go func() {
		resp, err := doWait(srv, token)
		if err != nil {
			t.Error(err)
		}
		respCh <- resp
	}()
	waitPending(t, waits, "d2")

	consumer := NewOfferConsumer(waits, slog.New(slog.NewTextHandler(io.Discard, nil)))
	offer, _ := json.Marshal(model.Offer{
		Trip: model.EnrichedTrip{Trip: model.Trip{ID: "t2"}},
	})
	if err := consumer.HandleMessage(context.Background(), offer); err != nil {
		t.Fatalf("consume: %v", err)
	}

	resp := <-respCh
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestConsumerRejectsMalformedOffer(t *testing.T) {
	consumer := NewOfferConsumer(longpoll.NewRegistry(time.Second), slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := consumer.HandleMessage(context.Background(), []byte("not json"))
	if !errors.Is(err, bus.ErrBadMessage) {
		t.Fatalf("expected bad-message error, got %v", err)
	}
}

func waitPending(t *testing.T, waits *longpoll.Registry, key string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if waits.Pending(key) {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("wait for %s never registered", key)
}
