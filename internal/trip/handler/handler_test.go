package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/alucard017/eMotion-Backend/internal/common/auth"
	"github.com/alucard017/eMotion-Backend/internal/trip/model"
	"github.com/alucard017/eMotion-Backend/internal/trip/repository"
	"github.com/alucard017/eMotion-Backend/internal/trip/service"
)

// scriptedStore returns canned results so the handler's status mapping can
// be exercised without a database.
type scriptedStore struct {
	trip *model.Trip
	err  error
}

func (s *scriptedStore) Insert(ctx context.Context, t model.Trip) (*model.Trip, error) {
	if s.err != nil {
		return nil, s.err
	}
	t.ID = "t1"
	return &t, nil
}
func (s *scriptedStore) GetByID(ctx context.Context, id string) (*model.Trip, error) {
	return s.result()
}
func (s *scriptedStore) List(ctx context.Context, st model.Status) ([]model.Trip, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.trip == nil {
		return nil, nil
	}
	return []model.Trip{*s.trip}, nil
}
func (s *scriptedStore) Accept(ctx context.Context, id, d string) (*model.Trip, error) {
	return s.result()
}
func (s *scriptedStore) Start(ctx context.Context, id, d string) (*model.Trip, error) {
	return s.result()
}
func (s *scriptedStore) Complete(ctx context.Context, id, d string) (*model.Trip, error) {
	return s.result()
}
func (s *scriptedStore) Cancel(ctx context.Context, id, r string) (*model.Trip, error) {
	return s.result()
}
func (s *scriptedStore) SetPaymentRef(ctx context.Context, id, ref string) error { return nil }
func (s *scriptedStore) PaymentRef(ctx context.Context, id string) (string, error) {
	return "", nil
}

func (s *scriptedStore) result() (*model.Trip, error) {
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.trip
	return &cp, nil
}

type nopBus struct{}

func (nopBus) Publish(ctx context.Context, queue string, payload []byte) error { return nil }

func newServer(t *testing.T, store service.TripStore) (*httptest.Server, *auth.Verifier) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard := service.NewGuard(store, nopBus{}, nil, nil, nil, log)
	verifier := auth.NewVerifier("test-secret")
	r := mux.NewRouter()
	SetupRoutes(r, NewTripHandler(guard, log), verifier)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, verifier
}

func do(t *testing.T, srv *httptest.Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, _ := http.NewRequest(method, srv.URL+path, &buf)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCreateTrip(t *testing.T) {
	srv, verifier := newServer(t, &scriptedStore{})
	token, _ := verifier.GenerateToken("r1", auth.RoleRider)

	resp := do(t, srv, http.MethodPost, "/trips", token,
		map[string]any{"pickup": "A", "destination": "B", "fare": 10})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var trip model.EnrichedTrip
	if err := json.NewDecoder(resp.Body).Decode(&trip); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if trip.RiderID != "r1" || trip.Status != model.StatusRequested {
		t.Fatalf("trip = %+v", trip)
	}
}

func TestCreateTripRejectsDrivers(t *testing.T) {
	srv, verifier := newServer(t, &scriptedStore{})
	token, _ := verifier.GenerateToken("d1", auth.RoleDriver)

	resp := do(t, srv, http.MethodPost, "/trips", token,
		map[string]any{"pickup": "A", "destination": "B"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestCreateTripRequiresToken(t *testing.T) {
	srv, _ := newServer(t, &scriptedStore{})
	resp := do(t, srv, http.MethodPost, "/trips", "",
		map[string]any{"pickup": "A", "destination": "B"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestCreateTripValidation(t *testing.T) {
	srv, verifier := newServer(t, &scriptedStore{})
	token, _ := verifier.GenerateToken("r1", auth.RoleRider)

	resp := do(t, srv, http.MethodPost, "/trips", token,
		map[string]any{"pickup": "", "destination": "B"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAcceptLostRaceMapsToConflict(t *testing.T) {
	srv, verifier := newServer(t, &scriptedStore{err: repository.ErrPreconditionFailed})
	token, _ := verifier.GenerateToken("d1", auth.RoleDriver)

	resp := do(t, srv, http.MethodPost, "/trips/t1/accept", token, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestStartInvalidTransitionMapsToConflict(t *testing.T) {
	srv, verifier := newServer(t, &scriptedStore{err: repository.ErrPreconditionFailed})
	token, _ := verifier.GenerateToken("d1", auth.RoleDriver)

	resp := do(t, srv, http.MethodPost, "/trips/t1/start", token, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestAcceptSuccess(t *testing.T) {
	store := &scriptedStore{trip: &model.Trip{
		ID: "t1", RiderID: "r1", DriverID: "d1", Status: model.StatusAccepted,
	}}
	srv, verifier := newServer(t, store)
	token, _ := verifier.GenerateToken("d1", auth.RoleDriver)

	resp := do(t, srv, http.MethodPost, "/trips/t1/accept", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var trip model.EnrichedTrip
	if err := json.NewDecoder(resp.Body).Decode(&trip); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if trip.DriverID != "d1" || trip.Status != model.StatusAccepted {
		t.Fatalf("trip = %+v", trip)
	}
}

func TestCancelRequiresRiderRole(t *testing.T) {
	srv, verifier := newServer(t, &scriptedStore{})
	token, _ := verifier.GenerateToken("d1", auth.RoleDriver)

	resp := do(t, srv, http.MethodPost, "/trips/t1/cancel", token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestGetTripNotFound(t *testing.T) {
	srv, verifier := newServer(t, &scriptedStore{err: repository.ErrPreconditionFailed})
	token, _ := verifier.GenerateToken("r1", auth.RoleRider)

	resp := do(t, srv, http.MethodGet, "/trips/ghost", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListTripsByStatus(t *testing.T) {
	store := &scriptedStore{trip: &model.Trip{ID: "t1", RiderID: "r1", Status: model.StatusRequested}}
	srv, verifier := newServer(t, store)
	token, _ := verifier.GenerateToken("d1", auth.RoleDriver)

	resp := do(t, srv, http.MethodGet, "/trips?status=requested", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Trips []model.EnrichedTrip `json:"trips"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Trips) != 1 || body.Trips[0].ID != "t1" {
		t.Fatalf("trips = %+v", body.Trips)
	}

	resp = do(t, srv, http.MethodGet, "/trips?status=bogus", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bogus status filter: %d, want 400", resp.StatusCode)
	}
}
