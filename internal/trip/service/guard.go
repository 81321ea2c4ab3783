package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/alucard017/eMotion-Backend/internal/bus"
	"github.com/alucard017/eMotion-Backend/internal/common/auth"
	"github.com/alucard017/eMotion-Backend/internal/notify"
	"github.com/alucard017/eMotion-Backend/internal/observability"
	"github.com/alucard017/eMotion-Backend/internal/profile"
	"github.com/alucard017/eMotion-Backend/internal/trip/model"
	"github.com/alucard017/eMotion-Backend/internal/trip/payments"
	"github.com/alucard017/eMotion-Backend/internal/trip/repository"
)

var (
	// ErrAlreadyClaimed is the accept-race outcome: another driver won, the
	// trip progressed, or it never existed. Expected under load, mapped to
	// 409, never treated as a fault.
	ErrAlreadyClaimed = errors.New("trip already claimed or unavailable")

	// ErrInvalidTransition covers every other failed precondition: wrong
	// current status, or a driver/rider who does not own the trip.
	ErrInvalidTransition = errors.New("invalid trip transition")

	// ErrNotFound reports a lookup for a trip that does not exist.
	ErrNotFound = errors.New("trip not found")

	ErrValidation = errors.New("invalid input")
)

// TripStore is the conditional-update document store the guard runs on.
type TripStore interface {
	Insert(ctx context.Context, t model.Trip) (*model.Trip, error)
	GetByID(ctx context.Context, tripID string) (*model.Trip, error)
	List(ctx context.Context, status model.Status) ([]model.Trip, error)
	Accept(ctx context.Context, tripID, driverID string) (*model.Trip, error)
	Start(ctx context.Context, tripID, driverID string) (*model.Trip, error)
	Complete(ctx context.Context, tripID, driverID string) (*model.Trip, error)
	Cancel(ctx context.Context, tripID, riderID string) (*model.Trip, error)
	SetPaymentRef(ctx context.Context, tripID, ref string) error
	PaymentRef(ctx context.Context, tripID string) (string, error)
}

// Publisher is the slice of the bus client the guard needs.
type Publisher interface {
	Publish(ctx context.Context, queue string, payload []byte) error
}

// Guard enforces the trip lifecycle: requested → accepted → started →
// completed, with requested → cancelled the only other edge. Correctness
// under concurrency is delegated entirely to the store's conditional
// updates; the guard holds no locks. Every successful transition publishes
// the corresponding event and pushes a best-effort realtime notice; neither
// outcome rolls back the transition.
type Guard struct {
	store    TripStore
	bus      Publisher
	notifier notify.Notifier
	profiles profile.Directory
	payments payments.Processor
	log      *slog.Logger
}

func NewGuard(store TripStore, publisher Publisher, notifier notify.Notifier,
	profiles profile.Directory, processor payments.Processor, log *slog.Logger) *Guard {
	return &Guard{
		store:    store,
		bus:      publisher,
		notifier: notifier,
		profiles: profiles,
		payments: processor,
		log:      log,
	}
}

type CreateRequest struct {
	Pickup      string  `json:"pickup"`
	Destination string  `json:"destination"`
	Fare        float64 `json:"fare"`
	DriverID    string  `json:"driverId,omitempty"` // preferred driver for the offer
}

func (g *Guard) Create(ctx context.Context, riderID string, req CreateRequest) (*model.EnrichedTrip, error) {
	if riderID == "" {
		return nil, fmt.Errorf("%w: rider id required", ErrValidation)
	}
	if req.Pickup == "" || req.Destination == "" {
		return nil, fmt.Errorf("%w: pickup and destination are required", ErrValidation)
	}
	if req.Fare < 0 {
		return nil, fmt.Errorf("%w: fare must not be negative", ErrValidation)
	}

	created, err := g.store.Insert(ctx, model.Trip{
		RiderID:     riderID,
		Pickup:      req.Pickup,
		Destination: req.Destination,
		Fare:        req.Fare,
		Status:      model.StatusRequested,
	})
	if err != nil {
		observability.TransitionsTotal.WithLabelValues("create", "error").Inc()
		return nil, err
	}
	observability.TransitionsTotal.WithLabelValues("create", "ok").Inc()

	enriched := g.enrich(ctx, created)
	g.publishEvent(ctx, bus.QueueTripCreated, enriched)
	g.publishOffer(ctx, req.DriverID, enriched)
	g.push(ctx, created.RiderID, auth.RoleRider, bus.QueueTripCreated, enriched)

	return enriched, nil
}

// Accept claims the trip for driverID. Exactly one of any number of
// concurrent accepts succeeds; the rest get ErrAlreadyClaimed.
func (g *Guard) Accept(ctx context.Context, tripID, driverID string) (*model.EnrichedTrip, error) {
	if tripID == "" {
		return nil, fmt.Errorf("%w: trip id required", ErrValidation)
	}

	updated, err := g.store.Accept(ctx, tripID, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			observability.TransitionsTotal.WithLabelValues("accept", "conflict").Inc()
			return nil, ErrAlreadyClaimed
		}
		observability.TransitionsTotal.WithLabelValues("accept", "error").Inc()
		return nil, err
	}
	observability.TransitionsTotal.WithLabelValues("accept", "ok").Inc()

	g.holdFare(ctx, updated)

	enriched := g.enrich(ctx, updated)
	g.publishEvent(ctx, bus.QueueTripAccepted, enriched)
	g.push(ctx, updated.RiderID, auth.RoleRider, bus.QueueTripAccepted, enriched)

	return enriched, nil
}

func (g *Guard) Start(ctx context.Context, tripID, driverID string) (*model.EnrichedTrip, error) {
	if tripID == "" {
		return nil, fmt.Errorf("%w: trip id required", ErrValidation)
	}

	updated, err := g.store.Start(ctx, tripID, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			observability.TransitionsTotal.WithLabelValues("start", "conflict").Inc()
			return nil, ErrInvalidTransition
		}
		observability.TransitionsTotal.WithLabelValues("start", "error").Inc()
		return nil, err
	}
	observability.TransitionsTotal.WithLabelValues("start", "ok").Inc()

	enriched := g.enrich(ctx, updated)
	g.publishEvent(ctx, bus.QueueTripStarted, enriched)
	g.push(ctx, updated.RiderID, auth.RoleRider, bus.QueueTripStarted, enriched)

	return enriched, nil
}

func (g *Guard) End(ctx context.Context, tripID, driverID string) (*model.EnrichedTrip, error) {
	if tripID == "" {
		return nil, fmt.Errorf("%w: trip id required", ErrValidation)
	}

	updated, err := g.store.Complete(ctx, tripID, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			observability.TransitionsTotal.WithLabelValues("end", "conflict").Inc()
			return nil, ErrInvalidTransition
		}
		observability.TransitionsTotal.WithLabelValues("end", "error").Inc()
		return nil, err
	}
	observability.TransitionsTotal.WithLabelValues("end", "ok").Inc()

	g.captureFare(ctx, updated)

	enriched := g.enrich(ctx, updated)
	g.publishEvent(ctx, bus.QueueTripCompleted, enriched)
	g.push(ctx, updated.RiderID, auth.RoleRider, bus.QueueTripCompleted, enriched)

	return enriched, nil
}

// Cancel is allowed only while the trip is still requested and only by the
// owning rider. The trip row is never deleted.
func (g *Guard) Cancel(ctx context.Context, tripID, riderID string) (*model.EnrichedTrip, error) {
	if tripID == "" {
		return nil, fmt.Errorf("%w: trip id required", ErrValidation)
	}

	updated, err := g.store.Cancel(ctx, tripID, riderID)
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			observability.TransitionsTotal.WithLabelValues("cancel", "conflict").Inc()
			return nil, ErrInvalidTransition
		}
		observability.TransitionsTotal.WithLabelValues("cancel", "error").Inc()
		return nil, err
	}
	observability.TransitionsTotal.WithLabelValues("cancel", "ok").Inc()

	enriched := g.enrich(ctx, updated)
	g.publishEvent(ctx, bus.QueueTripCancelled, enriched)
	g.push(ctx, updated.RiderID, auth.RoleRider, bus.QueueTripCancelled, enriched)

	return enriched, nil
}

func (g *Guard) Get(ctx context.Context, tripID string) (*model.EnrichedTrip, error) {
	t, err := g.store.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return g.enrich(ctx, t), nil
}

func (g *Guard) List(ctx context.Context, status model.Status) ([]model.EnrichedTrip, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	trips, err := g.store.List(ctx, status)
	if err != nil {
		return nil, err
	}
	out := make([]model.EnrichedTrip, 0, len(trips))
	for i := range trips {
		out = append(out, *g.enrich(ctx, &trips[i]))
	}
	return out, nil
}

// enrich decorates the trip with rider/driver details. Lookup failures are
// logged and leave the field nil; the record itself is always returned.
func (g *Guard) enrich(ctx context.Context, t *model.Trip) *model.EnrichedTrip {
	e := &model.EnrichedTrip{Trip: *t}
	if g.profiles == nil {
		return e
	}

	if rider, err := g.profiles.Rider(ctx, t.RiderID); err != nil {
		g.log.Warn("rider lookup failed", "trip_id", t.ID, "rider_id", t.RiderID, "error", err.Error())
	} else {
		e.Rider = rider
	}

	if t.DriverID != "" {
		if driver, err := g.profiles.Driver(ctx, t.DriverID); err != nil {
			g.log.Warn("driver lookup failed", "trip_id", t.ID, "driver_id", t.DriverID, "error", err.Error())
		} else {
			e.Driver = driver
		}
	}
	return e
}

// publishEvent broadcasts the transition on the bus. The transition already
// committed; a publish failure is logged and surfaced nowhere else.
func (g *Guard) publishEvent(ctx context.Context, queue string, enriched *model.EnrichedTrip) {
	body, err := json.Marshal(enriched)
	if err != nil {
		g.log.Error("failed to marshal event", "queue", queue, "trip_id", enriched.ID, "error", err.Error())
		return
	}
	if err := g.bus.Publish(ctx, queue, body); err != nil {
		g.log.Warn("event publish failed", "queue", queue, "trip_id", enriched.ID, "error", err.Error())
	}
}

func (g *Guard) publishOffer(ctx context.Context, driverID string, enriched *model.EnrichedTrip) {
	body, err := json.Marshal(model.Offer{DriverID: driverID, Trip: *enriched})
	if err != nil {
		g.log.Error("failed to marshal offer", "trip_id", enriched.ID, "error", err.Error())
		return
	}
	if err := g.bus.Publish(ctx, bus.QueueTripOffer, body); err != nil {
		g.log.Warn("offer publish failed", "trip_id", enriched.ID, "error", err.Error())
	}
}

func (g *Guard) push(ctx context.Context, subjectID, role, event string, enriched *model.EnrichedTrip) {
	if g.notifier == nil {
		return
	}
	g.notifier.Notify(ctx, notify.Request{
		SubjectID: subjectID,
		Role:      role,
		Event:     event,
		Data:      map[string]any{"trip": enriched},
	})
}

func (g *Guard) holdFare(ctx context.Context, t *model.Trip) {
	if g.payments == nil || t.Fare <= 0 {
		return
	}
	ref, err := g.payments.Hold(ctx, int64(math.Round(t.Fare*100)), "usd")
	if err != nil {
		g.log.Warn("fare hold failed", "trip_id", t.ID, "error", err.Error())
		return
	}
	if err := g.store.SetPaymentRef(ctx, t.ID, ref); err != nil {
		g.log.Warn("failed to record payment ref", "trip_id", t.ID, "error", err.Error())
	}
}

func (g *Guard) captureFare(ctx context.Context, t *model.Trip) {
	if g.payments == nil {
		return
	}
	ref, err := g.store.PaymentRef(ctx, t.ID)
	if err != nil || ref == "" {
		return
	}
	if err := g.payments.Capture(ctx, ref); err != nil {
		g.log.Warn("fare capture failed", "trip_id", t.ID, "ref", ref, "error", err.Error())
	}
}
