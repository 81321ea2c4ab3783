package driverhub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alucard017/eMotion-Backend/internal/bus"
	"github.com/alucard017/eMotion-Backend/internal/longpoll"
	"github.com/alucard017/eMotion-Backend/internal/trip/model"
)

// OfferConsumer bridges the trip-offer queue to pending long-poll waits. An
// offer naming a driver resolves only that driver's wait; an unaddressed
// offer resolves every pending wait. A driver not currently waiting simply
// misses the offer and catches up through trip history.
type OfferConsumer struct {
	Waits *longpoll.Registry
	Log   *slog.Logger
}

func NewOfferConsumer(waits *longpoll.Registry, log *slog.Logger) *OfferConsumer {
	return &OfferConsumer{Waits: waits, Log: log}
}

func (c *OfferConsumer) HandleMessage(ctx context.Context, body []byte) error {
	var offer model.Offer
	if err := json.Unmarshal(body, &offer); err != nil {
		return fmt.Errorf("failed to unmarshal offer: %w", bus.ErrBadMessage)
	}

	payload, err := json.Marshal(offer.Trip)
	if err != nil {
		return fmt.Errorf("failed to marshal offer trip: %w", bus.ErrBadMessage)
	}

	if offer.DriverID != "" {
		if c.Waits.Resolve(offer.DriverID, payload) {
			c.Log.Info("offer delivered to waiting driver", "trip_id", offer.Trip.ID, "driver_id", offer.DriverID)
		} else {
			c.Log.Debug("offered driver not waiting", "trip_id", offer.Trip.ID, "driver_id", offer.DriverID)
		}
		return nil
	}

	n := c.Waits.ResolveAll(payload)
	c.Log.Info("offer broadcast to waiting drivers", "trip_id", offer.Trip.ID, "resolved", n)
	return nil
}
