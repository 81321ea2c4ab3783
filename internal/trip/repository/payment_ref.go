package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SetPaymentRef records the payment hold created when a driver claimed the
// trip.
func (r *TripRepository) SetPaymentRef(ctx context.Context, tripID, ref string) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE trips SET payment_ref = $1, updated_at = NOW() WHERE id = $2`, ref, tripID)
	if err != nil {
		return fmt.Errorf("failed to set payment ref: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("trip %s: %w", tripID, ErrPreconditionFailed)
	}
	return nil
}

func (r *TripRepository) PaymentRef(ctx context.Context, tripID string) (string, error) {
	var ref string
	err := r.DB.QueryRow(ctx,
		`SELECT COALESCE(payment_ref, '') FROM trips WHERE id = $1`, tripID).Scan(&ref)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("trip %s: %w", tripID, ErrPreconditionFailed)
		}
		return "", fmt.Errorf("failed to get payment ref: %w", err)
	}
	return ref, nil
}
