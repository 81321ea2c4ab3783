package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alucard017/eMotion-Backend/internal/trip/model"
)

// ErrPreconditionFailed reports that a conditional update matched no row:
// the trip does not exist or its current status/ownership differs from the
// expected precondition. The losing side of every race observes this.
var ErrPreconditionFailed = errors.New("trip precondition failed")

const tripColumns = `id, rider_id, COALESCE(driver_id, ''), pickup, destination, fare, status, created_at, updated_at, completed_at`

// TripRepository persists trips in postgres. Every lifecycle transition is a
// single conditional UPDATE; the database's row-level atomicity is the only
// serialization point needed, so exactly one concurrent caller can satisfy
// the status precondition for a given trip.
type TripRepository struct {
	DB *pgxpool.Pool
}

func NewTripRepository(db *pgxpool.Pool) *TripRepository {
	return &TripRepository{DB: db}
}

func (r *TripRepository) Insert(ctx context.Context, t model.Trip) (*model.Trip, error) {
	query := `
		INSERT INTO trips (rider_id, pickup, destination, fare, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	row := r.DB.QueryRow(ctx, query, t.RiderID, t.Pickup, t.Destination, t.Fare, t.Status)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert trip: %w", err)
	}
	return &t, nil
}

func (r *TripRepository) GetByID(ctx context.Context, tripID string) (*model.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`
	t, err := scanTrip(r.DB.QueryRow(ctx, query, tripID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("trip %s: %w", tripID, ErrPreconditionFailed)
		}
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return t, nil
}

func (r *TripRepository) List(ctx context.Context, status model.Status) ([]model.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var trips []model.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, *t)
	}
	return trips, rows.Err()
}

// Accept claims the trip for driverID iff it is still requested. First
// successful update wins; everyone else gets ErrPreconditionFailed.
func (r *TripRepository) Accept(ctx context.Context, tripID, driverID string) (*model.Trip, error) {
	query := `
		UPDATE trips
		SET status = 'accepted', driver_id = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'requested'
		RETURNING ` + tripColumns
	return r.conditionalUpdate(ctx, query, driverID, tripID)
}

func (r *TripRepository) Start(ctx context.Context, tripID, driverID string) (*model.Trip, error) {
	query := `
		UPDATE trips
		SET status = 'started', updated_at = NOW()
		WHERE id = $2 AND status = 'accepted' AND driver_id = $1
		RETURNING ` + tripColumns
	return r.conditionalUpdate(ctx, query, driverID, tripID)
}

func (r *TripRepository) Complete(ctx context.Context, tripID, driverID string) (*model.Trip, error) {
	query := `
		UPDATE trips
		SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = 'started' AND driver_id = $1
		RETURNING ` + tripColumns
	return r.conditionalUpdate(ctx, query, driverID, tripID)
}

// Cancel is a soft transition: the row stays, status becomes cancelled.
func (r *TripRepository) Cancel(ctx context.Context, tripID, riderID string) (*model.Trip, error) {
	query := `
		UPDATE trips
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $2 AND status = 'requested' AND rider_id = $1
		RETURNING ` + tripColumns
	return r.conditionalUpdate(ctx, query, riderID, tripID)
}

func (r *TripRepository) conditionalUpdate(ctx context.Context, query, subjectID, tripID string) (*model.Trip, error) {
	t, err := scanTrip(r.DB.QueryRow(ctx, query, subjectID, tripID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("trip %s: %w", tripID, ErrPreconditionFailed)
		}
		return nil, fmt.Errorf("failed to update trip: %w", err)
	}
	return t, nil
}

func scanTrip(row pgx.Row) (*model.Trip, error) {
	var t model.Trip
	var completedAt *time.Time
	err := row.Scan(&t.ID, &t.RiderID, &t.DriverID, &t.Pickup, &t.Destination,
		&t.Fare, &t.Status, &t.CreatedAt, &t.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	t.CompletedAt = completedAt
	return &t, nil
}
