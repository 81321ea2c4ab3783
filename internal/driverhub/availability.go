package driverhub

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const availableKey = "drivers:available"

// Availability tracks which drivers are accepting offers, backed by a redis
// set so every gateway instance sees the same view.
type Availability struct {
	rdb *redis.Client
}

func NewAvailability(addr, password string) *Availability {
	return &Availability{
		rdb: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
	}
}

func (a *Availability) Set(ctx context.Context, driverID string, available bool) error {
	var err error
	if available {
		err = a.rdb.SAdd(ctx, availableKey, driverID).Err()
	} else {
		err = a.rdb.SRem(ctx, availableKey, driverID).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to update driver availability: %w", err)
	}
	return nil
}

func (a *Availability) List(ctx context.Context) ([]string, error) {
	drivers, err := a.rdb.SMembers(ctx, availableKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list available drivers: %w", err)
	}
	return drivers, nil
}

func (a *Availability) Close() error {
	return a.rdb.Close()
}
