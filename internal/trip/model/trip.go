package model

import "time"

type Status string

const (
	StatusRequested Status = "requested"
	StatusAccepted  Status = "accepted"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusAccepted, StatusStarted, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Trip is the unit of work tracked through the lifecycle state machine.
// DriverID is empty until a driver claims the trip; rider and driver are
// plain identifiers resolved through the profile services, never embedded
// entities.
type Trip struct {
	ID          string     `json:"id"`
	RiderID     string     `json:"rider_id"`
	DriverID    string     `json:"driver_id,omitempty"`
	Pickup      string     `json:"pickup"`
	Destination string     `json:"destination"`
	Fare        float64    `json:"fare"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Profile is the read-through decoration fetched from the rider/driver
// services.
type Profile struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Vehicle string `json:"vehicle,omitempty"`
}

// EnrichedTrip is the wire shape returned to clients and carried on bus
// events: the trip record plus whatever profile details were reachable.
type EnrichedTrip struct {
	Trip
	Rider  *Profile `json:"rider,omitempty"`
	Driver *Profile `json:"driver,omitempty"`
}

// Offer announces a new trip to drivers. DriverID is set when the rider
// named a preferred driver; empty means any waiting driver may take it.
type Offer struct {
	DriverID string       `json:"driver_id,omitempty"`
	Trip     EnrichedTrip `json:"trip"`
}
