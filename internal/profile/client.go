package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alucard017/eMotion-Backend/internal/trip/model"
)

// Directory is the read-through lookup collaborator for rider and driver
// details. The account services owning those records live elsewhere; this
// process only ever reads.
type Directory interface {
	Rider(ctx context.Context, riderID string) (*model.Profile, error)
	Driver(ctx context.Context, driverID string) (*model.Profile, error)
}

type HTTPDirectory struct {
	riderBase  string
	driverBase string
	client     *http.Client
}

func NewHTTPDirectory(riderBase, driverBase string) *HTTPDirectory {
	return &HTTPDirectory{
		riderBase:  riderBase,
		driverBase: driverBase,
		client:     &http.Client{Timeout: 3 * time.Second},
	}
}

func (d *HTTPDirectory) Rider(ctx context.Context, riderID string) (*model.Profile, error) {
	return d.fetch(ctx, d.riderBase, riderID)
}

func (d *HTTPDirectory) Driver(ctx context.Context, driverID string) (*model.Profile, error) {
	return d.fetch(ctx, d.driverBase, driverID)
}

func (d *HTTPDirectory) fetch(ctx context.Context, base, subjectID string) (*model.Profile, error) {
	url := fmt.Sprintf("%s/details/%s", base, subjectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile lookup for %s returned %d", subjectID, resp.StatusCode)
	}

	var p model.Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &p, nil
}
