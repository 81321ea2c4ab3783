package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Request is the relay ingress body. Role may be empty to try every role.
type Request struct {
	SubjectID string `json:"subjectId"`
	Role      string `json:"role,omitempty"`
	Event     string `json:"event"`
	Data      any    `json:"data"`
}

// Notifier delivers a best-effort push through the relay. Implementations
// must treat an unreachable subject as a non-error for callers: missed
// realtime notice is recovered through pull-based history.
type Notifier interface {
	Notify(ctx context.Context, req Request)
}

// Client posts to the relay's /notify ingress. A 404 means no live
// connection for any targeted role; that and transport errors are logged
// and swallowed, never propagated.
type Client struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

func NewClient(baseURL string, log *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 3 * time.Second},
		log:     log,
	}
}

func (c *Client) Notify(ctx context.Context, req Request) {
	body, err := json.Marshal(req)
	if err != nil {
		c.log.Warn("failed to marshal notification", "error", err.Error())
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/notify", c.baseURL), bytes.NewReader(body))
	if err != nil {
		c.log.Warn("failed to build notification request", "error", err.Error())
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.log.Warn("relay unreachable", "subject_id", req.SubjectID, "event", req.Event, "error", err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.log.Debug("subject not connected, push dropped", "subject_id", req.SubjectID, "event", req.Event)
	} else if resp.StatusCode >= 400 {
		c.log.Warn("relay push rejected", "subject_id", req.SubjectID, "event", req.Event, "status", resp.StatusCode)
	}
}
