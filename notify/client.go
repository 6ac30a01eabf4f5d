// Package notify forwards customer-facing billing events to an external
// notification service over HTTP.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is used when no notification service URL is configured.
const DefaultBaseURL = "http://localhost:8088"

const createPath = "/api/v1/notifications/create"

// Notification types understood by the notification service.
const (
	TypeInfo    = "INFO"
	TypeWarning = "WARNING"
	TypeError   = "ERROR"
	TypeSuccess = "SUCCESS"
)

// Related entity kinds.
const (
	EntityInvoice = "INVOICE"
	EntityPayment = "PAYMENT"
)

// Request is the body posted to the notification service.
type Request struct {
	UserID            string `json:"userId"`
	Type              string `json:"type"`
	Message           string `json:"message"`
	Details           string `json:"details,omitempty"`
	RelatedEntityID   string `json:"relatedEntityId,omitempty"`
	RelatedEntityType string `json:"relatedEntityType,omitempty"`
}

// Client posts notifications to the notification service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client for baseURL. An empty baseURL uses
// DefaultBaseURL; a nil httpClient gets a 10 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

// Send posts one notification. Any non-2xx response is an error.
func (c *Client) Send(ctx context.Context, r Request) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("notify: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Correlation-ID", uuid.NewString())

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("notify: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: unexpected status %d", resp.StatusCode)
	}
	return nil
}
