// Package events provides the PredictHQ nearby-events adapter used by the
// risk-assessment stage.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// searchLimit bounds how many events one lookup returns.
const searchLimit = 5

// Event is a single upcoming event near a venue.
type Event struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Start    string `json:"start"`
	Rank     int    `json:"rank"`
}

// Client fetches rank-sorted nearby events from PredictHQ.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient creates a PredictHQ client.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: "https://api.predicthq.com/v1",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint, for tests.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = baseURL
	return c
}

// Nearby returns up to 5 events within radius of the coordinates, sorted by
// impact rank. An empty radius defaults to "1mi".
func (c *Client) Nearby(ctx context.Context, lat, lng float64, radius string) ([]Event, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("predicthq API key is not configured")
	}
	if radius == "" {
		radius = "1mi"
	}

	params := url.Values{}
	params.Set("within", fmt.Sprintf("%s@%f,%f", radius, lat, lng))
	params.Set("limit", fmt.Sprintf("%d", searchLimit))
	params.Set("sort", "rank")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events/?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create events request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("events request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("events request returned status %d", resp.StatusCode)
	}

	var body struct {
		Results []Event `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode events response: %w", err)
	}

	return body.Results, nil
}
