package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// yelpSearchLimit bounds how many businesses one search returns.
const yelpSearchLimit = 10

// Yelp is a catalog Client backed by the Yelp Fusion business search API.
type Yelp struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewYelp creates a Yelp catalog client.
func NewYelp(apiKey string) *Yelp {
	return &Yelp{
		apiKey:  apiKey,
		baseURL: "https://api.yelp.com/v3",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// NewYelpWithBaseURL creates a Yelp client against a custom endpoint.
// Used by tests to point at an httptest server.
func NewYelpWithBaseURL(apiKey, baseURL string) *Yelp {
	y := NewYelp(apiKey)
	y.baseURL = baseURL
	return y
}

// Name implements Client.
func (y *Yelp) Name() string {
	return string(SourceYelp)
}

// yelpBusiness mirrors the slice of the Fusion search response we consume.
type yelpBusiness struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Coordinates struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"coordinates"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	ImageURL    string  `json:"image_url"`
	URL         string  `json:"url"`
	Price       string  `json:"price"`
	Categories  []struct {
		Title string `json:"title"`
	} `json:"categories"`
}

// Search implements Client.
func (y *Yelp) Search(ctx context.Context, activity, location string) ([]Venue, error) {
	if y.apiKey == "" {
		return nil, fmt.Errorf("yelp API key is not configured")
	}

	params := url.Values{}
	params.Set("term", activity)
	params.Set("location", location)
	params.Set("limit", fmt.Sprintf("%d", yelpSearchLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/businesses/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create yelp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+y.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yelp search failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yelp search returned status %d", resp.StatusCode)
	}

	var body struct {
		Businesses []yelpBusiness `json:"businesses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode yelp response: %w", err)
	}

	venues := make([]Venue, 0, len(body.Businesses))
	for _, biz := range body.Businesses {
		venue := Venue{
			VenueID:     "yp_" + biz.ID,
			Name:        biz.Name,
			Lat:         biz.Coordinates.Latitude,
			Lng:         biz.Coordinates.Longitude,
			Rating:      biz.Rating,
			ReviewCount: biz.ReviewCount,
			Website:     biz.URL,
			Source:      SourceYelp,
		}
		if biz.ImageURL != "" {
			venue.Photos = []string{biz.ImageURL}
		}
		if len(biz.Categories) > 0 {
			venue.Category = biz.Categories[0].Title
		}
		if band := PriceBand(biz.Price); band.Level() > 0 {
			venue.PriceRange = band
			venue.YelpPrice = band
		}
		venues = append(venues, venue)
	}

	log.Debug().Str("catalog", y.Name()).Str("term", activity).Int("results", len(venues)).Msg("catalog search complete")
	return venues, nil
}
