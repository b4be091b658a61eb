package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYelpSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/businesses/search", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "coffee", r.URL.Query().Get("term"))
		assert.Equal(t, "downtown Toronto", r.URL.Query().Get("location"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"businesses": [
				{
					"id": "abc123",
					"name": "Cafe Uno",
					"coordinates": {"latitude": 43.65, "longitude": -79.38},
					"rating": 4.5,
					"review_count": 210,
					"image_url": "https://img.example/uno.jpg",
					"url": "https://yelp.example/uno",
					"price": "$$",
					"categories": [{"title": "Coffee & Tea"}, {"title": "Cafes"}]
				},
				{
					"id": "def456",
					"name": "No Frills Diner",
					"coordinates": {"latitude": 43.66, "longitude": -79.39},
					"rating": 3.9,
					"review_count": 40,
					"price": ""
				}
			]
		}`))
	}))
	defer srv.Close()

	client := NewYelpWithBaseURL("test-key", srv.URL)
	venues, err := client.Search(context.Background(), "coffee", "downtown Toronto")
	require.NoError(t, err)
	require.Len(t, venues, 2)

	uno := venues[0]
	assert.Equal(t, "yp_abc123", uno.VenueID)
	assert.Equal(t, "Cafe Uno", uno.Name)
	assert.Equal(t, 4.5, uno.Rating)
	assert.Equal(t, SourceYelp, uno.Source)
	assert.Equal(t, PriceModerate, uno.PriceRange)
	assert.Equal(t, PriceModerate, uno.YelpPrice)
	assert.Equal(t, "Coffee & Tea", uno.Category)
	assert.Equal(t, []string{"https://img.example/uno.jpg"}, uno.Photos)

	diner := venues[1]
	assert.Empty(t, diner.PriceRange, "unknown price stays unset")
	assert.Empty(t, diner.Photos)
}

func TestYelpSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewYelpWithBaseURL("test-key", srv.URL)
	_, err := client.Search(context.Background(), "coffee", "Toronto")
	assert.Error(t, err)
}

func TestYelpSearchWithoutKey(t *testing.T) {
	client := NewYelp("")
	_, err := client.Search(context.Background(), "coffee", "Toronto")
	assert.Error(t, err)
}

func TestPriceBandLevels(t *testing.T) {
	tests := []struct {
		band  PriceBand
		level int
	}{
		{PriceCheap, 1},
		{PriceModerate, 2},
		{PriceExpensive, 3},
		{PriceLuxury, 4},
		{"", 0},
		{"$$$$$", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.level, tt.band.Level())
		if tt.level > 0 {
			assert.Equal(t, tt.band, BandFromLevel(tt.level))
		}
	}
}
