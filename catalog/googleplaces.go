package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"googlemaps.github.io/maps"
)

// photoBaseURL serves Google Places photo references as fetchable images.
const photoBaseURL = "https://maps.googleapis.com/maps/api/place/photo"

// maxPhotosPerVenue caps how many photo URLs are attached to a record.
const maxPhotosPerVenue = 3

// GooglePlaces is a catalog Client backed by the Google Places Text Search
// API via the official googlemaps client.
type GooglePlaces struct {
	client *maps.Client
	apiKey string
}

// NewGooglePlaces creates a Google Places catalog client.
func NewGooglePlaces(apiKey string) (*GooglePlaces, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GooglePlaces{client: client, apiKey: apiKey}, nil
}

// Name implements Client.
func (g *GooglePlaces) Name() string {
	return string(SourceGoogle)
}

// Search implements Client using a text search of "<activity> in <location>".
func (g *GooglePlaces) Search(ctx context.Context, activity, location string) ([]Venue, error) {
	query := strings.TrimSpace(activity)
	if location != "" {
		query = strings.TrimSpace(query + " in " + location)
	}
	if query == "" {
		return nil, nil
	}

	resp, err := g.client.TextSearch(ctx, &maps.TextSearchRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("places text search failed: %w", err)
	}

	venues := make([]Venue, 0, len(resp.Results))
	for _, res := range resp.Results {
		venue := Venue{
			VenueID:     "gp_" + res.PlaceID,
			Name:        res.Name,
			Lat:         res.Geometry.Location.Lat,
			Lng:         res.Geometry.Location.Lng,
			Rating:      float64(res.Rating),
			ReviewCount: res.UserRatingsTotal,
			Source:      SourceGoogle,
		}

		if len(res.Types) > 0 {
			venue.Category = res.Types[0]
		}

		// Google price_level is 0-4; 0 means free, which has no band.
		if res.PriceLevel > 0 {
			venue.PriceRange = BandFromLevel(res.PriceLevel)
			venue.GooglePrice = venue.PriceRange
		}

		for i, photo := range res.Photos {
			if i >= maxPhotosPerVenue {
				break
			}
			venue.Photos = append(venue.Photos, g.photoURL(photo.PhotoReference))
		}

		venues = append(venues, venue)
	}

	log.Debug().Str("catalog", g.Name()).Str("query", query).Int("results", len(venues)).Msg("catalog search complete")
	return venues, nil
}

func (g *GooglePlaces) photoURL(reference string) string {
	params := url.Values{}
	params.Set("maxwidth", "800")
	params.Set("photoreference", reference)
	params.Set("key", g.apiKey)
	return photoBaseURL + "?" + params.Encode()
}
