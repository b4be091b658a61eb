// Package catalog defines venue records and the catalog provider adapters
// used by the discovery stage.
package catalog

import "context"

// Source identifies which catalog produced a venue record.
type Source string

const (
	// SourceGoogle marks records from the Google Places catalog.
	SourceGoogle Source = "google_places"

	// SourceYelp marks records from the Yelp catalog.
	SourceYelp Source = "yelp"
)

// PriceBand is a venue price tier, "$" through "$$$$". Empty means unknown.
type PriceBand string

// Known price bands, cheapest first.
const (
	PriceCheap     PriceBand = "$"
	PriceModerate  PriceBand = "$$"
	PriceExpensive PriceBand = "$$$"
	PriceLuxury    PriceBand = "$$$$"
)

// Level returns the 1-4 ordinal of the band, or 0 when unknown.
func (p PriceBand) Level() int {
	switch p {
	case PriceCheap:
		return 1
	case PriceModerate:
		return 2
	case PriceExpensive:
		return 3
	case PriceLuxury:
		return 4
	default:
		return 0
	}
}

// BandFromLevel is the inverse of Level. Levels outside 1-4 yield "".
func BandFromLevel(level int) PriceBand {
	switch level {
	case 1:
		return PriceCheap
	case 2:
		return PriceModerate
	case 3:
		return PriceExpensive
	case 4:
		return PriceLuxury
	default:
		return ""
	}
}

// Venue is one candidate venue as returned by a catalog.
//
// VenueID is catalog-qualified (e.g. "gp_<place_id>", "yp_<business_id>") so
// records from different catalogs never collide. Identifiers survive only for
// the life of one pipeline run.
type Venue struct {
	VenueID     string    `json:"venue_id"`
	Name        string    `json:"name"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
	Photos      []string  `json:"photos,omitempty"`
	Category    string    `json:"category,omitempty"`
	Website     string    `json:"website,omitempty"`
	Source      Source    `json:"source"`
	PriceRange  PriceBand `json:"price_range,omitempty"`

	// GooglePrice and YelpPrice carry per-catalog price signals. After the
	// discovery stage deduplicates across catalogs, a surviving record may
	// hold both even though Source names only one catalog.
	GooglePrice PriceBand `json:"google_price,omitempty"`
	YelpPrice   PriceBand `json:"yelp_price,omitempty"`
}

// Client is a venue catalog provider.
//
// Search may fail (network, quota, auth); the discovery stage treats a
// failing catalog as an empty contribution rather than a pipeline error.
type Client interface {
	// Name identifies the catalog for logging and circuit breaking.
	Name() string

	// Search returns venues matching the activity near the location.
	Search(ctx context.Context, activity, location string) ([]Venue, error)
}
