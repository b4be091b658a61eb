package pipeline

import (
	"github.com/pathfinder-ai/pathfinder/catalog"
)

// fallbackValueScore is the neutral value score when no price signal
// exists.
const fallbackValueScore = 0.3

// CostAnalyst assigns each candidate a price band and a confidence grade
// from the catalog price signals. It is a pure function of the candidate
// list: no I/O, deterministic, safe to run off the hot path.
type CostAnalyst struct{}

func NewCostAnalyst() *CostAnalyst {
	return &CostAnalyst{}
}

// Analyze produces one CostRecord per candidate.
//
// Signal combination:
//
//	neither catalog priced it  -> unknown band, confidence none
//	one signal                 -> that band, confidence medium
//	both agree                 -> that band, confidence high
//	both differ                -> median band, confidence low
func (a *CostAnalyst) Analyze(venues []catalog.Venue) map[string]CostRecord {
	profiles := make(map[string]CostRecord, len(venues))
	for _, v := range venues {
		profiles[v.VenueID] = analyzeVenue(v)
	}
	return profiles
}

func analyzeVenue(v catalog.Venue) CostRecord {
	google, yelp := priceSignals(v)

	var band catalog.PriceBand
	var confidence Confidence

	switch {
	case google == "" && yelp == "":
		return CostRecord{Confidence: ConfidenceNone, ValueScore: fallbackValueScore}
	case google == "":
		band, confidence = yelp, ConfidenceMedium
	case yelp == "":
		band, confidence = google, ConfidenceMedium
	case google == yelp:
		band, confidence = google, ConfidenceHigh
	default:
		band, confidence = medianBand(google, yelp), ConfidenceLow
	}

	return CostRecord{
		PriceRange: band,
		Confidence: confidence,
		ValueScore: valueScore(band),
	}
}

// priceSignals extracts the per-catalog price bands, falling back to the
// record's own PriceRange for its source catalog.
func priceSignals(v catalog.Venue) (google, yelp catalog.PriceBand) {
	google = v.GooglePrice
	yelp = v.YelpPrice
	if google == "" && v.Source == catalog.SourceGoogle {
		google = v.PriceRange
	}
	if yelp == "" && v.Source == catalog.SourceYelp {
		yelp = v.PriceRange
	}
	return google, yelp
}

// medianBand resolves two conflicting signals to the band between them,
// rounding down for adjacent bands.
func medianBand(a, b catalog.PriceBand) catalog.PriceBand {
	return catalog.BandFromLevel((a.Level() + b.Level()) / 2)
}

// valueScore is monotone decreasing in price: cheaper venues score higher.
func valueScore(band catalog.PriceBand) float64 {
	switch band {
	case catalog.PriceCheap:
		return 0.9
	case catalog.PriceModerate:
		return 0.7
	case catalog.PriceExpensive:
		return 0.5
	case catalog.PriceLuxury:
		return 0.3
	default:
		return fallbackValueScore
	}
}
