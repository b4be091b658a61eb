package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pathfinder-ai/pathfinder/catalog"
	"github.com/pathfinder-ai/pathfinder/graph"
)

const (
	// maxCandidates caps the merged candidate list.
	maxCandidates = 10

	// catalogTimeout bounds each catalog search independently.
	catalogTimeout = 10 * time.Second

	// dedupRadiusMeters is how close two same-named venues must be to
	// count as one.
	dedupRadiusMeters = 75.0
)

// Scout queries the venue catalogs concurrently and merges their results
// into a deduplicated candidate list. A failing catalog contributes
// nothing; both failing yields an empty list, not an error.
type Scout struct {
	catalogs []catalog.Client
	log      zerolog.Logger
}

func NewScout(catalogs []catalog.Client, log zerolog.Logger) *Scout {
	return &Scout{catalogs: catalogs, log: log.With().Str("node", NodeScout).Logger()}
}

// Run implements graph.Node.
func (s *Scout) Run(ctx context.Context, state State) graph.NodeResult[State] {
	activity, location := s.query(state)

	results := make([][]catalog.Venue, len(s.catalogs))
	var wg sync.WaitGroup
	for i, c := range s.catalogs {
		wg.Add(1)
		go func(i int, c catalog.Client) {
			defer wg.Done()

			searchCtx, cancel := context.WithTimeout(ctx, catalogTimeout)
			defer cancel()

			venues, err := c.Search(searchCtx, activity, location)
			if err != nil {
				s.log.Warn().Err(err).Str("catalog", c.Name()).Msg("catalog search failed")
				return
			}
			results[i] = venues
		}(i, c)
	}
	wg.Wait()

	// Merge in catalog registration order so the first catalog's hits
	// keep their lead positions.
	merged := make([]catalog.Venue, 0, maxCandidates)
	for _, venues := range results {
		for _, v := range venues {
			merged = dedupInsert(merged, normalizePriceSignals(v))
		}
	}
	if len(merged) > maxCandidates {
		merged = merged[:maxCandidates]
	}

	s.log.Info().Int("candidates", len(merged)).Msg("discovery complete")
	return graph.NodeResult[State]{Delta: State{CandidateVenues: merged}}
}

// query derives the catalog search terms, falling back to the raw prompt
// when the planner produced no activity and to the group centroid when it
// produced no place.
func (s *Scout) query(state State) (activity, location string) {
	if state.ParsedIntent != nil {
		activity = state.ParsedIntent.Activity
		location = state.ParsedIntent.Location
	}
	if activity == "" {
		activity = state.RawPrompt
	}
	if location == "" {
		if c, ok := state.Centroid(); ok {
			location = fmt.Sprintf("%.5f,%.5f", c.Lat, c.Lng)
		}
	}
	return activity, location
}

// normalizePriceSignals copies a record's catalog price band into its
// per-catalog signal slot so the cost analysis can tell the signals apart
// after cross-catalog deduplication.
func normalizePriceSignals(v catalog.Venue) catalog.Venue {
	switch v.Source {
	case catalog.SourceGoogle:
		if v.GooglePrice == "" {
			v.GooglePrice = v.PriceRange
		}
	case catalog.SourceYelp:
		if v.YelpPrice == "" {
			v.YelpPrice = v.PriceRange
		}
	}
	return v
}

// dedupInsert appends v unless the list already holds the same venue, in
// which case the higher-rated record survives and absorbs the other's
// price signal.
func dedupInsert(venues []catalog.Venue, v catalog.Venue) []catalog.Venue {
	for i, existing := range venues {
		if !sameVenue(existing, v) {
			continue
		}
		if v.Rating > existing.Rating {
			venues[i] = mergePriceSignals(v, existing)
		} else {
			venues[i] = mergePriceSignals(existing, v)
		}
		return venues
	}
	return append(venues, v)
}

// sameVenue matches case-insensitive names within the dedup radius.
func sameVenue(a, b catalog.Venue) bool {
	if !strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(b.Name)) {
		return false
	}
	return haversineMeters(a.Lat, a.Lng, b.Lat, b.Lng) <= dedupRadiusMeters
}

// mergePriceSignals keeps winner but adopts any price signal it lacks.
func mergePriceSignals(winner, loser catalog.Venue) catalog.Venue {
	if winner.GooglePrice == "" {
		winner.GooglePrice = loser.GooglePrice
	}
	if winner.YelpPrice == "" {
		winner.YelpPrice = loser.YelpPrice
	}
	return winner
}

const earthRadiusMeters = 6371000.0

// haversineMeters is the great-circle distance between two coordinates.
func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}
