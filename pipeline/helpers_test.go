package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pathfinder-ai/pathfinder/catalog"
	"github.com/pathfinder-ai/pathfinder/events"
	"github.com/pathfinder-ai/pathfinder/weather"
)

// Shared in-memory stubs for the external collaborators.

type stubCatalog struct {
	name   string
	venues []catalog.Venue
	err    error
}

func (s *stubCatalog) Name() string { return s.name }

func (s *stubCatalog) Search(ctx context.Context, activity, location string) ([]catalog.Venue, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.venues, nil
}

type stubWeather struct {
	forecast *weather.Forecast
	err      error
}

func (s *stubWeather) Forecast(ctx context.Context, lat, lng float64) (*weather.Forecast, error) {
	return s.forecast, s.err
}

type stubEvents struct {
	events []events.Event
	err    error
}

func (s *stubEvents) Nearby(ctx context.Context, lat, lng float64, radius string) ([]events.Event, error) {
	return s.events, s.err
}

type stubMemory struct {
	mu      sync.Mutex
	chunks  []string
	err     error
	logged  []string
	queries []string
}

func (s *stubMemory) Search(ctx context.Context, query string, k int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.chunks) > k {
		return s.chunks[:k], nil
	}
	return s.chunks, nil
}

func (s *stubMemory) LogRisk(ctx context.Context, venueID, riskType, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logged = append(s.logged, venueID+":"+riskType)
	return nil
}

func (s *stubMemory) Close() error { return nil }

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func venue(id, name string, lat, lng, rating float64, source catalog.Source) catalog.Venue {
	return catalog.Venue{
		VenueID: id,
		Name:    name,
		Lat:     lat,
		Lng:     lng,
		Rating:  rating,
		Source:  source,
	}
}

func floatPtr(f float64) *float64 { return &f }
