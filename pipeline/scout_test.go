package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathfinder-ai/pathfinder/catalog"
)

func TestScoutMergesBothCatalogs(t *testing.T) {
	google := &stubCatalog{name: "google_places", venues: []catalog.Venue{
		venue("gp_1", "Cafe Uno", 43.65, -79.38, 4.2, catalog.SourceGoogle),
	}}
	yelp := &stubCatalog{name: "yelp", venues: []catalog.Venue{
		venue("yp_1", "Cafe Due", 43.66, -79.39, 4.4, catalog.SourceYelp),
	}}

	scout := NewScout([]catalog.Client{google, yelp}, testLogger())
	result := scout.Run(context.Background(), State{RawPrompt: "coffee"})

	require.NoError(t, result.Err)
	require.Len(t, result.Delta.CandidateVenues, 2)
	// First catalog's hits keep their lead positions.
	assert.Equal(t, "gp_1", result.Delta.CandidateVenues[0].VenueID)
	assert.Equal(t, "yp_1", result.Delta.CandidateVenues[1].VenueID)
}

func TestScoutDeduplicationPrefersHigherRating(t *testing.T) {
	google := &stubCatalog{name: "google_places", venues: []catalog.Venue{
		venue("gp_1", "Cafe Uno", 43.6500, -79.3800, 4.2, catalog.SourceGoogle),
	}}
	// Same name, ~40 m away, higher rating.
	yelp := &stubCatalog{name: "yelp", venues: []catalog.Venue{
		venue("yp_1", "cafe uno", 43.65036, -79.3800, 4.5, catalog.SourceYelp),
	}}

	scout := NewScout([]catalog.Client{google, yelp}, testLogger())
	result := scout.Run(context.Background(), State{RawPrompt: "coffee"})

	require.Len(t, result.Delta.CandidateVenues, 1)
	survivor := result.Delta.CandidateVenues[0]
	assert.Equal(t, "yp_1", survivor.VenueID)
	assert.Equal(t, 4.5, survivor.Rating)
}

func TestScoutDeduplicationMergesPriceSignals(t *testing.T) {
	google := &stubCatalog{name: "google_places", venues: []catalog.Venue{
		{VenueID: "gp_1", Name: "Cafe Uno", Lat: 43.65, Lng: -79.38, Rating: 4.6,
			Source: catalog.SourceGoogle, PriceRange: catalog.PriceModerate},
	}}
	yelp := &stubCatalog{name: "yelp", venues: []catalog.Venue{
		{VenueID: "yp_1", Name: "Cafe Uno", Lat: 43.65, Lng: -79.38, Rating: 4.3,
			Source: catalog.SourceYelp, PriceRange: catalog.PriceModerate},
	}}

	scout := NewScout([]catalog.Client{google, yelp}, testLogger())
	result := scout.Run(context.Background(), State{RawPrompt: "coffee"})

	require.Len(t, result.Delta.CandidateVenues, 1)
	survivor := result.Delta.CandidateVenues[0]
	assert.Equal(t, catalog.PriceModerate, survivor.GooglePrice)
	assert.Equal(t, catalog.PriceModerate, survivor.YelpPrice)
}

func TestScoutDistantSameNameIsNotDeduplicated(t *testing.T) {
	google := &stubCatalog{name: "google_places", venues: []catalog.Venue{
		venue("gp_1", "Cafe Uno", 43.65, -79.38, 4.2, catalog.SourceGoogle),
	}}
	// Same name but ~1.1 km away: a different branch.
	yelp := &stubCatalog{name: "yelp", venues: []catalog.Venue{
		venue("yp_1", "Cafe Uno", 43.66, -79.38, 4.5, catalog.SourceYelp),
	}}

	scout := NewScout([]catalog.Client{google, yelp}, testLogger())
	result := scout.Run(context.Background(), State{RawPrompt: "coffee"})

	assert.Len(t, result.Delta.CandidateVenues, 2)
}

func TestScoutCapsCandidates(t *testing.T) {
	var many []catalog.Venue
	for i := 0; i < 15; i++ {
		many = append(many, venue(
			fmt.Sprintf("gp_%d", i), fmt.Sprintf("Venue %d", i),
			43.0+float64(i), -79.0, 4.0, catalog.SourceGoogle))
	}

	scout := NewScout([]catalog.Client{&stubCatalog{name: "google_places", venues: many}}, testLogger())
	result := scout.Run(context.Background(), State{RawPrompt: "anything"})

	assert.Len(t, result.Delta.CandidateVenues, 10)
}

func TestScoutPartialCatalogFailure(t *testing.T) {
	failing := &stubCatalog{name: "google_places", err: errors.New("quota exceeded")}
	yelp := &stubCatalog{name: "yelp", venues: []catalog.Venue{
		venue("yp_1", "A", 43.1, -79.1, 4.0, catalog.SourceYelp),
		venue("yp_2", "B", 43.2, -79.2, 4.1, catalog.SourceYelp),
		venue("yp_3", "C", 43.3, -79.3, 4.2, catalog.SourceYelp),
	}}

	scout := NewScout([]catalog.Client{failing, yelp}, testLogger())
	result := scout.Run(context.Background(), State{RawPrompt: "coffee"})

	require.NoError(t, result.Err)
	require.Len(t, result.Delta.CandidateVenues, 3)
	for _, v := range result.Delta.CandidateVenues {
		assert.Equal(t, catalog.SourceYelp, v.Source)
	}
}

func TestScoutBothCatalogsFail(t *testing.T) {
	scout := NewScout([]catalog.Client{
		&stubCatalog{name: "google_places", err: errors.New("down")},
		&stubCatalog{name: "yelp", err: errors.New("down")},
	}, testLogger())

	result := scout.Run(context.Background(), State{RawPrompt: "coffee"})

	require.NoError(t, result.Err, "catalog failure is not a pipeline error")
	require.NotNil(t, result.Delta.CandidateVenues, "empty discovery must still be written")
	assert.Empty(t, result.Delta.CandidateVenues)
}

func TestScoutUsesIntentForQuery(t *testing.T) {
	recorder := &queryRecorder{}
	scout := NewScout([]catalog.Client{recorder}, testLogger())

	state := State{
		RawPrompt:    "cozy cafe downtown",
		ParsedIntent: &Intent{Activity: "cafe", Location: "downtown Toronto"},
	}
	scout.Run(context.Background(), state)

	assert.Equal(t, "cafe", recorder.activity)
	assert.Equal(t, "downtown Toronto", recorder.location)
}

func TestScoutFallsBackToRawPrompt(t *testing.T) {
	recorder := &queryRecorder{}
	scout := NewScout([]catalog.Client{recorder}, testLogger())

	scout.Run(context.Background(), State{RawPrompt: "cozy cafe downtown"})

	assert.Equal(t, "cozy cafe downtown", recorder.activity)
}

func TestScoutUsesGroupCentroidWithoutLocation(t *testing.T) {
	recorder := &queryRecorder{}
	scout := NewScout([]catalog.Client{recorder}, testLogger())

	state := State{
		RawPrompt: "somewhere for all of us",
		MemberLocations: []Coordinate{
			{Lat: 43.64, Lng: -79.40},
			{Lat: 43.66, Lng: -79.36},
		},
	}
	scout.Run(context.Background(), state)

	assert.Equal(t, "43.65000,-79.38000", recorder.location)
}

type queryRecorder struct {
	activity string
	location string
}

func (q *queryRecorder) Name() string { return "recorder" }

func (q *queryRecorder) Search(ctx context.Context, activity, location string) ([]catalog.Venue, error) {
	q.activity = activity
	q.location = location
	return nil, nil
}
