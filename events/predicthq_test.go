package events

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNearbyQueriesAndParses(t *testing.T) {
	var gotAuth string
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/events/", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotQuery = map[string]string{
			"within": r.URL.Query().Get("within"),
			"limit":  r.URL.Query().Get("limit"),
			"sort":   r.URL.Query().Get("sort"),
		}
		fmt.Fprint(w, `{"results":[
			{"title":"Leafs vs Habs","category":"sports","start":"2026-08-26T19:00:00Z","rank":85},
			{"title":"Street festival","category":"festivals","start":"2026-08-26T12:00:00Z","rank":60}
		]}`)
	}))
	defer srv.Close()

	got, err := NewClientWithBaseURL("tok", srv.URL).Nearby(context.Background(), 43.65, -79.38, "2km")
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "2km@43.650000,-79.380000", gotQuery["within"])
	assert.Equal(t, "5", gotQuery["limit"])
	assert.Equal(t, "rank", gotQuery["sort"])

	require.Len(t, got, 2)
	assert.Equal(t, Event{Title: "Leafs vs Habs", Category: "sports", Start: "2026-08-26T19:00:00Z", Rank: 85}, got[0])
	assert.Equal(t, 60, got[1].Rank)
}

func TestNearbyDefaultRadius(t *testing.T) {
	var gotWithin string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWithin = r.URL.Query().Get("within")
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer srv.Close()

	_, err := NewClientWithBaseURL("tok", srv.URL).Nearby(context.Background(), 1, 2, "")
	require.NoError(t, err)
	assert.Equal(t, "1mi@1.000000,2.000000", gotWithin)
}

func TestNearbyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClientWithBaseURL("tok", srv.URL).Nearby(context.Background(), 0, 0, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestNearbyRequiresAPIKey(t *testing.T) {
	_, err := NewClient("").Nearby(context.Background(), 0, 0, "")
	require.Error(t, err)
}
