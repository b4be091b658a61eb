package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathfinder-ai/pathfinder/catalog"
	"github.com/pathfinder-ai/pathfinder/graph"
	"github.com/pathfinder-ai/pathfinder/identity"
	"github.com/pathfinder-ai/pathfinder/pipeline"
)

// singleNodeEngine builds a one-node engine so transport behavior can be
// tested without the full pipeline.
func singleNodeEngine(t *testing.T, fn graph.NodeFunc[pipeline.State]) *graph.Engine[pipeline.State] {
	t.Helper()
	eng := graph.New(pipeline.Reduce)
	require.NoError(t, eng.Add("only", fn))
	require.NoError(t, eng.StartAt("only"))
	return eng
}

func rankedEngine(t *testing.T) *graph.Engine[pipeline.State] {
	t.Helper()
	return singleNodeEngine(t, func(ctx context.Context, state pipeline.State) graph.NodeResult[pipeline.State] {
		return graph.NodeResult[pipeline.State]{
			Delta: pipeline.State{
				RankedResults: []pipeline.RankedVenue{{
					Venue:          catalog.Venue{VenueID: "gp_1", Name: "Bar Raval", Rating: 4.7},
					Rank:           1,
					CompositeScore: 0.91,
				}},
				ExecutionSummary: "One great pick.",
			},
			Route: graph.Stop(),
		}
	})
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	return New(cfg)
}

func postPlan(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/plan", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Config{Engine: rankedEngine(t)})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPlanReturnsRanking(t *testing.T) {
	s := newTestServer(t, Config{Engine: rankedEngine(t)})
	rec := postPlan(t, s, `{"prompt":"cozy tapas for 4"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp PlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Venues, 1)
	assert.Equal(t, "Bar Raval", resp.Venues[0].Name)
	assert.Equal(t, 1, resp.Venues[0].Rank)
	assert.Equal(t, "One great pick.", resp.ExecutionSummary)
}

func TestPlanBadRequests(t *testing.T) {
	s := newTestServer(t, Config{Engine: rankedEngine(t)})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"prompt":`},
		{"missing prompt", `{"group_size":4}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postPlan(t, s, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestPlanSeedsIntentFromRequest(t *testing.T) {
	var got pipeline.State
	eng := singleNodeEngine(t, func(ctx context.Context, state pipeline.State) graph.NodeResult[pipeline.State] {
		got = state
		return graph.NodeResult[pipeline.State]{Route: graph.Stop()}
	})
	s := newTestServer(t, Config{Engine: eng})

	rec := postPlan(t, s, `{
		"prompt":"dinner","group_size":6,"budget":"$$","location":"Toronto",
		"member_locations":[{"lat":43.64,"lng":-79.40},{"lat":43.66,"lng":-79.36}],
		"chat_history":[{"role":"user","content":"italian last week"}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, got.ParsedIntent)
	assert.Equal(t, 6, got.ParsedIntent.GroupSize)
	assert.Equal(t, "$$", got.ParsedIntent.Budget)
	assert.Equal(t, "Toronto", got.ParsedIntent.Location)
	require.Len(t, got.MemberLocations, 2)
	assert.Equal(t, pipeline.Coordinate{Lat: 43.64, Lng: -79.40}, got.MemberLocations[0])
	assert.NotEmpty(t, got.ChatHistory)
}

func TestPlanTimeout(t *testing.T) {
	eng := singleNodeEngine(t, func(ctx context.Context, state pipeline.State) graph.NodeResult[pipeline.State] {
		select {
		case <-ctx.Done():
			return graph.NodeResult[pipeline.State]{Err: ctx.Err()}
		case <-time.After(5 * time.Second):
			return graph.NodeResult[pipeline.State]{Route: graph.Stop()}
		}
	})
	s := newTestServer(t, Config{Engine: eng, PipelineTimeout: 50 * time.Millisecond})

	rec := postPlan(t, s, `{"prompt":"dinner"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), "timed out")
}

func TestPlanPipelineFailure(t *testing.T) {
	eng := singleNodeEngine(t, func(ctx context.Context, state pipeline.State) graph.NodeResult[pipeline.State] {
		return graph.NodeResult[pipeline.State]{Err: errors.New("boom")}
	})
	s := newTestServer(t, Config{Engine: eng})

	rec := postPlan(t, s, `{"prompt":"dinner"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(ctx context.Context, token string) (identity.Claims, error) {
	if token == "" {
		return identity.Anonymous, nil
	}
	return identity.Claims{}, identity.ErrUnauthorized
}

type acceptingVerifier struct {
	claims identity.Claims
}

func (v acceptingVerifier) Verify(ctx context.Context, token string) (identity.Claims, error) {
	return v.claims, nil
}

func TestPlanRejectsInvalidToken(t *testing.T) {
	s := newTestServer(t, Config{Engine: rankedEngine(t), Verifier: rejectingVerifier{}})

	req := httptest.NewRequest(http.MethodPost, "/plan", strings.NewReader(`{"prompt":"dinner"}`))
	req.Header.Set("Authorization", "Bearer bad-token")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestPlanAttachesProfile(t *testing.T) {
	var got pipeline.State
	eng := singleNodeEngine(t, func(ctx context.Context, state pipeline.State) graph.NodeResult[pipeline.State] {
		got = state
		return graph.NodeResult[pipeline.State]{Route: graph.Stop()}
	})
	s := newTestServer(t, Config{
		Engine: eng,
		Verifier: acceptingVerifier{claims: identity.Claims{
			Subject:         "auth0|u1",
			Email:           "u@example.com",
			BudgetSensitive: true,
		}},
	})

	req := httptest.NewRequest(http.MethodPost, "/plan", strings.NewReader(`{"prompt":"dinner"}`))
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.UserProfile)
	assert.Equal(t, "auth0|u1", got.UserProfile.Subject)
	assert.Equal(t, "u@example.com", got.UserProfile.Email)
	assert.True(t, got.UserProfile.BudgetSensitive, "budget preference flows into the profile")
}

func TestPlanAnonymousHasNoProfile(t *testing.T) {
	var got pipeline.State
	eng := singleNodeEngine(t, func(ctx context.Context, state pipeline.State) graph.NodeResult[pipeline.State] {
		got = state
		return graph.NodeResult[pipeline.State]{Route: graph.Stop()}
	})
	s := newTestServer(t, Config{Engine: eng})

	rec := postPlan(t, s, `{"prompt":"dinner"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got.UserProfile)
}

type stubSynthesizer struct {
	audio []byte
	err   error
}

func (s stubSynthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	return s.audio, s.err
}

func TestVoiceSynthesize(t *testing.T) {
	s := newTestServer(t, Config{
		Engine: rankedEngine(t),
		Voice:  stubSynthesizer{audio: []byte("mpeg-bytes")},
	})

	req := httptest.NewRequest(http.MethodPost, "/voice/synthesize", bytes.NewReader([]byte(`{"text":"Your top pick is Bar Raval."}`)))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "mpeg-bytes", rec.Body.String())
}

func TestVoiceSynthesizeFailureIsSoft(t *testing.T) {
	tests := []struct {
		name  string
		voice stubSynthesizer
		nil_  bool
	}{
		{name: "provider error", voice: stubSynthesizer{err: errors.New("quota")}},
		{name: "unconfigured", nil_: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Engine: rankedEngine(t)}
			if !tt.nil_ {
				cfg.Voice = tt.voice
			}
			s := newTestServer(t, cfg)

			req := httptest.NewRequest(http.MethodPost, "/voice/synthesize", strings.NewReader(`{"text":"hi"}`))
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), "Voice synthesis unavailable")
		})
	}
}

func TestVoiceSynthesizeRequiresText(t *testing.T) {
	s := newTestServer(t, Config{Engine: rankedEngine(t)})
	req := httptest.NewRequest(http.MethodPost, "/voice/synthesize", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/plan"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWSPlanStreams(t *testing.T) {
	s := newTestServer(t, Config{Engine: rankedEngine(t)})
	srv := httptest.NewServer(s)
	defer srv.Close()

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(PlanRequest{Prompt: "cozy tapas for 4"}))

	var progress wsEvent
	require.NoError(t, conn.ReadJSON(&progress))
	assert.Equal(t, "progress", progress.Type)
	assert.Equal(t, "only", progress.Node)

	var terminal wsEvent
	require.NoError(t, conn.ReadJSON(&terminal))
	assert.Equal(t, "result", terminal.Type)
	require.NotNil(t, terminal.Data)
	require.Len(t, terminal.Data.Venues, 1)
	assert.Equal(t, "Bar Raval", terminal.Data.Venues[0].Name)
	assert.Equal(t, "One great pick.", terminal.Data.ExecutionSummary)
}

func TestWSPlanTimeout(t *testing.T) {
	eng := singleNodeEngine(t, func(ctx context.Context, state pipeline.State) graph.NodeResult[pipeline.State] {
		select {
		case <-ctx.Done():
			return graph.NodeResult[pipeline.State]{Err: ctx.Err()}
		case <-time.After(5 * time.Second):
			return graph.NodeResult[pipeline.State]{Route: graph.Stop()}
		}
	})
	s := newTestServer(t, Config{Engine: eng, PipelineTimeout: 50 * time.Millisecond})
	srv := httptest.NewServer(s)
	defer srv.Close()

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(PlanRequest{Prompt: "dinner"}))

	// Progress for the node, then the timeout terminal.
	var last wsEvent
	for {
		var ev wsEvent
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type != "progress" {
			last = ev
			break
		}
	}
	assert.Equal(t, "error", last.Type)
	assert.Contains(t, last.Message, "timed out")
}

func TestWSPlanInvalidFirstMessage(t *testing.T) {
	s := newTestServer(t, Config{Engine: rankedEngine(t)})
	srv := httptest.NewServer(s)
	defer srv.Close()

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	var ev wsEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "error", ev.Type)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("header %q", tt.header), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, bearerToken(req))
		})
	}
}
