// Package server exposes the planning pipeline over HTTP and WebSocket.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pathfinder-ai/pathfinder/graph"
	"github.com/pathfinder-ai/pathfinder/identity"
	"github.com/pathfinder-ai/pathfinder/pipeline"
	"github.com/pathfinder-ai/pathfinder/voice"
)

// DefaultPipelineTimeout bounds one end-to-end planning run.
const DefaultPipelineTimeout = 120 * time.Second

// Server routes planning requests into the workflow engine.
type Server struct {
	engine   *graph.Engine[pipeline.State]
	verifier identity.Verifier
	voice    voice.Synthesizer
	log      zerolog.Logger

	pipelineTimeout time.Duration
	router          *mux.Router
	upgrader        websocket.Upgrader
}

// Config carries the server's collaborators and knobs.
type Config struct {
	Engine   *graph.Engine[pipeline.State]
	Verifier identity.Verifier
	Voice    voice.Synthesizer
	Logger   zerolog.Logger

	// PipelineTimeout overrides DefaultPipelineTimeout when > 0.
	PipelineTimeout time.Duration

	// Registry, when set, exposes Prometheus metrics on /metrics.
	Registry *prometheus.Registry
}

// New builds the server and its route table.
func New(cfg Config) *Server {
	verifier := cfg.Verifier
	if verifier == nil {
		verifier = identity.NullVerifier{}
	}

	timeout := cfg.PipelineTimeout
	if timeout <= 0 {
		timeout = DefaultPipelineTimeout
	}

	s := &Server{
		engine:          cfg.Engine,
		verifier:        verifier,
		voice:           cfg.Voice,
		log:             cfg.Logger.With().Str("component", "server").Logger(),
		pipelineTimeout: timeout,
		router:          mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The browser client connects cross-origin in local setups.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/plan", s.withAuth(http.HandlerFunc(s.handlePlan))).Methods(http.MethodPost)
	s.router.Handle("/ws/plan", s.withAuth(http.HandlerFunc(s.handleWSPlan))).Methods(http.MethodGet)
	s.router.HandleFunc("/voice/synthesize", s.handleVoiceSynthesize).Methods(http.MethodPost)

	if cfg.Registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
