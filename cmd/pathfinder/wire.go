package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/pathfinder-ai/pathfinder/catalog"
	"github.com/pathfinder-ai/pathfinder/config"
	"github.com/pathfinder-ai/pathfinder/events"
	"github.com/pathfinder-ai/pathfinder/graph"
	"github.com/pathfinder-ai/pathfinder/graph/emit"
	"github.com/pathfinder-ai/pathfinder/graph/model"
	"github.com/pathfinder-ai/pathfinder/graph/model/anthropic"
	"github.com/pathfinder-ai/pathfinder/graph/model/google"
	"github.com/pathfinder-ai/pathfinder/graph/model/openai"
	"github.com/pathfinder-ai/pathfinder/memory"
	"github.com/pathfinder-ai/pathfinder/pipeline"
	"github.com/pathfinder-ai/pathfinder/weather"
)

// app bundles everything the commands need after wiring.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	engine   *graph.Engine[pipeline.State]
	registry *prometheus.Registry
	memory   memory.Store
	shutdown func(context.Context) error
}

// buildApp wires collaborators from configuration into the compiled
// planning graph.
func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg.LogLevel)

	gen, err := newGenerator(cfg)
	if err != nil {
		return nil, err
	}

	catalogs, err := newCatalogs(cfg, log)
	if err != nil {
		return nil, err
	}

	mem, err := newMemory(cfg, log)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()

	emitters := emit.Multi{emit.NewLogEmitter(log)}
	shutdown := func(context.Context) error { return nil }
	if cfg.TracingEnabled {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		emitters = append(emitters, emit.NewOTelEmitter(tp.Tracer("pathfinder")))
		shutdown = tp.Shutdown
	}

	engine, err := pipeline.Build(pipeline.Deps{
		Generator: gen,
		Catalogs:  catalogs,
		Weather:   newWeather(cfg),
		Events:    newEvents(cfg),
		Memory:    mem,
		Emitter:   emitters,
		Metrics:   graph.NewMetrics(registry),
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	return &app{
		cfg:      cfg,
		log:      log,
		engine:   engine,
		registry: registry,
		memory:   mem,
		shutdown: shutdown,
	}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.memory.Close(); err != nil {
		a.log.Warn().Err(err).Msg("memory store close failed")
	}
	if err := a.shutdown(ctx); err != nil {
		a.log.Warn().Err(err).Msg("tracer shutdown failed")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func newGenerator(cfg *config.Config) (model.Generator, error) {
	key := cfg.LLMAPIKey()
	if key == "" {
		return nil, fmt.Errorf("no API key configured for llm provider %q", cfg.LLMProvider)
	}

	var gen model.Generator
	switch cfg.LLMProvider {
	case "openai":
		gen = openai.NewGenerator(key, cfg.LLMModel)
	case "anthropic":
		gen = anthropic.NewGenerator(key, cfg.LLMModel)
	default:
		gen = google.NewGenerator(key, cfg.LLMModel)
	}

	if cfg.LLMRateLimit > 0 {
		gen = model.NewThrottled(gen, cfg.LLMRateLimit, 1)
	}
	return gen, nil
}

// newCatalogs builds the configured catalog clients, each behind a
// circuit breaker. Running with one catalog (or none) is allowed; the
// discovery stage treats a missing catalog like a failing one.
func newCatalogs(cfg *config.Config, log zerolog.Logger) ([]catalog.Client, error) {
	var catalogs []catalog.Client

	if cfg.GoogleMapsAPIKey != "" {
		gp, err := catalog.NewGooglePlaces(cfg.GoogleMapsAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to build places client: %w", err)
		}
		catalogs = append(catalogs, catalog.NewBreaker(gp))
	} else {
		log.Warn().Msg("google places catalog disabled, no API key")
	}

	if cfg.YelpAPIKey != "" {
		catalogs = append(catalogs, catalog.NewBreaker(catalog.NewYelp(cfg.YelpAPIKey)))
	} else {
		log.Warn().Msg("yelp catalog disabled, no API key")
	}

	return catalogs, nil
}

func newMemory(cfg *config.Config, log zerolog.Logger) (memory.Store, error) {
	if cfg.MemoryDSN == "" {
		log.Info().Msg("memory store disabled")
		return memory.NewNull(), nil
	}

	store, err := memory.Open(cfg.MemoryDSN)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

// Weather and events clients with empty keys fail at call time; the risk
// analyst degrades to an assessment without that context.
func newWeather(cfg *config.Config) pipeline.ForecastProvider {
	return weather.NewClient(cfg.OpenWeatherKey)
}

func newEvents(cfg *config.Config) pipeline.EventsProvider {
	return events.NewClient(cfg.PredictHQKey)
}
