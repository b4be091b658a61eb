// Package config loads runtime configuration from the environment, with
// optional overrides from a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`

	// PipelineTimeout bounds one end-to-end planning run.
	PipelineTimeout time.Duration `yaml:"pipeline_timeout"`

	// LLMProvider selects the generation backend: gemini, openai, or
	// anthropic.
	LLMProvider string `yaml:"llm_provider"`
	LLMModel    string `yaml:"llm_model"`

	GeminiAPIKey    string `yaml:"gemini_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	// LLMRateLimit throttles generation calls per second; 0 disables.
	LLMRateLimit float64 `yaml:"llm_rate_limit"`

	GoogleMapsAPIKey string `yaml:"google_maps_api_key"`
	YelpAPIKey       string `yaml:"yelp_api_key"`
	OpenWeatherKey   string `yaml:"openweather_api_key"`
	PredictHQKey     string `yaml:"predicthq_api_key"`
	ElevenLabsKey    string `yaml:"elevenlabs_api_key"`

	// MemoryDSN selects the long-term memory backend. Empty disables
	// memory. "mysql://..." uses MySQL, anything else is a sqlite path.
	MemoryDSN string `yaml:"memory_dsn"`

	Auth0Domain   string `yaml:"auth0_domain"`
	Auth0Audience string `yaml:"auth0_audience"`

	// TracingEnabled turns on OpenTelemetry span emission for run events.
	// Exporter wiring is left to the deployment's OTel SDK configuration.
	TracingEnabled bool `yaml:"tracing_enabled"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// Load reads configuration: .env (if present), then process environment,
// then the optional YAML file path which overrides both.
func Load(yamlPath string) (*Config, error) {
	// Missing .env is not an error; deployments use real env vars.
	_ = godotenv.Load()

	cfg := &Config{
		Addr:            envOr("PATHFINDER_ADDR", ":8000"),
		PipelineTimeout: envDuration("PATHFINDER_PIPELINE_TIMEOUT", 120*time.Second),
		LLMProvider:     envOr("PATHFINDER_LLM_PROVIDER", "gemini"),
		LLMModel:        os.Getenv("PATHFINDER_LLM_MODEL"),

		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		LLMRateLimit:    envFloat("PATHFINDER_LLM_RATE_LIMIT", 0),

		GoogleMapsAPIKey: os.Getenv("GOOGLE_MAPS_API_KEY"),
		YelpAPIKey:       os.Getenv("YELP_API_KEY"),
		OpenWeatherKey:   os.Getenv("OPENWEATHER_API_KEY"),
		PredictHQKey:     os.Getenv("PREDICTHQ_API_KEY"),
		ElevenLabsKey:    os.Getenv("ELEVENLABS_API_KEY"),

		MemoryDSN: os.Getenv("PATHFINDER_MEMORY_DSN"),

		Auth0Domain:   os.Getenv("AUTH0_DOMAIN"),
		Auth0Audience: os.Getenv("AUTH0_AUDIENCE"),

		TracingEnabled: os.Getenv("PATHFINDER_TRACING") == "true",
		LogLevel:       envOr("PATHFINDER_LOG_LEVEL", "info"),
	}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLMProvider)
	}
	if c.PipelineTimeout <= 0 {
		return fmt.Errorf("pipeline timeout must be positive")
	}
	return nil
}

// LLMAPIKey returns the key for the selected provider.
func (c *Config) LLMAPIKey() string {
	switch c.LLMProvider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	default:
		return c.GeminiAPIKey
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
