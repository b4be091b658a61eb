// Package model provides LLM integration adapters.
package model

import "context"

// Generator defines the interface for text-generation providers.
//
// This interface abstracts the differences between providers (Google Gemini,
// OpenAI, Anthropic) behind a single prompt-in/text-out call with optional
// multimodal image input.
//
// Implementations should:
// - Handle provider-specific authentication.
// - Fetch or forward image URLs per the provider's multimodal format.
// - Respect context cancellation and timeouts.
// - Return an error when the provider is unavailable; callers treat any
//   error (and an empty response) as "no answer" and fall back gracefully.
//
// Example usage:
//
//	gen := google.NewGenerator(apiKey, "gemini-2.5-flash")
//	text, err := gen.Generate(ctx, model.Request{Prompt: "Describe this venue."})
type Generator interface {
	// Generate sends the request to the provider and returns the generated
	// text. An empty string with nil error means the provider produced no
	// usable output.
	Generate(ctx context.Context, req Request) (string, error)
}

// Request carries one generation request.
type Request struct {
	// Prompt is the full text prompt.
	Prompt string

	// ImageURLs lists optional image URLs for multimodal input.
	// Adapters use at most the first three and drop any image that cannot
	// be fetched within its own small timeout.
	ImageURLs []string

	// Temperature overrides the adapter default when > 0.
	Temperature float64

	// MaxTokens overrides the adapter default when > 0.
	MaxTokens int
}

// Default generation parameters shared by the adapters.
const (
	DefaultTemperature = 0.4
	DefaultMaxTokens   = 8192

	// MaxImages caps how many image URLs an adapter will attach.
	MaxImages = 3
)
