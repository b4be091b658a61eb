// Package google provides a Generator adapter for the Google Gemini API.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/pathfinder-ai/pathfinder/graph/model"
)

// Generator implements model.Generator for Google's Gemini API.
//
// Provides access to Gemini models with:
//   - Multimodal input (venue photos fetched and attached as inline data)
//   - Context cancellation
//   - Defensive handling of empty candidates and safety blocks
//
// Example usage:
//
//	apiKey := os.Getenv("GOOGLE_API_KEY")
//	gen := google.NewGenerator(apiKey, "gemini-2.5-flash")
//	text, err := gen.Generate(ctx, model.Request{Prompt: "..."})
type Generator struct {
	apiKey    string
	modelName string
}

// NewGenerator creates a Gemini-backed Generator. An empty modelName uses
// the default flash model.
func NewGenerator(apiKey, modelName string) *Generator {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &Generator{apiKey: apiKey, modelName: modelName}
}

// Generate implements the model.Generator interface.
//
// Image URLs are fetched concurrently (each with its own small timeout) and
// attached as inline parts ahead of the text prompt; images that cannot be
// fetched are dropped silently.
func (g *Generator) Generate(ctx context.Context, req model.Request) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if g.apiKey == "" {
		return "", errors.New("google API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create Google client: %w", err)
	}
	defer func() { _ = client.Close() }()

	gm := client.GenerativeModel(g.modelName)

	temperature := float32(model.DefaultTemperature)
	if req.Temperature > 0 {
		temperature = float32(req.Temperature)
	}
	gm.SetTemperature(temperature)

	maxTokens := int32(model.DefaultMaxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int32(req.MaxTokens)
	}
	gm.SetMaxOutputTokens(maxTokens)

	var parts []genai.Part
	for _, inline := range model.FetchInlineAll(ctx, req.ImageURLs) {
		parts = append(parts, genai.Blob{MIMEType: inline.MIMEType, Data: inline.Data})
	}
	parts = append(parts, genai.Text(req.Prompt))

	resp, err := gm.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	return extractText(resp), nil
}

// extractText pulls the first candidate's text parts out of a Gemini
// response. Candidates blocked by safety filters have nil content and
// yield an empty string.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}

	var text string
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	return text
}
