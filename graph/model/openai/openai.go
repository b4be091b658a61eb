// Package openai provides a Generator adapter for the OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pathfinder-ai/pathfinder/graph/model"
)

// Generator implements model.Generator for OpenAI chat completion models.
//
// OpenAI accepts image URLs directly in multimodal content parts, so venue
// photos are forwarded without local fetching.
type Generator struct {
	client    openai.Client
	modelName string
	apiKey    string
}

// NewGenerator creates an OpenAI-backed Generator. An empty modelName uses
// gpt-4o-mini.
func NewGenerator(apiKey, modelName string) *Generator {
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}
	return &Generator{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		modelName: modelName,
		apiKey:    apiKey,
	}
}

// Generate implements the model.Generator interface.
func (g *Generator) Generate(ctx context.Context, req model.Request) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if g.apiKey == "" {
		return "", errors.New("OpenAI API key is required")
	}

	temperature := model.DefaultTemperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	maxTokens := model.DefaultMaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	urls := req.ImageURLs
	if len(urls) > model.MaxImages {
		urls = urls[:model.MaxImages]
	}

	var message openai.ChatCompletionMessageParamUnion
	if len(urls) == 0 {
		message = openai.UserMessage(req.Prompt)
	} else {
		parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(urls)+1)
		for _, url := range urls {
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
		}
		parts = append(parts, openai.TextContentPart(req.Prompt))
		message = openai.UserMessage(parts)
	}

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(g.modelName),
		Messages:            []openai.ChatCompletionMessageParamUnion{message},
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
