// Package anthropic provides a Generator adapter for the Anthropic API.
package anthropic

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pathfinder-ai/pathfinder/graph/model"
)

// Generator implements model.Generator for Anthropic messages models.
//
// Anthropic requires inline base64 image data, so venue photos are fetched
// locally (each with its own small timeout) before the request is sent.
type Generator struct {
	client    anthropic.Client
	modelName string
	apiKey    string
}

// NewGenerator creates an Anthropic-backed Generator. An empty modelName
// uses claude-sonnet-4-20250514.
func NewGenerator(apiKey, modelName string) *Generator {
	if modelName == "" {
		modelName = "claude-sonnet-4-20250514"
	}
	return &Generator{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
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
		return "", errors.New("Anthropic API key is required")
	}

	maxTokens := int64(model.DefaultMaxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	var blocks []anthropic.ContentBlockParamUnion
	for _, inline := range model.FetchInlineAll(ctx, req.ImageURLs) {
		blocks = append(blocks, anthropic.NewImageBlockBase64(
			inline.MIMEType,
			base64.StdEncoding.EncodeToString(inline.Data),
		))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))

	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.modelName),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
