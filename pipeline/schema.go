package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schemas for the structured outputs the pipeline demands from the model.
// Validation runs before decoding so a plausible-but-wrong payload is
// rejected the same way as junk text.
var (
	planSchema = jsonschema.MustCompileString("plan.json", `{
		"type": "object",
		"required": ["parsed_intent", "complexity_tier", "active_agents", "agent_weights"],
		"properties": {
			"parsed_intent": {"type": "object"},
			"complexity_tier": {"enum": ["tier_1", "tier_2", "tier_3"]},
			"active_agents": {
				"type": "array",
				"items": {"enum": ["scout", "vibe_matcher", "cost_analyst", "critic"]}
			},
			"agent_weights": {
				"type": "object",
				"additionalProperties": {"type": "number"}
			}
		}
	}`)

	vibeSchema = jsonschema.MustCompileString("vibe.json", `{
		"type": "object",
		"required": ["vibe_score", "confidence"],
		"properties": {
			"vibe_score": {"type": ["number", "null"]},
			"primary_style": {"type": "string"},
			"visual_descriptors": {"type": "array", "items": {"type": "string"}},
			"confidence": {"type": "number"}
		}
	}`)

	riskSchema = jsonschema.MustCompileString("risk.json", `{
		"type": "object",
		"required": ["risks"],
		"properties": {
			"risks": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"type": {"type": "string"},
						"severity": {"type": "string"},
						"detail": {"type": "string"}
					}
				}
			},
			"fast_fail": {"type": "boolean"},
			"veto": {"type": "boolean"},
			"fast_fail_reason": {"type": ["string", "null"]}
		}
	}`)

	explainSchema = jsonschema.MustCompileString("explain.json", `{
		"type": "object",
		"required": ["why"],
		"properties": {
			"why": {"type": "string"},
			"watch_out": {"type": ["string", "null"]}
		}
	}`)
)

// stripFences removes markdown code fences that models sometimes wrap
// around JSON despite instructions not to.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// decodeModelJSON strips fences, validates raw against schema, and decodes
// it into out. Any failure means the model output is unusable and the
// caller takes its fallback path.
func decodeModelJSON(schema *jsonschema.Schema, raw string, out any) error {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return fmt.Errorf("empty model output")
	}

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return fmt.Errorf("model output is not JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("model output failed validation: %w", err)
	}
	return json.Unmarshal([]byte(cleaned), out)
}
