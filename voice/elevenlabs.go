// Package voice converts text to speech through the ElevenLabs API.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"

	// DefaultVoiceID is ElevenLabs' stock "Rachel" voice.
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

	defaultModelID = "eleven_turbo_v2_5"
)

// Synthesizer converts text into an audio/mpeg payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// ElevenLabs calls the ElevenLabs text-to-speech endpoint.
type ElevenLabs struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewElevenLabs(apiKey string) *ElevenLabs {
	return &ElevenLabs{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// NewElevenLabsWithBaseURL overrides the API endpoint. Used in tests.
func NewElevenLabsWithBaseURL(apiKey, baseURL string) *ElevenLabs {
	e := NewElevenLabs(apiKey)
	e.baseURL = baseURL
	return e
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize implements Synthesizer. An empty voiceID selects
// DefaultVoiceID.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("voice: no API key configured")
	}
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}

	body, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: defaultModelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", e.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voice: synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("voice: synthesis returned %d: %s", resp.StatusCode, snippet)
	}

	return io.ReadAll(resp.Body)
}
