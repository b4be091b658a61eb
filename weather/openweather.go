// Package weather provides the OpenWeather forecast adapter used by the
// risk-assessment stage.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// forecastPeriods is how many 3-hour periods make up the 24 h outlook.
const forecastPeriods = 8

// heavyPrecipProbability is the pop threshold above which a period counts
// as heavy precipitation regardless of condition.
const heavyPrecipProbability = 0.6

// wetConditions are OpenWeather condition groups that imply precipitation.
var wetConditions = map[string]bool{
	"Rain":         true,
	"Drizzle":      true,
	"Thunderstorm": true,
	"Snow":         true,
}

// Period is one 3-hour forecast window.
type Period struct {
	Time        string  `json:"time"`
	Condition   string  `json:"condition"`
	Description string  `json:"description"`
	TempC       float64 `json:"temp_c"`
	Pop         float64 `json:"pop"`
}

// Forecast is the 24-hour outlook handed to the risk LLM.
type Forecast struct {
	Forecast24h              []Period `json:"forecast_24h"`
	HeavyPrecipitationLikely bool     `json:"heavy_precipitation_likely"`
	Summary                  string   `json:"summary"`
}

// Client fetches forecasts from the OpenWeather 5-day/3-hour API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient creates an OpenWeather client.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint, for tests.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = baseURL
	return c
}

// Forecast returns the next 24 hours (8 × 3 h periods) for the coordinates.
func (c *Client) Forecast(ctx context.Context, lat, lng float64) (*Forecast, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openweather API key is not configured")
	}

	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lng))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	params.Set("cnt", fmt.Sprintf("%d", forecastPeriods))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/forecast?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create forecast request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forecast request returned status %d", resp.StatusCode)
	}

	var body struct {
		List []struct {
			DtTxt string `json:"dt_txt"`
			Main  struct {
				Temp float64 `json:"temp"`
			} `json:"main"`
			Weather []struct {
				Main        string `json:"main"`
				Description string `json:"description"`
			} `json:"weather"`
			Pop float64 `json:"pop"`
		} `json:"list"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode forecast response: %w", err)
	}

	forecast := &Forecast{}
	var conditions []string
	for i, item := range body.List {
		if i >= forecastPeriods {
			break
		}

		period := Period{
			Time:  item.DtTxt,
			TempC: item.Main.Temp,
			Pop:   item.Pop,
		}
		if len(item.Weather) > 0 {
			period.Condition = item.Weather[0].Main
			period.Description = item.Weather[0].Description
		}

		if period.Pop >= heavyPrecipProbability || wetConditions[period.Condition] {
			forecast.HeavyPrecipitationLikely = true
		}

		conditions = append(conditions, period.Condition)
		forecast.Forecast24h = append(forecast.Forecast24h, period)
	}

	forecast.Summary = summarize(conditions, forecast.HeavyPrecipitationLikely)
	return forecast, nil
}

func summarize(conditions []string, wet bool) string {
	if len(conditions) == 0 {
		return "no forecast data"
	}
	summary := "next 24h: " + strings.Join(dedupe(conditions), ", ")
	if wet {
		summary += " (heavy precipitation likely)"
	}
	return summary
}

func dedupe(values []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
