// Package weather fetches current conditions from OpenWeatherMap.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"bus-bay-prediction-api/config"

	"github.com/bluele/gcache"
)

const Unknown = "Unknown"

type Conditions struct {
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
}

type owmResponse struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      gcache.Cache
}

func NewClient(cfg config.WeatherConfig) *Client {
	ttl := time.Duration(cfg.CacheMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      gcache.New(64).LRU().Expiration(ttl).Build(),
	}
}

// Current returns the conditions at location. Without an API key it returns
// zero temperature and Unknown without calling out.
func (c *Client) Current(ctx context.Context, location string) (Conditions, error) {
	if c.apiKey == "" {
		return Conditions{Condition: Unknown}, nil
	}

	if cached, err := c.cache.Get(location); err == nil {
		return cached.(Conditions), nil
	}

	conditions, err := c.fetch(ctx, location)
	if err != nil {
		return Conditions{Condition: Unknown}, err
	}

	_ = c.cache.Set(location, conditions)
	return conditions, nil
}

func (c *Client) fetch(ctx context.Context, location string) (Conditions, error) {
	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Conditions{}, fmt.Errorf("failed to build weather request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Conditions{}, fmt.Errorf("failed to request weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Conditions{}, fmt.Errorf("failed to request weather: %s", resp.Status)
	}

	var body owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Conditions{}, fmt.Errorf("failed to decode weather: %w", err)
	}

	conditions := Conditions{Temperature: body.Main.Temp, Condition: Unknown}
	if len(body.Weather) > 0 && body.Weather[0].Main != "" {
		conditions.Condition = body.Weather[0].Main
	}
	return conditions, nil
}
