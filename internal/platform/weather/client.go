// Package weather fetches temperature forecasts and live observations from
// the Open-Meteo API.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

// Coords is a latitude/longitude pair.
type Coords struct {
	Lat float64
	Lon float64
}

// cityCoords maps the supported city codes to their coordinates. The market
// slugs use short city codes, so lookups are case-insensitive on these keys.
var cityCoords = map[string]Coords{
	"nyc":          {40.7128, -74.0060},
	"la":           {34.0522, -118.2437},
	"chicago":      {41.8781, -87.6298},
	"miami":        {25.7617, -80.1918},
	"austin":       {30.2672, -97.7431},
	"denver":       {39.7392, -104.9903},
	"seattle":      {47.6062, -122.3321},
	"atlanta":      {33.7490, -84.3880},
	"boston":       {42.3601, -71.0589},
	"philadelphia": {39.9526, -75.1652},
}

// Client fetches forecasts and current conditions. Forecast responses are
// cached in memory with a TTL so repeated strategy cycles do not hammer the
// API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	ttl        time.Duration

	mu    sync.Mutex
	cache map[string]cachedForecast
}

type cachedForecast struct {
	forecast domain.Forecast
	at       time.Time
}

// New creates a weather client.
//
// baseURL is the API root, e.g. "https://api.open-meteo.com". ttl bounds how
// long a cached forecast is served before a fresh fetch.
func New(baseURL string, timeout, ttl time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		ttl:        ttl,
		cache:      make(map[string]cachedForecast),
	}
}

// Forecast returns the predicted daily-high temperature (°F) for city on the
// given date. Results are cached for the configured TTL.
func (c *Client) Forecast(ctx context.Context, city string, date time.Time) (domain.Forecast, error) {
	key := strings.ToLower(city) + "|" + date.Format("2006-01-02")

	c.mu.Lock()
	if entry, ok := c.cache[key]; ok && time.Since(entry.at) < c.ttl {
		c.mu.Unlock()
		return entry.forecast, nil
	}
	c.mu.Unlock()

	coords, err := lookupCoords(city)
	if err != nil {
		return domain.Forecast{}, err
	}

	day := date.Format("2006-01-02")
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", coords.Lat))
	params.Set("longitude", fmt.Sprintf("%.4f", coords.Lon))
	params.Set("daily", "temperature_2m_max")
	params.Set("temperature_unit", "fahrenheit")
	params.Set("timezone", "auto")
	params.Set("start_date", day)
	params.Set("end_date", day)

	body, err := c.doGet(ctx, "/v1/forecast?"+params.Encode())
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("weather: forecast %s %s: %w", city, day, err)
	}

	var resp struct {
		Daily struct {
			Time             []string  `json:"time"`
			Temperature2mMax []float64 `json:"temperature_2m_max"`
		} `json:"daily"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Forecast{}, fmt.Errorf("weather: decode forecast: %w", err)
	}
	if len(resp.Daily.Temperature2mMax) == 0 {
		return domain.Forecast{}, fmt.Errorf("weather: %w: no forecast for %s on %s", domain.ErrNotFound, city, day)
	}

	forecast := domain.Forecast{
		City:          city,
		Date:          date,
		PredictedHigh: resp.Daily.Temperature2mMax[0],
		RetrievedAt:   time.Now(),
	}

	c.mu.Lock()
	c.cache[key] = cachedForecast{forecast: forecast, at: time.Now()}
	c.mu.Unlock()

	return forecast, nil
}

// ObservedMax returns today's observation summary for city: the running
// daily maximum, the latest sample, and how many hourly observations have
// elapsed. Markets settle on the daily high, so the monitor compares maxima,
// not instantaneous readings. Observations are never cached.
func (c *Client) ObservedMax(ctx context.Context, city string) (domain.ObservationSummary, error) {
	coords, err := lookupCoords(city)
	if err != nil {
		return domain.ObservationSummary{}, err
	}

	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", coords.Lat))
	params.Set("longitude", fmt.Sprintf("%.4f", coords.Lon))
	params.Set("hourly", "temperature_2m")
	params.Set("current_weather", "true")
	params.Set("temperature_unit", "fahrenheit")
	params.Set("timezone", "auto")
	params.Set("forecast_days", "1")

	body, err := c.doGet(ctx, "/v1/forecast?"+params.Encode())
	if err != nil {
		return domain.ObservationSummary{}, fmt.Errorf("weather: observed max %s: %w", city, err)
	}

	var resp struct {
		CurrentWeather struct {
			Temperature float64 `json:"temperature"`
			Time        string  `json:"time"`
		} `json:"current_weather"`
		Hourly struct {
			Time          []string  `json:"time"`
			Temperature2m []float64 `json:"temperature_2m"`
		} `json:"hourly"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.ObservationSummary{}, fmt.Errorf("weather: decode observations: %w", err)
	}

	summary := domain.ObservationSummary{
		City:       city,
		LatestTemp: resp.CurrentWeather.Temperature,
		At:         time.Now(),
	}
	if t, err := time.Parse("2006-01-02T15:04", resp.CurrentWeather.Time); err == nil {
		summary.At = t
	}

	// Only hours up to the current local time have been observed; later
	// entries are forecast values and must not feed the daily max. The API
	// returns ISO-8601 local times, so string order is chronological.
	max := summary.LatestTemp
	for i, ts := range resp.Hourly.Time {
		if i >= len(resp.Hourly.Temperature2m) || ts > resp.CurrentWeather.Time {
			continue
		}
		summary.Count++
		if resp.Hourly.Temperature2m[i] > max {
			max = resp.Hourly.Temperature2m[i]
		}
	}
	summary.CurrentMax = max
	return summary, nil
}

// lookupCoords resolves a city code to coordinates.
func lookupCoords(city string) (Coords, error) {
	coords, ok := cityCoords[strings.ToLower(city)]
	if !ok {
		return Coords{}, fmt.Errorf("weather: %w: unknown city %q", domain.ErrNotFound, city)
	}
	return coords, nil
}

// doGet sends a GET request and returns the response body.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s", domain.ErrRateLimited, string(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
