package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

// ForecastCache implements domain.ForecastCache using TTL'd JSON values at
// "forecast:{city}:{YYYY-MM-DD}". The TTL matches the forecast refresh
// cadence so strategy cycles between refreshes never call the weather API.
type ForecastCache struct {
	rdb *redis.Client
}

// NewForecastCache creates a ForecastCache backed by the given Client.
func NewForecastCache(c *Client) *ForecastCache {
	return &ForecastCache{rdb: c.Underlying()}
}

func forecastKey(city string, date time.Time) string {
	return "forecast:" + city + ":" + date.Format("2006-01-02")
}

// Set stores a forecast for its city and date with the given TTL.
func (fc *ForecastCache) Set(ctx context.Context, f domain.Forecast, ttl time.Duration) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("redis: marshal forecast: %w", err)
	}
	key := forecastKey(f.City, f.Date)
	if err := fc.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set forecast %s: %w", key, err)
	}
	return nil
}

// Get retrieves a cached forecast. It returns domain.ErrNotFound when no
// fresh forecast exists for the city and date.
func (fc *ForecastCache) Get(ctx context.Context, city string, date time.Time) (domain.Forecast, error) {
	key := forecastKey(city, date)
	payload, err := fc.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Forecast{}, domain.ErrNotFound
		}
		return domain.Forecast{}, fmt.Errorf("redis: get forecast %s: %w", key, err)
	}
	var f domain.Forecast
	if err := json.Unmarshal(payload, &f); err != nil {
		return domain.Forecast{}, fmt.Errorf("redis: unmarshal forecast %s: %w", key, err)
	}
	return f, nil
}

// Compile-time interface check.
var _ domain.ForecastCache = (*ForecastCache)(nil)
