package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest outcome prices.
type PriceCache interface {
	SetPrice(ctx context.Context, assetID string, price float64, ts time.Time) error
	GetPrices(ctx context.Context, assetIDs []string) (map[string]float64, error)
}

// ForecastCache stores retrieved forecasts with a TTL so repeated strategy
// cycles do not hammer the weather API.
type ForecastCache interface {
	Set(ctx context.Context, f Forecast, ttl time.Duration) error
	Get(ctx context.Context, city string, date time.Time) (Forecast, error)
}

// RateLimiter throttles outbound calls under a sliding-window limit.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// StreamMessage is a single entry from a durable alert stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// AlertBus fans alerts out to live subscribers and appends them to a
// bounded durable stream for later inspection.
type AlertBus interface {
	Publish(ctx context.Context, alert Alert) error
	Subscribe(ctx context.Context) (<-chan Alert, error)
	History(ctx context.Context, lastID string, count int) ([]StreamMessage, error)
}
