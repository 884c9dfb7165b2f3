package strategy

import (
	"context"
	"time"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

// ForecastSource provides the predicted daily high for a city and date.
// Implementations cache aggressively; a call per requote cycle is expected.
type ForecastSource interface {
	Forecast(ctx context.Context, city string, date time.Time) (domain.Forecast, error)
}

// MarketSource discovers temperature markets on the venue.
type MarketSource interface {
	FindTemperatureMarket(ctx context.Context, city string, date time.Time) (domain.Market, error)
	GetMarketBySlug(ctx context.Context, slug, city string) (domain.Market, error)
}
