package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

// ForecastProvider fetches forecasts from the upstream weather API.
type ForecastProvider interface {
	Forecast(ctx context.Context, city string, date time.Time) (domain.Forecast, error)
}

// ForecastService layers a shared cache over the weather API so concurrent
// strategy loops across processes reuse one fetch per city and date. With a
// nil cache it passes straight through to the provider, which keeps its own
// in-process cache.
type ForecastService struct {
	provider ForecastProvider
	cache    domain.ForecastCache // optional
	ttl      time.Duration
	logger   *slog.Logger
}

// NewForecastService creates a ForecastService. cache may be nil.
func NewForecastService(provider ForecastProvider, cache domain.ForecastCache, ttl time.Duration, logger *slog.Logger) *ForecastService {
	return &ForecastService{
		provider: provider,
		cache:    cache,
		ttl:      ttl,
		logger:   logger.With(slog.String("component", "forecast_service")),
	}
}

// Forecast returns the predicted daily high for a city and date.
func (s *ForecastService) Forecast(ctx context.Context, city string, date time.Time) (domain.Forecast, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, city, date)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("forecast cache read failed",
				slog.String("city", city),
				slog.String("error", err.Error()))
		}
	}

	forecast, err := s.provider.Forecast(ctx, city, date)
	if err != nil {
		return domain.Forecast{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, forecast, s.ttl); err != nil {
			s.logger.Warn("forecast cache write failed",
				slog.String("city", city),
				slog.String("error", err.Error()))
		}
	}
	return forecast, nil
}
