package strategy

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/weatherbot/internal/config"
	"github.com/alanyoungcy/weatherbot/internal/domain"
	"github.com/alanyoungcy/weatherbot/internal/exchange"
	"github.com/alanyoungcy/weatherbot/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		DryRun:               true,
		DryRunBalance:        1000,
		MaxPositionSize:      100,
		MaxExposurePerMarket: 200,
		MinEdge:              0.05,
		ExitEdge:             0.05,
		KellyFraction:        0.25,
		AdvanceDays:          3,
		MaxDailyLoss:         50,
	}
}

func tempMarket(target time.Time) *domain.Market {
	return &domain.Market{
		ID:         "m1",
		Slug:       "highest-temperature-in-nyc-on-march-15",
		City:       "NYC",
		TargetDate: target,
		Active:     true,
		Outcomes: []domain.Outcome{
			{TokenID: "t-low", Label: "77° or below", Range: domain.OpenLow(77), Price: 0.05},
			{TokenID: "t-78", Label: "78-79°", Range: domain.TemperatureRange{Low: 78, High: 79}, Price: 0.30},
			{TokenID: "t-80", Label: "80-81°", Range: domain.TemperatureRange{Low: 80, High: 81}, Price: 0.45},
			{TokenID: "t-high", Label: "82° or above", Range: domain.OpenHigh(82), Price: 0.90},
		},
	}
}

func newTestTaker(sim *exchange.Simulator) *PositionTaker {
	return NewPositionTaker(sim, newTestRisk(1000), testTradingConfig(), nil, testLogger())
}

func TestAnalyze(t *testing.T) {
	now := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	market := tempMarket(now.AddDate(0, 0, 2))
	taker := newTestTaker(exchange.NewSimulator(1000, 0, testLogger()))

	t.Run("forecast in bucket with edge", func(t *testing.T) {
		a, ok := taker.Analyze(market, domain.Forecast{PredictedHigh: 80.5}, now)
		require.True(t, ok)
		assert.Equal(t, "t-80", a.Outcome.TokenID)
		assert.InDelta(t, 0.75, a.Confidence, 1e-9)
		assert.InDelta(t, 0.30, a.Edge, 1e-9)
		assert.Equal(t, 2, a.DaysAhead)
	})

	t.Run("forecast outside every bucket", func(t *testing.T) {
		_, ok := taker.Analyze(market, domain.Forecast{PredictedHigh: 79.5}, now)
		assert.False(t, ok)
	})

	t.Run("edge below entry threshold", func(t *testing.T) {
		// t-high trades at 0.90, confidence 0.75: edge is negative.
		a, ok := taker.Analyze(market, domain.Forecast{PredictedHigh: 90}, now)
		assert.False(t, ok)
		assert.InDelta(t, -0.15, a.Edge, 1e-9)
	})

	t.Run("past the target day", func(t *testing.T) {
		late := now.AddDate(0, 0, 3)
		_, ok := taker.Analyze(market, domain.Forecast{PredictedHigh: 80.5}, late)
		assert.False(t, ok)
	})

	t.Run("beyond the advance window", func(t *testing.T) {
		far := tempMarket(now.AddDate(0, 0, 5))
		_, ok := taker.Analyze(far, domain.Forecast{PredictedHigh: 80.5}, now)
		assert.False(t, ok)
	})
}

func TestEdgeOnHeldToken(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	market := tempMarket(now.AddDate(0, 0, 1))
	taker := newTestTaker(exchange.NewSimulator(1000, 0, testLogger()))

	t.Run("forecast still in held bucket", func(t *testing.T) {
		edge, ok := taker.Edge(market, domain.Forecast{PredictedHigh: 80.2}, "t-80", now)
		require.True(t, ok)
		assert.InDelta(t, 0.85-0.45, edge, 1e-9)
	})

	t.Run("forecast moved to another bucket", func(t *testing.T) {
		edge, ok := taker.Edge(market, domain.Forecast{PredictedHigh: 85}, "t-80", now)
		require.True(t, ok)
		assert.InDelta(t, (1-0.85)-0.45, edge, 1e-9)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, ok := taker.Edge(market, domain.Forecast{PredictedHigh: 80}, "t-missing", now)
		assert.False(t, ok)
	})
}

func TestShouldAdjust(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	market := tempMarket(now.AddDate(0, 0, 1))
	taker := newTestTaker(exchange.NewSimulator(1000, 0, testLogger()))

	t.Run("forecast left the held bucket", func(t *testing.T) {
		// t-low is cheap enough that its edge alone would not trigger the
		// exit threshold; leaving the bucket liquidates regardless.
		forecast := domain.Forecast{PredictedHigh: 80.5}
		edge, ok := taker.Edge(market, forecast, "t-low", now)
		require.True(t, ok)
		require.Greater(t, edge, -taker.cfg.ExitEdge)
		assert.True(t, taker.ShouldAdjust(market, forecast, "t-low", now))
	})

	t.Run("forecast in bucket with healthy edge", func(t *testing.T) {
		assert.False(t, taker.ShouldAdjust(market, domain.Forecast{PredictedHigh: 80.5}, "t-80", now))
	})

	t.Run("edge reversed past the exit threshold", func(t *testing.T) {
		// t-high trades at 0.90 against confidence 0.85.
		assert.True(t, taker.ShouldAdjust(market, domain.Forecast{PredictedHigh: 90}, "t-high", now))
	})

	t.Run("unknown token", func(t *testing.T) {
		assert.False(t, taker.ShouldAdjust(market, domain.Forecast{PredictedHigh: 80.5}, "t-missing", now))
	})
}

func TestPositionSize(t *testing.T) {
	taker := newTestTaker(exchange.NewSimulator(1000, 0, testLogger()))
	a := Analysis{Confidence: 0.75, Edge: 0.30, DaysAhead: 2}

	t.Run("per position cap then time decay", func(t *testing.T) {
		// Kelly gives 0.225 * 1000 = 225, capped at 100, decayed by 0.8.
		assert.InDelta(t, 80.0, taker.PositionSize(a, 1000, 0), 1e-9)
	})

	t.Run("market exposure cap", func(t *testing.T) {
		// Remaining room is 200 - 150 = 50, decayed by 0.8.
		assert.InDelta(t, 40.0, taker.PositionSize(a, 1000, 150), 1e-9)
	})

	t.Run("exhausted market budget", func(t *testing.T) {
		assert.Zero(t, taker.PositionSize(a, 1000, 200))
	})

	t.Run("no edge no size", func(t *testing.T) {
		assert.Zero(t, taker.PositionSize(Analysis{Confidence: 0.75, Edge: -0.1}, 1000, 0))
	})
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	market := tempMarket(now.AddDate(0, 0, 2))

	t.Run("fills and opens the position", func(t *testing.T) {
		sim := exchange.NewSimulator(1000, 0, testLogger())
		taker := newTestTaker(sim)

		a, ok := taker.Analyze(market, domain.Forecast{PredictedHigh: 80.5}, now)
		require.True(t, ok)

		result, err := taker.Execute(ctx, market, a)
		require.NoError(t, err)
		assert.True(t, result.Filled())

		pos, held, err := sim.Position(ctx, "t-80")
		require.NoError(t, err)
		require.True(t, held)
		assert.InDelta(t, 80.0/0.45, pos.Shares, 1e-9)

		balance, err := sim.Balance(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 920.0, balance, 1e-9)
	})

	t.Run("dust sizing skips the order", func(t *testing.T) {
		sim := exchange.NewSimulator(2, 0, testLogger())
		taker := newTestTaker(sim)

		a, ok := taker.Analyze(market, domain.Forecast{PredictedHigh: 80.5}, now)
		require.True(t, ok)

		result, err := taker.Execute(ctx, market, a)
		require.NoError(t, err)
		assert.False(t, result.Filled())
		assert.Empty(t, result.OrderID)

		_, held, err := sim.Position(ctx, "t-80")
		require.NoError(t, err)
		assert.False(t, held)
	})

	t.Run("pre-trade exposure check blocks the order", func(t *testing.T) {
		sim := exchange.NewSimulator(1000, 0, testLogger())
		risk := service.NewRiskService(1000, service.RiskConfig{
			MaxDailyLoss:         10,
			MaxExposurePerMarket: 50,
			MaxInventory:         100,
		}, testLogger())
		taker := NewPositionTaker(sim, risk, testTradingConfig(), nil, testLogger())

		a, ok := taker.Analyze(market, domain.Forecast{PredictedHigh: 80.5}, now)
		require.True(t, ok)

		_, err := taker.Execute(ctx, market, a)
		require.Error(t, err)

		_, held, err := sim.Position(ctx, "t-80")
		require.NoError(t, err)
		assert.False(t, held)
	})

	t.Run("exit flattens", func(t *testing.T) {
		sim := exchange.NewSimulator(1000, 0, testLogger())
		taker := newTestTaker(sim)

		a, _ := taker.Analyze(market, domain.Forecast{PredictedHigh: 80.5}, now)
		_, err := taker.Execute(ctx, market, a)
		require.NoError(t, err)

		result, err := taker.Exit(ctx, market, "t-80", 0.50)
		require.NoError(t, err)
		assert.True(t, result.Filled())

		_, held, err := sim.Position(ctx, "t-80")
		require.NoError(t, err)
		assert.False(t, held)
	})
}
