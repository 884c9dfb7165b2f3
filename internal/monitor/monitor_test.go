package monitor

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
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMonitor(handler ChangeHandler) *RealtimeMonitor {
	cfg := config.MonitorConfig{
		Enabled:        true,
		ChangeDegrees:  0.5,
		EndHour:        23,
		AdjustNotional: 50,
	}
	return NewRealtimeMonitor(nil, cfg, handler, nil, testLogger())
}

func TestDetectChange(t *testing.T) {
	t.Run("first reading seeds the baseline", func(t *testing.T) {
		m := newTestMonitor(nil)
		delta, changed := m.DetectChange("NYC", 78.0)
		assert.Zero(t, delta)
		assert.False(t, changed)
	})

	t.Run("below threshold is quiet", func(t *testing.T) {
		m := newTestMonitor(nil)
		m.DetectChange("NYC", 78.0)
		_, changed := m.DetectChange("NYC", 78.4)
		assert.False(t, changed)
		_, changed = m.DetectChange("NYC", 77.6)
		assert.False(t, changed)
	})

	t.Run("threshold boundary fires", func(t *testing.T) {
		m := newTestMonitor(nil)
		m.DetectChange("NYC", 78.0)
		delta, changed := m.DetectChange("NYC", 78.5)
		assert.True(t, changed)
		assert.InDelta(t, 0.5, delta, 1e-9)
	})

	t.Run("baseline only advances on a change", func(t *testing.T) {
		m := newTestMonitor(nil)
		m.DetectChange("NYC", 78.0)

		// Drift accumulates against the original baseline.
		_, changed := m.DetectChange("NYC", 78.3)
		assert.False(t, changed)
		delta, changed := m.DetectChange("NYC", 78.6)
		assert.True(t, changed)
		assert.InDelta(t, 0.6, delta, 1e-9)

		// New baseline is 78.6 now.
		_, changed = m.DetectChange("NYC", 78.8)
		assert.False(t, changed)
	})

	t.Run("cities are independent", func(t *testing.T) {
		m := newTestMonitor(nil)
		m.DetectChange("NYC", 78.0)
		_, changed := m.DetectChange("CHI", 40.0)
		assert.False(t, changed)
		_, changed = m.DetectChange("NYC", 79.0)
		assert.True(t, changed)
	})
}

func adjusterMarket() *domain.Market {
	return &domain.Market{
		ID:     "m1",
		City:   "NYC",
		Active: true,
		Outcomes: []domain.Outcome{
			{TokenID: "t-78", Label: "78-79°", Range: domain.TemperatureRange{Low: 78, High: 79}, Price: 0.40},
			{TokenID: "t-80", Label: "80-81°", Range: domain.TemperatureRange{Low: 80, High: 81}, Price: 0.35},
		},
	}
}

func TestAdjustForTemperature(t *testing.T) {
	ctx := context.Background()
	market := adjusterMarket()

	buy := func(sim *exchange.Simulator, tokenID string, price float64) {
		_, err := sim.PlaceOrder(ctx, domain.Order{
			MarketID: "m1",
			TokenID:  tokenID,
			Side:     domain.OrderSideBuy,
			Type:     domain.OrderTypeMarket,
			Price:    price,
			Size:     40,
		})
		require.NoError(t, err)
	}

	t.Run("same bucket is a no-op", func(t *testing.T) {
		sim := exchange.NewSimulator(1000, 0, testLogger())
		buy(sim, "t-78", 0.40)
		adj := NewPositionAdjuster(sim, 50, nil, testLogger())

		moved, err := adj.AdjustForTemperature(ctx, market, "t-78", 78.7)
		require.NoError(t, err)
		assert.False(t, moved)

		pos, held, _ := sim.Position(ctx, "t-78")
		require.True(t, held)
		assert.InDelta(t, 100.0, pos.Shares, 1e-9)
	})

	t.Run("bucket change swaps the position", func(t *testing.T) {
		sim := exchange.NewSimulator(1000, 0, testLogger())
		buy(sim, "t-78", 0.40)
		adj := NewPositionAdjuster(sim, 50, nil, testLogger())

		moved, err := adj.AdjustForTemperature(ctx, market, "t-78", 80.6)
		require.NoError(t, err)
		assert.True(t, moved)

		_, held, _ := sim.Position(ctx, "t-78")
		assert.False(t, held)

		pos, held, _ := sim.Position(ctx, "t-80")
		require.True(t, held)
		assert.InDelta(t, 50.0/0.35, pos.Shares, 1e-9)
	})

	t.Run("no held position still enters the observed bucket", func(t *testing.T) {
		sim := exchange.NewSimulator(1000, 0, testLogger())
		adj := NewPositionAdjuster(sim, 50, nil, testLogger())

		moved, err := adj.AdjustForTemperature(ctx, market, "", 80.2)
		require.NoError(t, err)
		assert.True(t, moved)

		_, held, _ := sim.Position(ctx, "t-80")
		assert.True(t, held)
	})

	t.Run("observed temperature outside buckets is a no-op", func(t *testing.T) {
		sim := exchange.NewSimulator(1000, 0, testLogger())
		adj := NewPositionAdjuster(sim, 50, nil, testLogger())

		moved, err := adj.AdjustForTemperature(ctx, market, "", 95.0)
		require.NoError(t, err)
		assert.False(t, moved)
	})
}

func TestMonitorRecordsReadings(t *testing.T) {
	m := newTestMonitor(nil)
	m.source = &fakeTemps{summaries: []domain.ObservationSummary{
		{CurrentMax: 78.0, LatestTemp: 77.2},
	}}

	require.NoError(t, m.Poll(context.Background(), "NYC"))
	require.NoError(t, m.Poll(context.Background(), "NYC"))

	readings := m.Readings("NYC")
	assert.Len(t, readings, 2)
	assert.Equal(t, "NYC", readings[0].City)
	assert.InDelta(t, 77.2, readings[0].Temperature, 1e-9)
}

func TestPollTracksDailyMaximum(t *testing.T) {
	ctx := context.Background()
	var moves [][2]float64
	m := newTestMonitor(func(ctx context.Context, city string, oldMax, newMax float64) error {
		moves = append(moves, [2]float64{oldMax, newMax})
		return nil
	})
	m.source = &fakeTemps{summaries: []domain.ObservationSummary{
		{CurrentMax: 75.0, LatestTemp: 75.0},
		{CurrentMax: 75.0, LatestTemp: 68.0},
		{CurrentMax: 76.5, LatestTemp: 70.0},
	}}

	require.NoError(t, m.Poll(ctx, "NYC"))

	// An evening cooldown drops the instantaneous reading but the day's
	// maximum stands, so nothing fires.
	require.NoError(t, m.Poll(ctx, "NYC"))
	assert.Empty(t, moves)

	require.NoError(t, m.Poll(ctx, "NYC"))
	require.Len(t, moves, 1)
	assert.InDelta(t, 75.0, moves[0][0], 1e-9)
	assert.InDelta(t, 76.5, moves[0][1], 1e-9)
}

type fakeTemps struct {
	summaries []domain.ObservationSummary
	calls     int
}

func (f *fakeTemps) ObservedMax(ctx context.Context, city string) (domain.ObservationSummary, error) {
	i := f.calls
	if i >= len(f.summaries) {
		i = len(f.summaries) - 1
	}
	f.calls++
	s := f.summaries[i]
	s.City = city
	s.At = time.Now()
	return s, nil
}
