package exchange

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func marketBuy(tokenID string, price, notional float64) domain.Order {
	return domain.Order{
		MarketID: "m1",
		TokenID:  tokenID,
		Side:     domain.OrderSideBuy,
		Type:     domain.OrderTypeMarket,
		Price:    price,
		Size:     notional,
	}
}

func TestSimulatorMarketBuy(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1000, 0.002, testLogger())

	res, err := sim.PlaceOrder(ctx, marketBuy("tok-a", 0.40, 100))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, res.Status)
	assert.InDelta(t, 250.0, res.Shares, 1e-9)
	assert.InDelta(t, 0.2, res.Fee, 1e-9)

	balance, err := sim.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 899.8, balance, 1e-9)

	pos, ok, err := sim.Position(ctx, "tok-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 250.0, pos.Shares, 1e-9)
	assert.InDelta(t, 0.40, pos.AvgPrice, 1e-9)
}

func TestSimulatorWeightedAverageEntry(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1000, 0, testLogger())

	_, err := sim.PlaceOrder(ctx, marketBuy("tok-a", 0.40, 100))
	require.NoError(t, err)
	_, err = sim.PlaceOrder(ctx, marketBuy("tok-a", 0.50, 100))
	require.NoError(t, err)

	pos, ok, err := sim.Position(ctx, "tok-a")
	require.NoError(t, err)
	require.True(t, ok)
	// 250 + 200 shares for 200 USDC total.
	assert.InDelta(t, 450.0, pos.Shares, 1e-9)
	assert.InDelta(t, 200.0/450.0, pos.AvgPrice, 1e-9)
}

func TestSimulatorInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(50, 0.002, testLogger())

	_, err := sim.PlaceOrder(ctx, marketBuy("tok-a", 0.40, 50))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// Balance untouched after the rejection.
	balance, err := sim.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50.0, balance)
}

func TestSimulatorSell(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1000, 0, testLogger())

	_, err := sim.PlaceOrder(ctx, marketBuy("tok-a", 0.40, 100))
	require.NoError(t, err)

	res, err := sim.PlaceOrder(ctx, domain.Order{
		MarketID: "m1",
		TokenID:  "tok-a",
		Side:     domain.OrderSideSell,
		Type:     domain.OrderTypeMarket,
		Price:    0.50,
		Size:     125, // all 250 shares at 0.50
	})
	require.NoError(t, err)
	assert.InDelta(t, 250.0, res.Shares, 1e-9)

	// Flat position is removed entirely.
	_, ok, err := sim.Position(ctx, "tok-a")
	require.NoError(t, err)
	assert.False(t, ok)

	balance, err := sim.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1025.0, balance, 1e-9)
}

func TestSimulatorSellWithoutShares(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1000, 0, testLogger())

	_, err := sim.PlaceOrder(ctx, domain.Order{
		TokenID: "tok-a",
		Side:    domain.OrderSideSell,
		Type:    domain.OrderTypeMarket,
		Price:   0.50,
		Size:    10,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)
}

func TestSimulatorRejectsInvalidOrders(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1000, 0, testLogger())

	_, err := sim.PlaceOrder(ctx, marketBuy("tok-a", 0, 100))
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	_, err = sim.PlaceOrder(ctx, marketBuy("tok-a", 1.0, 100))
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	_, err = sim.PlaceOrder(ctx, marketBuy("tok-a", 0.5, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestSimulatorLimitOrdersRest(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1000, 0, testLogger())

	res, err := sim.PlaceOrder(ctx, domain.Order{
		TokenID: "tok-a",
		Side:    domain.OrderSideBuy,
		Type:    domain.OrderTypeLimit,
		Price:   0.40,
		Size:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusOpen, res.Status)
	require.NotEmpty(t, res.OrderID)
	assert.Equal(t, 1, sim.Report().OpenOrders)

	// Resting orders reserve nothing.
	balance, err := sim.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, balance)

	require.NoError(t, sim.CancelOrder(ctx, res.OrderID))
	assert.Equal(t, 0, sim.Report().OpenOrders)

	err = sim.CancelOrder(ctx, res.OrderID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSimulatorCancelAll(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1000, 0, testLogger())

	for i := 0; i < 3; i++ {
		_, err := sim.PlaceOrder(ctx, domain.Order{
			TokenID: "tok-a",
			Side:    domain.OrderSideBuy,
			Type:    domain.OrderTypeLimit,
			Price:   0.40,
			Size:    10,
		})
		require.NoError(t, err)
	}
	require.Equal(t, 3, sim.Report().OpenOrders)

	require.NoError(t, sim.CancelAll(ctx))
	assert.Equal(t, 0, sim.Report().OpenOrders)
}

func TestSimulatorClosePosition(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1000, 0, testLogger())

	_, err := sim.PlaceOrder(ctx, marketBuy("tok-a", 0.40, 100))
	require.NoError(t, err)

	res, err := sim.ClosePosition(ctx, "tok-a", 0.60)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, res.Status)
	assert.InDelta(t, 250.0, res.Shares, 1e-9)

	balance, err := sim.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1050.0, balance, 1e-9)
}

func TestSimulatorCloseMissingPosition(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1000, 0, testLogger())

	res, err := sim.ClosePosition(ctx, "tok-zzz", 0.50)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, res.Status)
	assert.Zero(t, res.Shares)
}

func TestSimulatorEquityAndPnL(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1000, 0, testLogger())

	_, err := sim.PlaceOrder(ctx, marketBuy("tok-a", 0.40, 100))
	require.NoError(t, err)

	// Marked at entry the session is flat.
	assert.InDelta(t, 1000.0, sim.Equity(), 1e-9)
	assert.InDelta(t, 0.0, sim.SessionPnL(), 1e-9)

	sim.SetMark("tok-a", 0.60)
	assert.InDelta(t, 1050.0, sim.Equity(), 1e-9)
	assert.InDelta(t, 50.0, sim.SessionPnL(), 1e-9)

	sim.SetMark("tok-a", 0.20)
	assert.InDelta(t, -50.0, sim.SessionPnL(), 1e-9)
}

func TestSimulatorReport(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1000, 0.002, testLogger())

	_, err := sim.PlaceOrder(ctx, marketBuy("tok-a", 0.40, 100))
	require.NoError(t, err)
	_, err = sim.ClosePosition(ctx, "tok-a", 0.40)
	require.NoError(t, err)

	report := sim.Report()
	assert.Equal(t, 1000.0, report.StartBalance)
	assert.Equal(t, 2, report.TradeCount)
	assert.Equal(t, 0, report.OpenPositions)
	assert.InDelta(t, 0.4, report.FeesPaid, 1e-9)
	// Round trip at the same price loses exactly the fees.
	assert.InDelta(t, -0.4, report.PnL, 1e-9)

	trades := sim.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, domain.OrderSideBuy, trades[0].Side)
	assert.Equal(t, domain.OrderSideSell, trades[1].Side)
}
