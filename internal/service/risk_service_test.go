package service

import (
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

func newTestRisk(start float64) *RiskService {
	return NewRiskService(start, RiskConfig{
		MaxDailyLoss:         50,
		MaxExposurePerMarket: 200,
		MaxInventory:         100,
	}, testLogger())
}

func TestSessionPnL(t *testing.T) {
	risk := newTestRisk(1000)
	assert.Equal(t, 0.0, risk.SessionPnL(1000))
	assert.Equal(t, 25.0, risk.SessionPnL(1025))
	assert.Equal(t, -40.0, risk.SessionPnL(960))
}

func TestCheckDailyLoss(t *testing.T) {
	risk := newTestRisk(1000)

	require.NoError(t, risk.CheckDailyLoss(1000))
	// A loss exactly at the limit does not trip the breaker.
	require.NoError(t, risk.CheckDailyLoss(950))
	assert.False(t, risk.Halted())

	err := risk.CheckDailyLoss(949)
	require.ErrorIs(t, err, domain.ErrCircuitBreaker)
	assert.True(t, risk.Halted())
	assert.NotEmpty(t, risk.HaltReason())
}

func TestDailyLossBreakerIsSticky(t *testing.T) {
	risk := newTestRisk(1000)

	require.Error(t, risk.CheckDailyLoss(900))

	// Recovered equity does not clear the halt.
	err := risk.CheckDailyLoss(1100)
	assert.ErrorIs(t, err, domain.ErrCircuitBreaker)
	assert.True(t, risk.Halted())
}

func TestCheckInventory(t *testing.T) {
	risk := newTestRisk(1000)

	assert.False(t, risk.CheckInventory(0))
	assert.False(t, risk.CheckInventory(100))
	assert.True(t, risk.CheckInventory(101))
	assert.True(t, risk.CheckInventory(-150))

	// Inventory breaches never halt the session.
	assert.False(t, risk.Halted())
}

func TestPreTradeCheck(t *testing.T) {
	risk := newTestRisk(1000)

	require.NoError(t, risk.PreTradeCheck(50, 100))
	require.NoError(t, risk.PreTradeCheck(100, 100))
	assert.Error(t, risk.PreTradeCheck(101, 100))
}

func TestPreTradeCheckAfterHalt(t *testing.T) {
	risk := newTestRisk(1000)
	require.Error(t, risk.CheckDailyLoss(900))

	err := risk.PreTradeCheck(1, 0)
	assert.ErrorIs(t, err, domain.ErrCircuitBreaker)
}
