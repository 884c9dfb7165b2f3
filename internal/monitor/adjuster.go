package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/weatherbot/internal/domain"
	"github.com/alanyoungcy/weatherbot/internal/exchange"
)

// AlertSink receives repositioning alerts. May be nil on the adjuster.
type AlertSink interface {
	Publish(ctx context.Context, alert domain.Alert) error
}

// PositionAdjuster moves the bot's bet to a new outcome bucket after the
// observed temperature leaves the held one. The old position is closed at
// its current market price and a fixed notional is bought into the new
// bucket at market.
type PositionAdjuster struct {
	exchange exchange.Exchange
	notional float64
	alerts   AlertSink
	logger   *slog.Logger
}

// NewPositionAdjuster creates an adjuster buying notional USDC per switch.
func NewPositionAdjuster(ex exchange.Exchange, notional float64, alerts AlertSink, logger *slog.Logger) *PositionAdjuster {
	return &PositionAdjuster{
		exchange: ex,
		notional: notional,
		alerts:   alerts,
		logger:   logger.With(slog.String("component", "adjuster")),
	}
}

// AdjustForTemperature repositions within a market after a temperature move.
// heldTokenID may be empty when nothing is held. It returns true when a
// switch was executed; staying in the same bucket is a no-op.
func (a *PositionAdjuster) AdjustForTemperature(ctx context.Context, market *domain.Market, heldTokenID string, observedTemp float64) (bool, error) {
	target, ok := market.OutcomeForTemperature(observedTemp)
	if !ok {
		a.logger.Debug("observed temperature outside every bucket",
			slog.String("market_id", market.ID),
			slog.Float64("temperature", observedTemp))
		return false, nil
	}
	if target.TokenID == heldTokenID {
		return false, nil
	}

	if heldTokenID != "" {
		held, ok, err := a.exchange.Position(ctx, heldTokenID)
		if err != nil {
			return false, fmt.Errorf("adjuster: position: %w", err)
		}
		if ok && held.Shares > 0 {
			price := a.closePrice(market, heldTokenID)
			if _, err := a.exchange.ClosePosition(ctx, heldTokenID, price); err != nil {
				return false, fmt.Errorf("adjuster: close %s: %w", heldTokenID, err)
			}
		}
	}

	result, err := a.exchange.PlaceOrder(ctx, domain.Order{
		MarketID: market.ID,
		TokenID:  target.TokenID,
		Side:     domain.OrderSideBuy,
		Type:     domain.OrderTypeMarket,
		Price:    target.Price,
		Size:     a.notional,
		Strategy: "adjuster",
	})
	if err != nil {
		return false, fmt.Errorf("adjuster: reposition: %w", err)
	}

	a.logger.Info("position adjusted",
		slog.String("market_id", market.ID),
		slog.String("from_token", heldTokenID),
		slog.String("to_token", target.TokenID),
		slog.Float64("temperature", observedTemp),
		slog.String("order_id", result.OrderID))

	a.alert(ctx, domain.Alert{
		Kind:     domain.AlertKindTempAdjustment,
		Severity: domain.AlertWarning,
		MarketID: market.ID,
		Message:  fmt.Sprintf("moved to %s after %.1f reading", target.Label, observedTemp),
		At:       time.Now(),
	})
	return true, nil
}

// closePrice marks the held token at its current outcome price, falling
// back to the position's entry price when the market no longer lists it.
func (a *PositionAdjuster) closePrice(market *domain.Market, tokenID string) float64 {
	if outcome, ok := market.OutcomeByToken(tokenID); ok {
		return outcome.Price
	}
	pos, ok, err := a.exchange.Position(context.Background(), tokenID)
	if err == nil && ok {
		return pos.AvgPrice
	}
	return 0.5
}

func (a *PositionAdjuster) alert(ctx context.Context, alert domain.Alert) {
	if a.alerts == nil {
		return
	}
	if err := a.alerts.Publish(ctx, alert); err != nil {
		a.logger.Warn("alert publish failed", slog.String("error", err.Error()))
	}
}
