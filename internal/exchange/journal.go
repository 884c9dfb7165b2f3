package exchange

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

// Journaled decorates an Exchange with persistent trade and position
// records. Persistence failures are logged and never fail the trade; the
// fill already happened.
type Journaled struct {
	Exchange

	trades    domain.TradeStore    // optional
	positions domain.PositionStore // optional
	logger    *slog.Logger
}

// NewJournaled wraps inner with persistence. Either store may be nil.
func NewJournaled(inner Exchange, trades domain.TradeStore, positions domain.PositionStore, logger *slog.Logger) *Journaled {
	return &Journaled{
		Exchange:  inner,
		trades:    trades,
		positions: positions,
		logger:    logger.With(slog.String("component", "journal")),
	}
}

// PlaceOrder forwards to the inner exchange and records any fill.
func (j *Journaled) PlaceOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error) {
	result, err := j.Exchange.PlaceOrder(ctx, order)
	if err != nil {
		return result, err
	}
	if result.Filled() {
		j.record(ctx, order, result)
		j.syncPosition(ctx, order.MarketID, order.TokenID)
	}
	return result, nil
}

// ClosePosition forwards to the inner exchange and records the exit fill.
func (j *Journaled) ClosePosition(ctx context.Context, tokenID string, price float64) (domain.OrderResult, error) {
	pos, held, _ := j.Exchange.Position(ctx, tokenID)

	result, err := j.Exchange.ClosePosition(ctx, tokenID, price)
	if err != nil {
		return result, err
	}
	if result.Filled() && held {
		j.record(ctx, domain.Order{
			MarketID: pos.MarketID,
			TokenID:  tokenID,
			Side:     domain.OrderSideSell,
			Type:     domain.OrderTypeMarket,
			Price:    price,
			Size:     pos.Shares * price,
		}, result)
		j.syncPosition(ctx, pos.MarketID, tokenID)
	}
	return result, nil
}

func (j *Journaled) record(ctx context.Context, order domain.Order, result domain.OrderResult) {
	if j.trades == nil {
		return
	}
	trade := domain.Trade{
		ID:         uuid.NewString(),
		OrderID:    result.OrderID,
		MarketID:   order.MarketID,
		TokenID:    order.TokenID,
		Side:       order.Side,
		Price:      result.FilledPrice,
		Shares:     result.Shares,
		Notional:   order.Size,
		Fee:        result.Fee,
		Strategy:   order.Strategy,
		ExecutedAt: time.Now(),
	}
	if err := j.trades.Record(ctx, trade); err != nil {
		j.logger.Warn("trade record failed",
			slog.String("order_id", result.OrderID),
			slog.String("error", err.Error()))
	}
}

// syncPosition mirrors the exchange's current view of a token into the
// position store, deleting the row once the position is flat.
func (j *Journaled) syncPosition(ctx context.Context, marketID, tokenID string) {
	if j.positions == nil {
		return
	}
	pos, held, err := j.Exchange.Position(ctx, tokenID)
	if err != nil {
		j.logger.Warn("position read failed",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()))
		return
	}
	if !held {
		if err := j.positions.Delete(ctx, tokenID); err != nil {
			j.logger.Warn("position delete failed",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()))
		}
		return
	}
	pos.MarketID = marketID
	if err := j.positions.Upsert(ctx, pos); err != nil {
		j.logger.Warn("position upsert failed",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()))
	}
}
