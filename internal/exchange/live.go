package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/weatherbot/internal/domain"
	"github.com/alanyoungcy/weatherbot/internal/platform/polymarket"
)

// Live routes orders to the Polymarket CLOB. Positions are tracked locally
// from observed fills; the CLOB API exposes collateral balance but not a
// position feed, so the bot reconciles holdings from its own executions.
type Live struct {
	clob   *polymarket.ClobClient
	logger *slog.Logger

	mu        sync.Mutex
	positions map[string]*domain.Position
}

// NewLive creates a live exchange backed by an authenticated CLOB client.
func NewLive(clob *polymarket.ClobClient, logger *slog.Logger) *Live {
	return &Live{
		clob:      clob,
		logger:    logger.With(slog.String("component", "live_exchange")),
		positions: make(map[string]*domain.Position),
	}
}

// Balance returns the available USDC collateral.
func (l *Live) Balance(ctx context.Context) (float64, error) {
	return l.clob.GetBalance(ctx)
}

// Positions returns the locally tracked positions.
func (l *Live) Positions(ctx context.Context) ([]domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	return out, nil
}

// Position returns the tracked position for one token.
func (l *Live) Position(ctx context.Context, tokenID string) (domain.Position, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[tokenID]
	if !ok {
		return domain.Position{}, false, nil
	}
	return *p, true, nil
}

// PlaceOrder signs and submits the order, then applies any reported fill to
// the local position book.
func (l *Live) PlaceOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error) {
	result, err := l.clob.PostOrder(ctx, order)
	if err != nil {
		return result, err
	}

	if result.Filled() {
		l.applyFill(order, result)
	}

	l.logger.Info("order submitted",
		slog.String("order_id", result.OrderID),
		slog.String("token_id", order.TokenID),
		slog.String("side", string(order.Side)),
		slog.String("status", string(result.Status)),
		slog.Float64("price", order.Price),
		slog.Float64("size", order.Size))

	return result, nil
}

// CancelOrder cancels one resting order.
func (l *Live) CancelOrder(ctx context.Context, orderID string) error {
	return l.clob.CancelOrder(ctx, orderID)
}

// CancelAll cancels every resting order for the wallet.
func (l *Live) CancelAll(ctx context.Context) error {
	return l.clob.CancelAll(ctx)
}

// ClosePosition sells the entire tracked holding in tokenID at the given
// price. A missing position is not an error.
func (l *Live) ClosePosition(ctx context.Context, tokenID string, price float64) (domain.OrderResult, error) {
	l.mu.Lock()
	pos, ok := l.positions[tokenID]
	if !ok || pos.Shares <= 0 {
		l.mu.Unlock()
		return domain.OrderResult{Status: domain.OrderStatusCancelled}, nil
	}
	notional := pos.Shares * price
	marketID := pos.MarketID
	l.mu.Unlock()

	result, err := l.PlaceOrder(ctx, domain.Order{
		MarketID: marketID,
		TokenID:  tokenID,
		Side:     domain.OrderSideSell,
		Type:     domain.OrderTypeMarket,
		Price:    price,
		Size:     notional,
	})
	if err != nil {
		return result, fmt.Errorf("close position %s: %w", tokenID, err)
	}
	return result, nil
}

// applyFill folds an executed order into the local position book.
func (l *Live) applyFill(order domain.Order, result domain.OrderResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[order.TokenID]
	if !ok {
		pos = &domain.Position{
			MarketID: order.MarketID,
			TokenID:  order.TokenID,
			OpenedAt: time.Now(),
		}
		l.positions[order.TokenID] = pos
	}

	switch order.Side {
	case domain.OrderSideBuy:
		totalCost := pos.Shares*pos.AvgPrice + result.Shares*result.FilledPrice
		pos.Shares += result.Shares
		if pos.Shares > 0 {
			pos.AvgPrice = totalCost / pos.Shares
		}
	case domain.OrderSideSell:
		pos.RealizedPnL += result.Shares * (result.FilledPrice - pos.AvgPrice)
		pos.Shares -= result.Shares
		if pos.Shares <= 1e-9 {
			delete(l.positions, order.TokenID)
			return
		}
	}
	pos.UpdatedAt = time.Now()
}
