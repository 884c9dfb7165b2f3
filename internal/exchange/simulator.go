package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/weatherbot/internal/domain"
	"github.com/google/uuid"
)

// Simulator is an in-memory venue for dry runs. It fills market orders
// immediately at the order price, charges the configured taker fee on
// notional, and tracks balance, positions, and a trade journal. Limit
// orders rest as open orders and never fill; they exist so the market maker
// can exercise its full quote/cancel cycle without touching real money.
type Simulator struct {
	mu          sync.Mutex
	balance     float64
	startEquity float64
	feeRate     float64
	positions   map[string]*domain.Position // keyed by token ID
	openOrders  map[string]domain.Order
	marks       map[string]float64 // last seen price per token
	trades      []domain.Trade
	feesPaid    float64
	startedAt   time.Time
	logger      *slog.Logger
}

// SessionReport summarizes a simulator session.
type SessionReport struct {
	StartedAt     time.Time
	StartBalance  float64
	Balance       float64
	Equity        float64
	PnL           float64
	FeesPaid      float64
	TradeCount    int
	OpenPositions int
	OpenOrders    int
}

// NewSimulator creates a simulator with the given starting balance and
// per-trade fee rate (e.g. 0.002 for 20 bps).
func NewSimulator(balance, feeRate float64, logger *slog.Logger) *Simulator {
	return &Simulator{
		balance:     balance,
		startEquity: balance,
		feeRate:     feeRate,
		positions:   make(map[string]*domain.Position),
		openOrders:  make(map[string]domain.Order),
		marks:       make(map[string]float64),
		startedAt:   time.Now(),
		logger:      logger.With(slog.String("component", "simulator")),
	}
}

// Balance returns the free cash balance.
func (s *Simulator) Balance(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

// Positions returns all open positions.
func (s *Simulator) Positions(ctx context.Context) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	return out, nil
}

// Position returns the position for one token.
func (s *Simulator) Position(ctx context.Context, tokenID string) (domain.Position, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[tokenID]
	if !ok {
		return domain.Position{}, false, nil
	}
	return *p, true, nil
}

// PlaceOrder executes a market order immediately or rests a limit order.
func (s *Simulator) PlaceOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error) {
	if order.Price <= 0 || order.Price >= 1 {
		return domain.OrderResult{}, fmt.Errorf("simulator: %w: price %g", domain.ErrInvalidOrder, order.Price)
	}
	if order.Size <= 0 {
		return domain.OrderResult{}, fmt.Errorf("simulator: %w: size %g", domain.ErrInvalidOrder, order.Size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.CreatedAt = time.Now()
	s.marks[order.TokenID] = order.Price

	if order.Type == domain.OrderTypeLimit {
		order.Status = domain.OrderStatusOpen
		s.openOrders[order.ID] = order
		s.logger.Debug("limit order resting",
			slog.String("order_id", order.ID),
			slog.String("token_id", order.TokenID),
			slog.String("side", string(order.Side)),
			slog.Float64("price", order.Price),
			slog.Float64("size", order.Size))
		return domain.OrderResult{OrderID: order.ID, Status: domain.OrderStatusOpen}, nil
	}

	switch order.Side {
	case domain.OrderSideBuy:
		return s.fillBuy(order)
	case domain.OrderSideSell:
		return s.fillSell(order)
	default:
		return domain.OrderResult{}, fmt.Errorf("simulator: %w: side %q", domain.ErrInvalidOrder, order.Side)
	}
}

// CancelOrder removes a resting limit order.
func (s *Simulator) CancelOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.openOrders[orderID]; !ok {
		return fmt.Errorf("simulator: cancel %s: %w", orderID, domain.ErrNotFound)
	}
	delete(s.openOrders, orderID)
	return nil
}

// CancelAll removes every resting limit order.
func (s *Simulator) CancelAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.openOrders = make(map[string]domain.Order)
	return nil
}

// ClosePosition sells the entire holding in tokenID at the given price.
// A missing position is not an error; the result reports zero shares.
func (s *Simulator) ClosePosition(ctx context.Context, tokenID string, price float64) (domain.OrderResult, error) {
	s.mu.Lock()
	pos, ok := s.positions[tokenID]
	if !ok || pos.Shares <= 0 {
		s.mu.Unlock()
		return domain.OrderResult{Status: domain.OrderStatusCancelled}, nil
	}
	notional := pos.Shares * price
	s.mu.Unlock()

	return s.PlaceOrder(ctx, domain.Order{
		MarketID: pos.MarketID,
		TokenID:  tokenID,
		Side:     domain.OrderSideSell,
		Type:     domain.OrderTypeMarket,
		Price:    price,
		Size:     notional,
	})
}

// SetMark records the latest observed price for equity marking.
func (s *Simulator) SetMark(tokenID string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[tokenID] = price
}

// Equity returns cash plus the marked value of all positions. Tokens with
// no observed price are marked at their average entry price.
func (s *Simulator) Equity() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.equityLocked()
}

// SessionPnL returns equity minus the session's starting equity.
func (s *Simulator) SessionPnL() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.equityLocked() - s.startEquity
}

// OpenOrders returns a copy of the resting limit orders.
func (s *Simulator) OpenOrders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Order, 0, len(s.openOrders))
	for _, o := range s.openOrders {
		out = append(out, o)
	}
	return out
}

// Trades returns a copy of the trade journal.
func (s *Simulator) Trades() []domain.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Trade, len(s.trades))
	copy(out, s.trades)
	return out
}

// Report returns the end-of-session summary.
func (s *Simulator) Report() SessionReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	equity := s.equityLocked()
	open := 0
	for _, p := range s.positions {
		if p.Shares > 0 {
			open++
		}
	}
	return SessionReport{
		StartedAt:     s.startedAt,
		StartBalance:  s.startEquity,
		Balance:       s.balance,
		Equity:        equity,
		PnL:           equity - s.startEquity,
		FeesPaid:      s.feesPaid,
		TradeCount:    len(s.trades),
		OpenPositions: open,
		OpenOrders:    len(s.openOrders),
	}
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// fillBuy executes a market buy. Caller must hold s.mu.
func (s *Simulator) fillBuy(order domain.Order) (domain.OrderResult, error) {
	notional := order.Size
	fee := notional * s.feeRate
	cost := notional + fee

	if cost > s.balance {
		return domain.OrderResult{}, fmt.Errorf("simulator: buy %.2f (fee %.2f) with balance %.2f: %w",
			notional, fee, s.balance, domain.ErrInsufficientBalance)
	}

	shares := notional / order.Price
	s.balance -= cost
	s.feesPaid += fee

	pos, ok := s.positions[order.TokenID]
	if !ok {
		pos = &domain.Position{
			MarketID: order.MarketID,
			TokenID:  order.TokenID,
			OpenedAt: time.Now(),
		}
		s.positions[order.TokenID] = pos
	}
	// Weighted average entry price across fills.
	totalCost := pos.Shares*pos.AvgPrice + notional
	pos.Shares += shares
	pos.AvgPrice = totalCost / pos.Shares
	pos.UpdatedAt = time.Now()

	s.journal(order, order.Price, shares, notional, fee)
	s.logger.Info("buy filled",
		slog.String("token_id", order.TokenID),
		slog.Float64("price", order.Price),
		slog.Float64("shares", shares),
		slog.Float64("notional", notional))

	return domain.OrderResult{
		OrderID:     order.ID,
		Status:      domain.OrderStatusFilled,
		FilledPrice: order.Price,
		Shares:      shares,
		Fee:         fee,
	}, nil
}

// fillSell executes a market sell. Caller must hold s.mu.
func (s *Simulator) fillSell(order domain.Order) (domain.OrderResult, error) {
	shares := order.Size / order.Price

	pos, ok := s.positions[order.TokenID]
	if !ok || pos.Shares+1e-9 < shares {
		held := 0.0
		if ok {
			held = pos.Shares
		}
		return domain.OrderResult{}, fmt.Errorf("simulator: sell %.4f shares of %s holding %.4f: %w",
			shares, order.TokenID, held, domain.ErrInsufficientShares)
	}

	notional := shares * order.Price
	fee := notional * s.feeRate
	s.balance += notional - fee
	s.feesPaid += fee

	pos.RealizedPnL += shares * (order.Price - pos.AvgPrice)
	pos.Shares -= shares
	pos.UpdatedAt = time.Now()
	if pos.Shares <= 1e-9 {
		delete(s.positions, order.TokenID)
	}

	s.journal(order, order.Price, shares, notional, fee)
	s.logger.Info("sell filled",
		slog.String("token_id", order.TokenID),
		slog.Float64("price", order.Price),
		slog.Float64("shares", shares),
		slog.Float64("notional", notional))

	return domain.OrderResult{
		OrderID:     order.ID,
		Status:      domain.OrderStatusFilled,
		FilledPrice: order.Price,
		Shares:      shares,
		Fee:         fee,
	}, nil
}

// journal appends a fill to the trade log. Caller must hold s.mu.
func (s *Simulator) journal(order domain.Order, price, shares, notional, fee float64) {
	s.trades = append(s.trades, domain.Trade{
		ID:         uuid.NewString(),
		OrderID:    order.ID,
		MarketID:   order.MarketID,
		TokenID:    order.TokenID,
		Side:       order.Side,
		Price:      price,
		Shares:     shares,
		Notional:   notional,
		Fee:        fee,
		Strategy:   order.Strategy,
		ExecutedAt: time.Now(),
	})
}

// equityLocked computes cash plus marked position value. Caller must hold s.mu.
func (s *Simulator) equityLocked() float64 {
	equity := s.balance
	for tokenID, p := range s.positions {
		mark, ok := s.marks[tokenID]
		if !ok {
			mark = p.AvgPrice
		}
		equity += p.Shares * mark
	}
	return equity
}
