package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Record inserts an executed fill. Re-recording the same trade ID is a no-op.
func (s *TradeStore) Record(ctx context.Context, trade domain.Trade) error {
	const query = `
		INSERT INTO trades (
			id, order_id, market_id, token_id, side,
			price, shares, notional, fee, strategy, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		trade.ID, trade.OrderID, trade.MarketID, trade.TokenID, string(trade.Side),
		trade.Price, trade.Shares, trade.Notional, trade.Fee, trade.Strategy, trade.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record trade %s: %w", trade.ID, err)
	}
	return nil
}

// History returns fills for a market since the given time, newest first.
// An empty marketID returns fills across all markets.
func (s *TradeStore) History(ctx context.Context, marketID string, since time.Time) ([]domain.Trade, error) {
	const base = `
		SELECT id, order_id, market_id, token_id, side,
		       price, shares, notional, fee, strategy, executed_at
		FROM trades
		WHERE executed_at >= $1`

	var (
		rows pgx.Rows
		err  error
	)
	if marketID == "" {
		rows, err = s.pool.Query(ctx, base+" ORDER BY executed_at DESC", since)
	} else {
		rows, err = s.pool.Query(ctx, base+" AND market_id = $2 ORDER BY executed_at DESC", since, marketID)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: trade history: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t    domain.Trade
			side string
		)
		if err := rows.Scan(
			&t.ID, &t.OrderID, &t.MarketID, &t.TokenID, &side,
			&t.Price, &t.Shares, &t.Notional, &t.Fee, &t.Strategy, &t.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		t.Side = domain.OrderSide(side)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: trade history rows: %w", err)
	}
	return trades, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
