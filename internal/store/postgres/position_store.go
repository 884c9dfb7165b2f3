package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL, keyed by
// outcome token.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Upsert writes the net position for a token, replacing any existing row.
func (s *PositionStore) Upsert(ctx context.Context, pos domain.Position) error {
	const query = `
		INSERT INTO positions (
			token_id, market_id, shares, avg_price, realized_pnl, opened_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (token_id) DO UPDATE SET
			market_id    = EXCLUDED.market_id,
			shares       = EXCLUDED.shares,
			avg_price    = EXCLUDED.avg_price,
			realized_pnl = EXCLUDED.realized_pnl,
			updated_at   = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		pos.TokenID, pos.MarketID, pos.Shares, pos.AvgPrice,
		pos.RealizedPnL, pos.OpenedAt, pos.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s: %w", pos.TokenID, err)
	}
	return nil
}

// Get returns the position for a token, or domain.ErrNotFound.
func (s *PositionStore) Get(ctx context.Context, tokenID string) (domain.Position, error) {
	const query = `
		SELECT token_id, market_id, shares, avg_price, realized_pnl, opened_at, updated_at
		FROM positions WHERE token_id = $1`

	var pos domain.Position
	err := s.pool.QueryRow(ctx, query, tokenID).Scan(
		&pos.TokenID, &pos.MarketID, &pos.Shares, &pos.AvgPrice,
		&pos.RealizedPnL, &pos.OpenedAt, &pos.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", tokenID, err)
	}
	return pos, nil
}

// List returns every persisted position.
func (s *PositionStore) List(ctx context.Context) ([]domain.Position, error) {
	const query = `
		SELECT token_id, market_id, shares, avg_price, realized_pnl, opened_at, updated_at
		FROM positions ORDER BY updated_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var pos domain.Position
		if err := rows.Scan(
			&pos.TokenID, &pos.MarketID, &pos.Shares, &pos.AvgPrice,
			&pos.RealizedPnL, &pos.OpenedAt, &pos.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list positions rows: %w", err)
	}
	return positions, nil
}

// Delete removes the position row for a token. Deleting a missing row is
// not an error.
func (s *PositionStore) Delete(ctx context.Context, tokenID string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM positions WHERE token_id = $1", tokenID); err != nil {
		return fmt.Errorf("postgres: delete position %s: %w", tokenID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
