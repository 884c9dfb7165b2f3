package domain

import (
	"context"
	"time"
)

// TradeStore journals executed fills.
type TradeStore interface {
	Record(ctx context.Context, trade Trade) error
	History(ctx context.Context, marketID string, since time.Time) ([]Trade, error)
}

// PositionStore persists net positions across restarts.
type PositionStore interface {
	Upsert(ctx context.Context, pos Position) error
	Get(ctx context.Context, tokenID string) (Position, error)
	List(ctx context.Context) ([]Position, error)
	Delete(ctx context.Context, tokenID string) error
}
