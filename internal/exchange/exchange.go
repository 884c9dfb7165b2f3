// Package exchange abstracts order execution so strategies run identically
// against the live CLOB and the dry-run simulator.
package exchange

import (
	"context"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

// Exchange places and cancels orders and reports balances and positions.
// Market orders carry the current market price in Order.Price so fills and
// share conversion are deterministic.
type Exchange interface {
	Balance(ctx context.Context) (float64, error)
	Positions(ctx context.Context) ([]domain.Position, error)
	Position(ctx context.Context, tokenID string) (domain.Position, bool, error)
	PlaceOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	CancelAll(ctx context.Context) error
	ClosePosition(ctx context.Context, tokenID string, price float64) (domain.OrderResult, error)
}
