package domain

import "time"

// Trade is an executed fill, journaled for the session report and the
// persistent trade history.
type Trade struct {
	ID         string
	OrderID    string
	MarketID   string
	TokenID    string
	Side       OrderSide
	Price      float64
	Shares     float64
	Notional   float64
	Fee        float64
	Strategy   string
	ExecutedAt time.Time
}
