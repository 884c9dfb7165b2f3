package domain

import "time"

// Position is the net holding in one outcome token.
type Position struct {
	MarketID    string
	TokenID     string
	Shares      float64
	AvgPrice    float64
	RealizedPnL float64
	OpenedAt    time.Time
	UpdatedAt   time.Time
}

// Value returns the mark-to-market value of the position.
func (p Position) Value(mark float64) float64 {
	return p.Shares * mark
}

// UnrealizedPnL returns the open profit against the average entry price.
func (p Position) UnrealizedPnL(mark float64) float64 {
	return p.Shares * (mark - p.AvgPrice)
}

// CostBasis returns the notional paid for the current shares.
func (p Position) CostBasis() float64 {
	return p.Shares * p.AvgPrice
}
