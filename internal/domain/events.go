package domain

import "time"

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price float64
	Size  float64
}

// BookSnapshot is a full snapshot of bids and asks for an outcome token.
type BookSnapshot struct {
	AssetID   string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// BestBid returns the highest bid, 0 when the book is empty.
func (s BookSnapshot) BestBid() float64 {
	best := 0.0
	for _, l := range s.Bids {
		if l.Price > best {
			best = l.Price
		}
	}
	return best
}

// BestAsk returns the lowest ask, 0 when the book is empty.
func (s BookSnapshot) BestAsk() float64 {
	best := 0.0
	for _, l := range s.Asks {
		if best == 0 || l.Price < best {
			best = l.Price
		}
	}
	return best
}

// PriceChange is a top-of-book price move for an outcome token.
type PriceChange struct {
	AssetID   string
	Price     float64
	Side      string // "BUY" or "SELL"
	Size      float64
	Timestamp time.Time
}

// LastTrade is the most recent execution reported for an outcome token.
type LastTrade struct {
	AssetID   string
	Price     float64
	Size      float64
	Timestamp time.Time
}

// TickSizeChange reports a change of the minimum price increment.
type TickSizeChange struct {
	AssetID     string
	OldTickSize float64
	NewTickSize float64
	Timestamp   time.Time
}
