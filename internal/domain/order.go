package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType distinguishes resting limit orders from immediate market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusPartial   OrderStatus = "partial"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Order is a request to trade one outcome token. Size is USDC notional for
// buys and is converted to shares at the fill price.
type Order struct {
	ID         string
	MarketID   string
	TokenID    string
	Side       OrderSide
	Type       OrderType
	Price      float64 // limit price in [0,1]; ignored for market orders
	Size       float64 // USDC notional
	FilledSize float64
	Status     OrderStatus
	Strategy   string
	CreatedAt  time.Time
}

// OrderResult is the venue's response to an order submission.
type OrderResult struct {
	OrderID     string
	Status      OrderStatus
	FilledPrice float64
	Shares      float64 // shares acquired or released by the fill
	Fee         float64
	Message     string
}

// Filled reports whether the order ended with any execution.
func (r OrderResult) Filled() bool {
	return r.Status == OrderStatusFilled || r.Status == OrderStatusPartial
}
