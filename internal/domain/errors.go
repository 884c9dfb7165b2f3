package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrMarketNotFound      = errors.New("market not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrOrderRejected       = errors.New("order rejected")
	ErrInvalidOrder        = errors.New("invalid order parameters")
	ErrCircuitBreaker      = errors.New("circuit breaker tripped")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrSigningFailed       = errors.New("signing failed")
	ErrStreamClosed        = errors.New("stream permanently closed")
)
