// Package service holds cross-strategy services: session risk accounting
// and circuit breakers.
package service

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

// RiskConfig holds the tunable parameters for risk checks.
type RiskConfig struct {
	MaxDailyLoss         float64
	MaxExposurePerMarket float64
	MaxInventory         float64
}

// RiskService tracks session P&L against the starting equity and enforces
// the circuit breakers. The daily-loss breaker is fatal and sticky: once
// tripped the session stays halted until the process restarts. The inventory
// breaker only warns.
type RiskService struct {
	cfg    RiskConfig
	logger *slog.Logger

	mu           sync.Mutex
	sessionStart float64
	halted       bool
	haltReason   string
}

// NewRiskService creates a RiskService anchored at the session's starting
// equity.
func NewRiskService(startEquity float64, cfg RiskConfig, logger *slog.Logger) *RiskService {
	return &RiskService{
		cfg:          cfg,
		logger:       logger.With(slog.String("component", "risk_service")),
		sessionStart: startEquity,
	}
}

// SessionPnL returns equity minus the session's starting equity.
func (s *RiskService) SessionPnL(equity float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return equity - s.sessionStart
}

// CheckDailyLoss trips the fatal breaker when the session loss exceeds the
// configured maximum. Once tripped every subsequent call fails.
func (s *RiskService) CheckDailyLoss(equity float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted {
		return fmt.Errorf("risk_service: %w: %s", domain.ErrCircuitBreaker, s.haltReason)
	}

	pnl := equity - s.sessionStart
	if pnl < -s.cfg.MaxDailyLoss {
		s.halted = true
		s.haltReason = fmt.Sprintf("session loss %.2f exceeds limit %.2f", -pnl, s.cfg.MaxDailyLoss)
		s.logger.Error("daily loss circuit breaker tripped",
			slog.Float64("pnl", pnl),
			slog.Float64("limit", s.cfg.MaxDailyLoss))
		return fmt.Errorf("risk_service: %w: %s", domain.ErrCircuitBreaker, s.haltReason)
	}
	return nil
}

// CheckInventory reports whether net inventory breaches the soft limit.
// A breach is a warning, not a halt.
func (s *RiskService) CheckInventory(netShares float64) bool {
	breached := math.Abs(netShares) > s.cfg.MaxInventory
	if breached {
		s.logger.Warn("inventory limit breached",
			slog.Float64("net_shares", netShares),
			slog.Float64("limit", s.cfg.MaxInventory))
	}
	return breached
}

// PreTradeCheck validates an order notional against the per-market exposure
// limit and the halt state.
func (s *RiskService) PreTradeCheck(size, marketExposure float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted {
		return fmt.Errorf("risk_service: %w: %s", domain.ErrCircuitBreaker, s.haltReason)
	}
	if marketExposure+size > s.cfg.MaxExposurePerMarket {
		return fmt.Errorf("risk_service: exposure %.2f + size %.2f exceeds market limit %.2f",
			marketExposure, size, s.cfg.MaxExposurePerMarket)
	}
	return nil
}

// Halted reports whether the fatal breaker has tripped.
func (s *RiskService) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// HaltReason returns the reason recorded when the breaker tripped.
func (s *RiskService) HaltReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.haltReason
}
