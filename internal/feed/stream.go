// Package feed bridges the venue's websocket stream into the price cache
// and the strategy engine's reactive checks.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/weatherbot/internal/domain"
	"github.com/alanyoungcy/weatherbot/internal/platform/polymarket"
	"github.com/alanyoungcy/weatherbot/internal/strategy"
)

// AlertSink receives the stream-down alert when reconnects are exhausted.
type AlertSink interface {
	Publish(ctx context.Context, alert domain.Alert) error
}

// Stream subscribes to the outcome tokens of watched markets and fans live
// events out to the price cache and the engine. Prices written to the cache
// use the traded or quoted price keyed by outcome token.
type Stream struct {
	ws     *polymarket.WSClient
	engine *strategy.Engine
	prices domain.PriceCache // optional
	alerts AlertSink         // optional
	logger *slog.Logger

	mu      sync.RWMutex
	byToken map[string]*domain.Market
}

// NewStream creates a Stream over an unconnected websocket client.
func NewStream(ws *polymarket.WSClient, engine *strategy.Engine, prices domain.PriceCache, alerts AlertSink, logger *slog.Logger) *Stream {
	s := &Stream{
		ws:      ws,
		engine:  engine,
		prices:  prices,
		alerts:  alerts,
		logger:  logger.With(slog.String("component", "feed")),
		byToken: make(map[string]*domain.Market),
	}
	return s
}

// Watch subscribes to every outcome token of a market. Safe to call while
// the stream is running; re-watching a market refreshes its token mapping.
func (s *Stream) Watch(ctx context.Context, market *domain.Market) error {
	ids := make([]string, 0, len(market.Outcomes))
	s.mu.Lock()
	for _, outcome := range market.Outcomes {
		s.byToken[outcome.TokenID] = market
		ids = append(ids, outcome.TokenID)
	}
	s.mu.Unlock()
	return s.ws.Subscribe(ctx, ids)
}

// Run connects, installs the handlers, and blocks until the context ends or
// the websocket gives up reconnecting. The permanent-stop case raises a
// stream-down alert; trading continues on polled prices.
func (s *Stream) Run(ctx context.Context) error {
	s.ws.OnBook(func(snap domain.BookSnapshot) { s.handleBook(ctx, snap) })
	s.ws.OnPriceChange(func(change domain.PriceChange) { s.handlePriceChange(ctx, change) })
	s.ws.OnLastTrade(func(trade domain.LastTrade) { s.handleLastTrade(ctx, trade) })
	s.ws.OnTickSizeChange(func(change domain.TickSizeChange) { s.handleTickSize(change) })

	if err := s.ws.Connect(ctx); err != nil {
		return err
	}
	s.logger.Info("price stream started")

	select {
	case <-ctx.Done():
		_ = s.ws.Close()
		return ctx.Err()
	case <-s.ws.Stopped():
		s.logger.Error("price stream down, continuing on polled prices")
		if s.alerts != nil {
			_ = s.alerts.Publish(ctx, domain.Alert{
				Kind:     domain.AlertKindStreamDown,
				Severity: domain.AlertWarning,
				Message:  "websocket reconnect budget exhausted",
				At:       time.Now(),
			})
		}
		return nil
	}
}

func (s *Stream) handleBook(ctx context.Context, snap domain.BookSnapshot) {
	if s.prices == nil {
		return
	}
	bid, ask := snap.BestBid(), snap.BestAsk()
	if bid == 0 || ask == 0 {
		return
	}
	mid := (bid + ask) / 2
	if err := s.prices.SetPrice(ctx, snap.AssetID, mid, snap.Timestamp); err != nil {
		s.logger.Debug("price cache write failed", slog.String("error", err.Error()))
	}
}

func (s *Stream) handlePriceChange(ctx context.Context, change domain.PriceChange) {
	if s.prices != nil {
		if err := s.prices.SetPrice(ctx, change.AssetID, change.Price, change.Timestamp); err != nil {
			s.logger.Debug("price cache write failed", slog.String("error", err.Error()))
		}
	}
	if market := s.applyTick(change); market != nil && s.engine != nil {
		s.engine.OnPriceChange(ctx, market, change)
	}
}

// applyTick writes the tick's price into the tracked market's outcome, so
// the reactive edge check below sees the moved price rather than the scan
// snapshot's. Returns the tracked market, nil for unknown tokens.
func (s *Stream) applyTick(change domain.PriceChange) *domain.Market {
	s.mu.Lock()
	defer s.mu.Unlock()
	market := s.byToken[change.AssetID]
	if market == nil {
		return nil
	}
	if outcome, ok := market.OutcomeByToken(change.AssetID); ok && change.Price > 0 {
		outcome.Price = change.Price
	}
	return market
}

// handleTickSize surfaces minimum price increment changes; quotes finer than
// the venue's tick are rejected at order placement.
func (s *Stream) handleTickSize(change domain.TickSizeChange) {
	s.logger.Info("tick size changed",
		slog.String("asset_id", change.AssetID),
		slog.Float64("old", change.OldTickSize),
		slog.Float64("new", change.NewTickSize))
}

func (s *Stream) handleLastTrade(ctx context.Context, trade domain.LastTrade) {
	if s.prices == nil {
		return
	}
	if err := s.prices.SetPrice(ctx, trade.AssetID, trade.Price, trade.Timestamp); err != nil {
		s.logger.Debug("price cache write failed", slog.String("error", err.Error()))
	}
}
