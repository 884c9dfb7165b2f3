package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/weatherbot/internal/config"
	"github.com/alanyoungcy/weatherbot/internal/domain"
	"github.com/alanyoungcy/weatherbot/internal/exchange"
	"github.com/alanyoungcy/weatherbot/internal/service"
)

// Quote is a two-sided quote for one outcome token.
type Quote struct {
	Bid     float64
	Ask     float64
	BidSize float64
	AskSize float64
}

// EquityFunc returns the current account equity for circuit breaker checks.
type EquityFunc func(ctx context.Context) (float64, error)

// MarketMaker quotes both sides of every outcome bucket, each centered on a
// forecast-derived fair value and skewed against its accumulated inventory.
// Every requote cycle re-checks the circuit breakers: a daily loss past the
// limit cancels all quotes and halts the market permanently, an inventory
// breach only warns.
type MarketMaker struct {
	exchange exchange.Exchange
	risk     *service.RiskService
	equity   EquityFunc
	cfg      config.MakerConfig
	alerts   AlertSink
	logger   *slog.Logger

	mu         sync.Mutex
	openQuotes map[string][]string // market ID -> resting order IDs
	warned     map[string]bool     // market:token -> inventory warning already sent
}

// NewMarketMaker creates a market maker. alerts may be nil.
func NewMarketMaker(ex exchange.Exchange, risk *service.RiskService, equity EquityFunc, cfg config.MakerConfig, alerts AlertSink, logger *slog.Logger) *MarketMaker {
	return &MarketMaker{
		exchange:   ex,
		risk:       risk,
		equity:     equity,
		cfg:        cfg,
		alerts:     alerts,
		logger:     logger.With(slog.String("component", "market_maker")),
		openQuotes: make(map[string][]string),
		warned:     make(map[string]bool),
	}
}

// Name identifies the strategy in order tags and journals.
func (m *MarketMaker) Name() string { return "market_maker" }

// FairValue estimates the probability-space value of an outcome. When the
// forecast lands inside the bucket the fair value is the model confidence;
// otherwise the market price is discounted by half the confidence. The
// result is clamped to the venue's quotable range.
func (m *MarketMaker) FairValue(outcome domain.Outcome, containsForecast bool, confidence float64) float64 {
	var fair float64
	if containsForecast {
		fair = confidence
	} else {
		fair = outcome.Price * (1 - confidence*0.5)
	}
	return clamp(fair, 0.01, 0.99)
}

// QuotePair builds a two-sided quote around fair, skewed by inventoryLevel
// in [-1, 1] (positive means long, which shifts both quotes down to favor
// selling). The spread widens and size shrinks once the skew limit is hit.
// Invariants: ask - bid >= MinSpread, bid >= 0.01, ask <= 0.99.
func (m *MarketMaker) QuotePair(fair, inventoryLevel float64) Quote {
	level := clamp(inventoryLevel, -1, 1)

	spread := m.cfg.MinSpread
	size := m.cfg.BaseSize
	if math.Abs(level) >= m.cfg.InventorySkewLimit {
		spread *= 1.5
		size *= 1 - math.Abs(level)
	}

	half := spread / 2
	skew := level * half
	bid := fair - half - skew
	ask := fair + half - skew

	// Guarantee the minimum spread around the midpoint before clamping.
	if ask-bid < m.cfg.MinSpread {
		mid := (bid + ask) / 2
		bid = mid - m.cfg.MinSpread/2
		ask = mid + m.cfg.MinSpread/2
	}

	bid = clamp(bid, 0.01, 0.98)
	ask = clamp(ask, 0.02, 0.99)

	// Clamping can collapse the spread at the extremes; push the ask out.
	if ask-bid < m.cfg.MinSpread {
		ask = bid + m.cfg.MinSpread
	}

	return Quote{
		Bid:     Round2(bid),
		Ask:     Round2(ask),
		BidSize: Round2(size),
		AskSize: Round2(size),
	}
}

// Requote runs one full quote cycle for a market: breaker checks, cancel
// stale quotes, then a fresh bid/ask pair on every outcome. The forecast
// bucket is quoted at model confidence, every other bucket at its discounted
// market price, each skewed by its own inventory. It returns
// domain.ErrCircuitBreaker when the daily-loss breaker halts the market.
func (m *MarketMaker) Requote(ctx context.Context, market *domain.Market, forecast domain.Forecast, now time.Time) error {
	equity, err := m.equity(ctx)
	if err != nil {
		return fmt.Errorf("market_maker: equity: %w", err)
	}
	if err := m.risk.CheckDailyLoss(equity); err != nil {
		m.haltMarket(ctx, market, err, equity)
		return err
	}

	confidence := domain.Confidence(market.DaysUntilTarget(now))
	predicted, _ := market.OutcomeForTemperature(forecast.PredictedHigh)

	if err := m.cancelQuotes(ctx, market.ID); err != nil {
		return err
	}

	for i := range market.Outcomes {
		outcome := market.Outcomes[i]
		inForecast := predicted != nil && predicted.TokenID == outcome.TokenID
		fair := m.FairValue(outcome, inForecast, confidence)

		inventory, err := m.netInventory(ctx, outcome.TokenID)
		if err != nil {
			return fmt.Errorf("market_maker: inventory %s: %w", outcome.TokenID, err)
		}
		level := clamp(inventory/m.cfg.MaxInventory, -1, 1)

		// Soft breaker: warn once per outcome while breached, keep quoting.
		if m.risk.CheckInventory(inventory) {
			m.warnInventory(ctx, market, outcome, inventory)
		} else {
			m.mu.Lock()
			m.warned[market.ID+":"+outcome.TokenID] = false
			m.mu.Unlock()
		}

		quote := m.QuotePair(fair, level)
		if err := m.postQuotes(ctx, market, outcome.TokenID, quote); err != nil {
			return err
		}
	}
	return nil
}

// Run requotes the market at the configured interval until the context ends
// or the daily-loss breaker halts the session.
func (m *MarketMaker) Run(ctx context.Context, market *domain.Market, forecasts ForecastSource) error {
	ticker := time.NewTicker(m.cfg.UpdateInterval.Duration)
	defer ticker.Stop()

	m.logger.Info("market making started",
		slog.String("market_id", market.ID),
		slog.String("city", market.City))

	for {
		forecast, err := forecasts.Forecast(ctx, market.City, market.TargetDate)
		if err != nil {
			m.logger.Warn("forecast fetch failed",
				slog.String("market_id", market.ID),
				slog.String("error", err.Error()))
		} else if err := m.Requote(ctx, market, forecast, time.Now()); err != nil {
			if errors.Is(err, domain.ErrCircuitBreaker) {
				return err
			}
			m.logger.Warn("requote failed",
				slog.String("market_id", market.ID),
				slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			m.shutdown(market.ID)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// netInventory returns the net shares held in a token.
func (m *MarketMaker) netInventory(ctx context.Context, tokenID string) (float64, error) {
	pos, ok, err := m.exchange.Position(ctx, tokenID)
	if err != nil || !ok {
		return 0, err
	}
	return pos.Shares, nil
}

// cancelQuotes pulls the market's resting quote orders.
func (m *MarketMaker) cancelQuotes(ctx context.Context, marketID string) error {
	m.mu.Lock()
	ids := m.openQuotes[marketID]
	m.openQuotes[marketID] = nil
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.exchange.CancelOrder(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			m.logger.Warn("cancel quote failed",
				slog.String("order_id", id),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// postQuotes places the bid and ask limit orders and records their IDs.
func (m *MarketMaker) postQuotes(ctx context.Context, market *domain.Market, tokenID string, quote Quote) error {
	var ids []string

	bidResult, err := m.exchange.PlaceOrder(ctx, domain.Order{
		MarketID: market.ID,
		TokenID:  tokenID,
		Side:     domain.OrderSideBuy,
		Type:     domain.OrderTypeLimit,
		Price:    quote.Bid,
		Size:     quote.BidSize,
		Strategy: m.Name(),
	})
	if err != nil {
		return fmt.Errorf("market_maker: post bid: %w", err)
	}
	ids = append(ids, bidResult.OrderID)

	askResult, err := m.exchange.PlaceOrder(ctx, domain.Order{
		MarketID: market.ID,
		TokenID:  tokenID,
		Side:     domain.OrderSideSell,
		Type:     domain.OrderTypeLimit,
		Price:    quote.Ask,
		Size:     quote.AskSize,
		Strategy: m.Name(),
	})
	if err != nil {
		// Leave the bid standing; it is tracked and will be cancelled on
		// the next cycle.
		m.recordQuotes(market.ID, ids)
		return fmt.Errorf("market_maker: post ask: %w", err)
	}
	ids = append(ids, askResult.OrderID)
	m.recordQuotes(market.ID, ids)

	m.logger.Debug("quotes posted",
		slog.String("market_id", market.ID),
		slog.Float64("bid", quote.Bid),
		slog.Float64("ask", quote.Ask),
		slog.Float64("size", quote.BidSize))
	return nil
}

func (m *MarketMaker) recordQuotes(marketID string, ids []string) {
	m.mu.Lock()
	m.openQuotes[marketID] = append(m.openQuotes[marketID], ids...)
	m.mu.Unlock()
}

// haltMarket cancels everything for the market after the fatal breaker trips.
func (m *MarketMaker) haltMarket(ctx context.Context, market *domain.Market, cause error, equity float64) {
	_ = m.cancelQuotes(ctx, market.ID)
	pnl := m.risk.SessionPnL(equity)
	m.logger.Error("market halted",
		slog.String("market_id", market.ID),
		slog.Float64("session_pnl", pnl),
		slog.String("cause", cause.Error()))
	m.alert(ctx, domain.Alert{
		Kind:     domain.AlertKindDailyLossHalt,
		Severity: domain.AlertCritical,
		MarketID: market.ID,
		Message:  fmt.Sprintf("%s (session pnl %.2f)", cause.Error(), pnl),
		At:       time.Now(),
	})
}

// warnInventory sends the soft-breach alert once per breach episode.
func (m *MarketMaker) warnInventory(ctx context.Context, market *domain.Market, outcome domain.Outcome, inventory float64) {
	key := market.ID + ":" + outcome.TokenID
	m.mu.Lock()
	already := m.warned[key]
	m.warned[key] = true
	m.mu.Unlock()
	if already {
		return
	}
	m.alert(ctx, domain.Alert{
		Kind:     domain.AlertKindInventoryBreach,
		Severity: domain.AlertWarning,
		MarketID: market.ID,
		Message: fmt.Sprintf("net inventory %.1f on %s exceeds limit %.1f",
			inventory, outcome.Label, m.cfg.MaxInventory),
		At: time.Now(),
	})
}

// shutdown pulls resting quotes during graceful stop.
func (m *MarketMaker) shutdown(marketID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = m.cancelQuotes(ctx, marketID)
}

func (m *MarketMaker) alert(ctx context.Context, a domain.Alert) {
	if m.alerts == nil {
		return
	}
	if err := m.alerts.Publish(ctx, a); err != nil {
		m.logger.Warn("alert publish failed", slog.String("error", err.Error()))
	}
}
