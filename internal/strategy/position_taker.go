package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/weatherbot/internal/config"
	"github.com/alanyoungcy/weatherbot/internal/domain"
	"github.com/alanyoungcy/weatherbot/internal/exchange"
	"github.com/alanyoungcy/weatherbot/internal/service"
)

// Analysis is the position taker's view of one market against the latest
// forecast: the bucket the forecast lands in, the model's win probability,
// and the edge over the market price.
type Analysis struct {
	Outcome    domain.Outcome
	Confidence float64
	Edge       float64
	DaysAhead  int
}

// AlertSink receives operational alerts. Publish must not block trading on
// delivery failures; implementations log and drop.
type AlertSink interface {
	Publish(ctx context.Context, alert domain.Alert) error
}

// PositionTaker bets on the temperature bucket the forecast predicts,
// sized by fractional Kelly against the configured bankroll limits.
type PositionTaker struct {
	exchange exchange.Exchange
	risk     *service.RiskService
	cfg      config.TradingConfig
	alerts   AlertSink
	logger   *slog.Logger
}

// NewPositionTaker creates a position taker. alerts may be nil.
func NewPositionTaker(ex exchange.Exchange, risk *service.RiskService, cfg config.TradingConfig, alerts AlertSink, logger *slog.Logger) *PositionTaker {
	return &PositionTaker{
		exchange: ex,
		risk:     risk,
		cfg:      cfg,
		alerts:   alerts,
		logger:   logger.With(slog.String("component", "position_taker")),
	}
}

// Name identifies the strategy in order tags and journals.
func (t *PositionTaker) Name() string { return "position_taker" }

// Analyze maps the forecast onto the market's buckets and computes the edge.
// The second return is false when the market is outside the trading window,
// no bucket contains the predicted high, or the edge is below the entry
// threshold.
func (t *PositionTaker) Analyze(market *domain.Market, forecast domain.Forecast, now time.Time) (Analysis, bool) {
	daysAhead := market.DaysUntilTarget(now)
	if daysAhead < 0 || daysAhead > t.cfg.AdvanceDays {
		return Analysis{}, false
	}

	outcome, ok := market.OutcomeForTemperature(forecast.PredictedHigh)
	if !ok {
		return Analysis{}, false
	}

	confidence := domain.Confidence(daysAhead)
	edge := confidence - outcome.Price

	a := Analysis{
		Outcome:    *outcome,
		Confidence: confidence,
		Edge:       edge,
		DaysAhead:  daysAhead,
	}
	if edge < t.cfg.MinEdge {
		return a, false
	}
	return a, true
}

// Edge recomputes the current edge for a held token without the entry
// threshold, for exit and reactive checks. ok is false when the market no
// longer lists the token or the forecast misses every bucket.
func (t *PositionTaker) Edge(market *domain.Market, forecast domain.Forecast, tokenID string, now time.Time) (float64, bool) {
	outcome, ok := market.OutcomeByToken(tokenID)
	if !ok {
		return 0, false
	}
	predicted, ok := market.OutcomeForTemperature(forecast.PredictedHigh)
	if !ok {
		return 0, false
	}
	confidence := domain.Confidence(market.DaysUntilTarget(now))
	if predicted.TokenID == tokenID {
		return confidence - outcome.Price, true
	}
	// Forecast moved to a different bucket: the held token's win probability
	// is the complement spread across other buckets, treat as full reversal.
	return (1 - confidence) - outcome.Price, true
}

// ShouldAdjust reports whether a held position must be flattened. A forecast
// whose predicted high has left the held bucket liquidates unconditionally;
// otherwise the position survives until its edge reverses past the exit
// threshold.
func (t *PositionTaker) ShouldAdjust(market *domain.Market, forecast domain.Forecast, tokenID string, now time.Time) bool {
	outcome, ok := market.OutcomeByToken(tokenID)
	if !ok {
		return false
	}
	if !outcome.Range.Contains(forecast.PredictedHigh) {
		return true
	}
	edge, ok := t.Edge(market, forecast, tokenID, now)
	return ok && edge <= -t.cfg.ExitEdge
}

// PositionSize converts an analysis into a USDC notional: fractional Kelly
// on the free balance, capped by the per-position and per-market limits,
// then decayed by forecast horizon and rounded to cents.
func (t *PositionTaker) PositionSize(a Analysis, balance, marketExposure float64) float64 {
	f := KellySize(a.Edge, a.Confidence, t.cfg.KellyFraction)
	if f == 0 {
		return 0
	}

	size := f * balance
	if size > t.cfg.MaxPositionSize {
		size = t.cfg.MaxPositionSize
	}
	if remaining := t.cfg.MaxExposurePerMarket - marketExposure; size > remaining {
		size = remaining
	}
	if size <= 0 {
		return 0
	}

	return Round2(size * TimeDecay(a.DaysAhead))
}

// Execute sizes and places a market buy for the analyzed outcome. It returns
// a zero result with no error when sizing rounds the trade away.
func (t *PositionTaker) Execute(ctx context.Context, market *domain.Market, a Analysis) (domain.OrderResult, error) {
	balance, err := t.exchange.Balance(ctx)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("position_taker: balance: %w", err)
	}

	exposure, err := t.marketExposure(ctx, market)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("position_taker: exposure: %w", err)
	}

	size := t.PositionSize(a, balance, exposure)
	if size < 1.0 {
		t.logger.Debug("trade below minimum size, skipping",
			slog.String("market_id", market.ID),
			slog.Float64("size", size))
		return domain.OrderResult{}, nil
	}

	if err := t.risk.PreTradeCheck(size, exposure); err != nil {
		return domain.OrderResult{}, fmt.Errorf("position_taker: %w", err)
	}

	result, err := t.exchange.PlaceOrder(ctx, domain.Order{
		MarketID: market.ID,
		TokenID:  a.Outcome.TokenID,
		Side:     domain.OrderSideBuy,
		Type:     domain.OrderTypeMarket,
		Price:    a.Outcome.Price,
		Size:     size,
		Strategy: t.Name(),
	})
	if err != nil {
		return result, fmt.Errorf("position_taker: place order: %w", err)
	}

	t.logger.Info("entered position",
		slog.String("market_id", market.ID),
		slog.String("token_id", a.Outcome.TokenID),
		slog.String("label", a.Outcome.Label),
		slog.Float64("edge", a.Edge),
		slog.Float64("size", size))

	t.alert(ctx, domain.Alert{
		Kind:     domain.AlertKindFill,
		Severity: domain.AlertInfo,
		MarketID: market.ID,
		Message: fmt.Sprintf("bought %s %.2f USDC @ %.2f (edge %.3f)",
			a.Outcome.Label, size, a.Outcome.Price, a.Edge),
		At: time.Now(),
	})

	return result, nil
}

// Exit flattens the held position in tokenID at the current price.
func (t *PositionTaker) Exit(ctx context.Context, market *domain.Market, tokenID string, price float64) (domain.OrderResult, error) {
	result, err := t.exchange.ClosePosition(ctx, tokenID, price)
	if err != nil {
		return result, fmt.Errorf("position_taker: close %s: %w", tokenID, err)
	}
	if result.Filled() {
		t.logger.Info("exited position",
			slog.String("market_id", market.ID),
			slog.String("token_id", tokenID),
			slog.Float64("price", price),
			slog.Float64("shares", result.Shares))
	}
	return result, nil
}

// marketExposure sums the cost basis of open positions in this market.
func (t *PositionTaker) marketExposure(ctx context.Context, market *domain.Market) (float64, error) {
	positions, err := t.exchange.Positions(ctx)
	if err != nil {
		return 0, err
	}
	exposure := 0.0
	for _, p := range positions {
		if p.MarketID == market.ID {
			exposure += p.CostBasis()
		}
	}
	return exposure, nil
}

func (t *PositionTaker) alert(ctx context.Context, a domain.Alert) {
	if t.alerts == nil {
		return
	}
	if err := t.alerts.Publish(ctx, a); err != nil {
		t.logger.Warn("alert publish failed", slog.String("error", err.Error()))
	}
}
