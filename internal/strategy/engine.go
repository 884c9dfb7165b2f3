package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/weatherbot/internal/config"
	"github.com/alanyoungcy/weatherbot/internal/domain"
	"github.com/alanyoungcy/weatherbot/internal/exchange"
	"github.com/alanyoungcy/weatherbot/internal/service"
)

// Engine discovers temperature markets for the configured cities, classifies
// each one, and supervises the per-market loops: position taking or market
// making inside the trading window, the real-time monitor on the target day.
// Loops are idempotent: starting an already-running market is a no-op. A
// tripped daily-loss breaker stops every loop for the rest of the session.
type Engine struct {
	markets   MarketSource
	forecasts ForecastSource
	exchange  exchange.Exchange
	equity    EquityFunc
	taker     *PositionTaker
	maker     *MarketMaker // nil unless market making is enabled
	risk      *service.RiskService
	cfg       config.TradingConfig
	cities    []string
	logger    *slog.Logger

	mu         sync.Mutex
	watcher    MarketWatcher                 // optional, set before Run
	dayMonitor DayMonitorFunc                // optional, set before Run
	prices     domain.PriceCache             // optional, set before Run
	running    map[string]context.CancelFunc // task key -> loop cancel
	group      *errgroup.Group
}

// MarketWatcher is notified when the engine starts a loop for a market, so a
// live feed can subscribe to its outcome tokens.
type MarketWatcher func(ctx context.Context, market *domain.Market) error

// DayMonitorFunc runs the resolution-day temperature watch for one market,
// blocking until the monitoring window closes or the context ends.
type DayMonitorFunc func(ctx context.Context, market *domain.Market) error

// NewEngine wires the engine. maker may be nil to run taker-only.
func NewEngine(
	markets MarketSource,
	forecasts ForecastSource,
	ex exchange.Exchange,
	equity EquityFunc,
	taker *PositionTaker,
	maker *MarketMaker,
	risk *service.RiskService,
	cfg config.TradingConfig,
	cities []string,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		markets:   markets,
		forecasts: forecasts,
		exchange:  ex,
		equity:    equity,
		taker:     taker,
		maker:     maker,
		risk:      risk,
		cfg:       cfg,
		cities:    cities,
		logger:    logger.With(slog.String("component", "engine")),
		running:   make(map[string]context.CancelFunc),
	}
}

// SetWatcher installs the market watcher. Must be called before Run.
func (e *Engine) SetWatcher(w MarketWatcher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.watcher = w
}

// SetDayMonitor installs the resolution-day monitor. Must be called before
// Run; without one, target-day markets are left untouched.
func (e *Engine) SetDayMonitor(dm DayMonitorFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dayMonitor = dm
}

// SetPriceCache installs the live price mirror consulted when a market
// snapshot is refreshed. Must be called before Run.
func (e *Engine) SetPriceCache(pc domain.PriceCache) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prices = pc
}

// Run scans for markets and supervises their loops until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	e.mu.Lock()
	e.group = g
	e.mu.Unlock()

	g.Go(func() error { return e.scanLoop(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// scanLoop discovers markets for every city across the trading window and
// starts loops for the tradable ones.
func (e *Engine) scanLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.CheckInterval.Duration)
	defer ticker.Stop()

	for {
		e.scanOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) scanOnce(ctx context.Context) {
	if e.risk.Halted() {
		e.logger.Debug("session halted, skipping scan",
			slog.String("reason", e.risk.HaltReason()))
		return
	}

	now := time.Now()
	for _, city := range e.cities {
		for offset := 0; offset <= e.cfg.AdvanceDays; offset++ {
			date := now.AddDate(0, 0, offset)
			market, err := e.markets.FindTemperatureMarket(ctx, city, date)
			if err != nil {
				if !errors.Is(err, domain.ErrMarketNotFound) {
					e.logger.Warn("market scan failed",
						slog.String("city", city),
						slog.String("error", err.Error()))
				}
				continue
			}

			state := domain.Classify(domain.ClassifyInput{
				Market:       &market,
				Now:          now,
				Halted:       e.risk.Halted(),
				MakerEnabled: e.maker != nil,
				AdvanceDays:  e.cfg.AdvanceDays,
			})

			m := market
			switch state {
			case domain.StateDayOfMonitoring:
				e.StartMonitoring(ctx, &m)
			case domain.StateMarketMaking:
				e.StartMarketMaking(ctx, &m)
			case domain.StatePositioning:
				e.StartTrading(ctx, &m)
			}
		}
	}
}

// StartTrading launches the position-taking loop for a market. Calling it
// again while the loop is alive does nothing.
func (e *Engine) StartTrading(ctx context.Context, market *domain.Market) {
	if e.startTask(ctx, "trade:"+market.ID, func(taskCtx context.Context) error {
		return e.tradeLoop(taskCtx, market)
	}) {
		e.watchMarket(ctx, market)
	}
}

// StartMarketMaking launches the quoting loop for a market, idempotently.
func (e *Engine) StartMarketMaking(ctx context.Context, market *domain.Market) {
	if e.startTask(ctx, "maker:"+market.ID, func(taskCtx context.Context) error {
		err := e.maker.Run(taskCtx, market, e.forecasts)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}) {
		e.watchMarket(ctx, market)
	}
}

// StartMonitoring launches the resolution-day monitor loop for a market,
// idempotently. Without an installed day monitor it is a no-op.
func (e *Engine) StartMonitoring(ctx context.Context, market *domain.Market) {
	e.mu.Lock()
	dm := e.dayMonitor
	e.mu.Unlock()
	if dm == nil {
		return
	}
	e.startTask(ctx, "monitor:"+market.ID, func(taskCtx context.Context) error {
		return dm(taskCtx, market)
	})
}

// watchMarket tells the feed to subscribe to the market's outcome tokens.
func (e *Engine) watchMarket(ctx context.Context, market *domain.Market) {
	e.mu.Lock()
	watcher := e.watcher
	e.mu.Unlock()
	if watcher == nil {
		return
	}
	if err := watcher(ctx, market); err != nil {
		e.logger.Warn("market watch failed",
			slog.String("market_id", market.ID),
			slog.String("error", err.Error()))
	}
}

func (e *Engine) startTask(ctx context.Context, key string, fn func(context.Context) error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.running[key]; ok {
		return false
	}
	taskCtx, cancel := context.WithCancel(ctx)
	e.running[key] = cancel
	e.group.Go(func() error {
		defer func() {
			cancel()
			e.mu.Lock()
			delete(e.running, key)
			e.mu.Unlock()
		}()
		err := fn(taskCtx)
		if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrCircuitBreaker) {
			return nil
		}
		return err
	})
	e.logger.Info("task started", slog.String("task", key))
	return true
}

// tradeLoop re-evaluates one market at CheckInterval until it hands off to
// the monitor or resolves. Reactive price ticks funnel into the same
// CheckMarket path, so a tick between two scheduled checks just moves the
// check earlier.
func (e *Engine) tradeLoop(ctx context.Context, market *domain.Market) error {
	ticker := time.NewTicker(e.cfg.CheckInterval.Duration)
	defer ticker.Stop()

	e.logger.Info("trading started",
		slog.String("market_id", market.ID),
		slog.String("city", market.City),
		slog.Time("target_date", market.TargetDate))

	for {
		// Refresh outcome prices before each pass, overlaying the latest
		// streamed prices when a mirror is configured.
		if fresh, err := e.markets.GetMarketBySlug(ctx, market.Slug, market.City); err == nil {
			market = &fresh
			e.overlayPrices(ctx, market)
		}

		done, err := e.CheckMarket(ctx, market)
		if err != nil {
			if errors.Is(err, domain.ErrCircuitBreaker) {
				return err
			}
			e.logger.Warn("market check failed",
				slog.String("market_id", market.ID),
				slog.String("error", err.Error()))
		}
		if done {
			e.logger.Info("trading window over, stopping loop", slog.String("market_id", market.ID))
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CheckMarket runs one evaluation pass for a market. It returns done=true
// once the trade loop has nothing left to do: the market reached its target
// day (the scan loop hands it to the monitor) or awaits resolution. Both the
// scheduled loop and reactive price ticks call it.
func (e *Engine) CheckMarket(ctx context.Context, market *domain.Market) (bool, error) {
	now := time.Now()

	equity, err := e.equity(ctx)
	if err != nil {
		return false, fmt.Errorf("engine: equity: %w", err)
	}
	if err := e.risk.CheckDailyLoss(equity); err != nil {
		return false, err
	}

	state := domain.Classify(domain.ClassifyInput{
		Market:       market,
		Now:          now,
		Halted:       e.risk.Halted(),
		MakerEnabled: e.maker != nil,
		AdvanceDays:  e.cfg.AdvanceDays,
	})

	switch state {
	case domain.StateDayOfMonitoring, domain.StateWaitingResolution:
		return true, nil
	case domain.StateStopped:
		return false, fmt.Errorf("engine: %w: %s", domain.ErrCircuitBreaker, e.risk.HaltReason())
	case domain.StatePositioning:
		// Fall through to the taker below.
	default:
		return false, nil
	}

	forecast, err := e.forecasts.Forecast(ctx, market.City, market.TargetDate)
	if err != nil {
		return false, fmt.Errorf("engine: forecast %s: %w", market.City, err)
	}

	if held, outcome, ok := e.heldPosition(ctx, market); ok {
		if e.taker.ShouldAdjust(market, forecast, held.TokenID, now) {
			_, err := e.taker.Exit(ctx, market, held.TokenID, outcome.Price)
			return false, err
		}
		return false, nil
	}

	analysis, ok := e.taker.Analyze(market, forecast, now)
	if !ok {
		return false, nil
	}
	_, err = e.taker.Execute(ctx, market, analysis)
	return false, err
}

// OnPriceChange reacts to a live tick: when the tick touches an outcome of a
// running market, the market is re-checked immediately.
func (e *Engine) OnPriceChange(ctx context.Context, market *domain.Market, change domain.PriceChange) {
	if _, ok := market.OutcomeByToken(change.AssetID); !ok {
		return
	}
	if _, err := e.CheckMarket(ctx, market); err != nil && !errors.Is(err, domain.ErrCircuitBreaker) {
		e.logger.Warn("reactive check failed",
			slog.String("market_id", market.ID),
			slog.String("error", err.Error()))
	}
}

// heldPosition finds the position held in one of the market's outcomes, if
// any, with the outcome it backs.
func (e *Engine) heldPosition(ctx context.Context, market *domain.Market) (domain.Position, *domain.Outcome, bool) {
	for i := range market.Outcomes {
		outcome := &market.Outcomes[i]
		pos, ok, err := e.exchange.Position(ctx, outcome.TokenID)
		if err != nil {
			e.logger.Warn("position lookup failed",
				slog.String("token_id", outcome.TokenID),
				slog.String("error", err.Error()))
			continue
		}
		if ok {
			return pos, outcome, true
		}
	}
	return domain.Position{}, nil, false
}

// overlayPrices replaces snapshot outcome prices with fresher ones from the
// stream-fed price mirror.
func (e *Engine) overlayPrices(ctx context.Context, market *domain.Market) {
	e.mu.Lock()
	pc := e.prices
	e.mu.Unlock()
	if pc == nil {
		return
	}

	ids := make([]string, len(market.Outcomes))
	for i, o := range market.Outcomes {
		ids[i] = o.TokenID
	}
	prices, err := pc.GetPrices(ctx, ids)
	if err != nil || len(prices) == 0 {
		return
	}
	for i := range market.Outcomes {
		if p, ok := prices[market.Outcomes[i].TokenID]; ok && p > 0 {
			market.Outcomes[i].Price = p
		}
	}
}
