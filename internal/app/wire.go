package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/weatherbot/internal/blob/s3"
	"github.com/alanyoungcy/weatherbot/internal/cache/redis"
	"github.com/alanyoungcy/weatherbot/internal/config"
	"github.com/alanyoungcy/weatherbot/internal/crypto"
	"github.com/alanyoungcy/weatherbot/internal/domain"
	"github.com/alanyoungcy/weatherbot/internal/exchange"
	"github.com/alanyoungcy/weatherbot/internal/feed"
	"github.com/alanyoungcy/weatherbot/internal/monitor"
	"github.com/alanyoungcy/weatherbot/internal/notify"
	"github.com/alanyoungcy/weatherbot/internal/platform/polymarket"
	"github.com/alanyoungcy/weatherbot/internal/platform/weather"
	"github.com/alanyoungcy/weatherbot/internal/service"
	"github.com/alanyoungcy/weatherbot/internal/store/postgres"
	"github.com/alanyoungcy/weatherbot/internal/strategy"
)

// Dependencies bundles everything the operating modes need. Optional
// members (cache, stores, archiver, stream) are nil when not configured.
type Dependencies struct {
	Weather   *weather.Client
	Gamma     *polymarket.GammaClient
	Forecasts *service.ForecastService
	Exchange  exchange.Exchange
	Simulator *exchange.Simulator // non-nil in dry run
	Risk      *service.RiskService

	PriceCache    domain.PriceCache
	ForecastCache domain.ForecastCache
	AlertBus      domain.AlertBus
	TradeStore    domain.TradeStore
	PositionStore domain.PositionStore
	Archiver      *s3blob.Archiver
	Notifier      *notify.Notifier
	Alerts        strategy.AlertSink

	Taker    *strategy.PositionTaker
	Maker    *strategy.MarketMaker
	Engine   *strategy.Engine
	Stream   *feed.Stream
	Monitor  *monitor.RealtimeMonitor
	Adjuster *monitor.PositionAdjuster
}

// alertFanout publishes each alert to every underlying sink.
type alertFanout struct {
	sinks []strategy.AlertSink
}

func (f *alertFanout) Publish(ctx context.Context, alert domain.Alert) error {
	var firstErr error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, alert); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Wire constructs the concrete dependency graph from the configuration and
// returns it with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{}

	deps.Weather = weather.New(
		cfg.Weather.Host,
		cfg.Weather.TimeoutHTTP.Duration,
		cfg.Weather.ForecastTTL.Duration,
	)
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost)

	// --- Redis (optional) ---
	var limiter domain.RateLimiter
	if cfg.RedisEnabled() {
		rdb, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rdb.Close() })

		deps.PriceCache = redis.NewPriceCache(rdb)
		deps.ForecastCache = redis.NewForecastCache(rdb)
		deps.AlertBus = redis.NewAlertBus(rdb)
		limiter = redis.NewRateLimiter(rdb)
	}

	deps.Forecasts = service.NewForecastService(
		deps.Weather, deps.ForecastCache, cfg.Weather.ForecastTTL.Duration, logger)

	// --- PostgreSQL (optional) ---
	if cfg.PostgresEnabled() {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.TradeStore = postgres.NewTradeStore(pg.Pool())
		deps.PositionStore = postgres.NewPositionStore(pg.Pool())
	}

	// --- S3 (optional) ---
	if cfg.S3Enabled() {
		s3c, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         true,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewArchiver(s3c, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, domain.AlertInfo, limiter, logger)

	sinks := []strategy.AlertSink{deps.Notifier}
	if deps.AlertBus != nil {
		sinks = append(sinks, deps.AlertBus)
	}
	deps.Alerts = &alertFanout{sinks: sinks}

	// --- Exchange ---
	if cfg.Trading.DryRun {
		deps.Simulator = exchange.NewSimulator(cfg.Trading.DryRunBalance, cfg.Trading.FeeRate, logger)
		deps.Exchange = deps.Simulator
	} else {
		privateKey, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: wallet key: %w", err))
		}
		signer, err := crypto.NewSigner(privateKey, cfg.Polymarket.ChainID)
		if err != nil {
			return fail(fmt.Errorf("wire: signer: %w", err))
		}
		hmacAuth := &crypto.HMACAuth{
			Key:        cfg.Polymarket.ApiKey,
			Secret:     cfg.Polymarket.ApiSecret,
			Passphrase: cfg.Polymarket.ApiPassphrase,
		}
		clob := polymarket.NewClobClient(cfg.Polymarket.ClobHost, signer, hmacAuth, cfg.Polymarket.SignatureType)
		deps.Exchange = exchange.NewLive(clob, logger)
	}
	deps.Exchange = exchange.NewJournaled(deps.Exchange, deps.TradeStore, deps.PositionStore, logger)

	// --- Risk ---
	startEquity, err := deps.Exchange.Balance(ctx)
	if err != nil {
		return fail(fmt.Errorf("wire: starting balance: %w", err))
	}
	deps.Risk = service.NewRiskService(startEquity, service.RiskConfig{
		MaxDailyLoss:         cfg.Trading.MaxDailyLoss,
		MaxExposurePerMarket: cfg.Trading.MaxExposurePerMarket,
		MaxInventory:         cfg.Maker.MaxInventory,
	}, logger)

	equity := equityFunc(deps)

	// --- Strategies ---
	deps.Taker = strategy.NewPositionTaker(deps.Exchange, deps.Risk, cfg.Trading, deps.Alerts, logger)
	if cfg.Maker.Enabled {
		deps.Maker = strategy.NewMarketMaker(deps.Exchange, deps.Risk, equity, cfg.Maker, deps.Alerts, logger)
	}
	deps.Engine = strategy.NewEngine(
		deps.Gamma, deps.Forecasts, deps.Exchange, equity,
		deps.Taker, deps.Maker, deps.Risk,
		cfg.Trading, cfg.Weather.Cities, logger,
	)

	// --- Stream (optional) ---
	if cfg.Stream.Enabled {
		ws := polymarket.NewWSClient(cfg.Polymarket.WsHost, polymarket.WSOptions{
			PingInterval:         cfg.Stream.PingInterval.Duration,
			MaxReconnectAttempts: cfg.Stream.MaxReconnectAttempts,
			MaxReconnectDelay:    cfg.Stream.MaxReconnectDelay.Duration,
		}, logger)
		deps.Stream = feed.NewStream(ws, deps.Engine, deps.PriceCache, deps.Alerts, logger)
		deps.Engine.SetWatcher(deps.Stream.Watch)
	}
	if deps.PriceCache != nil {
		deps.Engine.SetPriceCache(deps.PriceCache)
	}

	// --- Monitor ---
	// The shared monitor carries no handler of its own: city-wide runs
	// (monitor mode) only observe and report, while the engine binds a
	// repositioning handler per market on its resolution day.
	deps.Adjuster = monitor.NewPositionAdjuster(deps.Exchange, cfg.Monitor.AdjustNotional, deps.Alerts, logger)
	var reports monitor.ReportSink
	if deps.Archiver != nil {
		reports = deps.Archiver
	}
	deps.Monitor = monitor.NewRealtimeMonitor(deps.Weather, cfg.Monitor, nil, reports, logger)
	deps.Engine.SetDayMonitor(dayMonitor(deps, logger))

	return deps, cleanup, nil
}

// equityFunc marks positions with the simulator's own marks in dry run and
// at cost basis against the live venue.
func equityFunc(deps *Dependencies) strategy.EquityFunc {
	return func(ctx context.Context) (float64, error) {
		if deps.Simulator != nil {
			return deps.Simulator.Equity(), nil
		}
		balance, err := deps.Exchange.Balance(ctx)
		if err != nil {
			return 0, err
		}
		positions, err := deps.Exchange.Positions(ctx)
		if err != nil {
			return 0, err
		}
		for _, p := range positions {
			balance += p.CostBasis()
		}
		return balance, nil
	}
}

// dayMonitor runs the engine's resolution-day watch for one market: poll
// the city's observed daily maximum and reposition within the market when
// the maximum changes bucket.
func dayMonitor(deps *Dependencies, logger *slog.Logger) strategy.DayMonitorFunc {
	return func(ctx context.Context, market *domain.Market) error {
		handler := func(ctx context.Context, city string, oldMax, newMax float64) error {
			fresh, err := deps.Gamma.GetMarketBySlug(ctx, market.Slug, market.City)
			if err != nil {
				// Fall back to the snapshot the engine handed us.
				fresh = *market
			}
			held := ""
			for _, outcome := range fresh.Outcomes {
				if _, ok, err := deps.Exchange.Position(ctx, outcome.TokenID); err == nil && ok {
					held = outcome.TokenID
					break
				}
			}
			moved, err := deps.Adjuster.AdjustForTemperature(ctx, &fresh, held, newMax)
			if err != nil {
				return err
			}
			if moved {
				logger.Info("repositioned on new daily maximum",
					slog.String("city", city),
					slog.Float64("old_max", oldMax),
					slog.Float64("new_max", newMax))
			}
			return nil
		}
		return deps.Monitor.RunWithHandler(ctx, market.City, handler)
	}
}
