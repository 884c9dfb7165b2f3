// Package config defines the top-level configuration for the weather bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by WEATHERBOT_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Weather    WeatherConfig    `toml:"weather"`
	Trading    TradingConfig    `toml:"trading"`
	Maker      MakerConfig      `toml:"maker"`
	Monitor    MonitorConfig    `toml:"monitor"`
	Stream     StreamConfig     `toml:"stream"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds Ethereum wallet credentials for live trading. Either a
// raw private key or an encrypted key file plus password may be supplied.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	Address          string `toml:"address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds Polymarket API endpoints, credentials, and chain
// parameters.
type PolymarketConfig struct {
	ClobHost      string `toml:"clob_host"`
	GammaHost     string `toml:"gamma_host"`
	WsHost        string `toml:"ws_host"`
	ChainID       int    `toml:"chain_id"`
	SignatureType int    `toml:"signature_type"`
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
}

// WeatherConfig holds the forecast API endpoint and the cities to trade.
type WeatherConfig struct {
	Host         string   `toml:"host"`
	Cities       []string `toml:"cities"`
	ForecastTTL  duration `toml:"forecast_ttl"`
	TimeoutHTTP  duration `toml:"http_timeout"`
}

// TradingConfig holds position-taker parameters and global risk limits.
type TradingConfig struct {
	DryRun                bool     `toml:"dry_run"`
	DryRunBalance         float64  `toml:"dry_run_balance"`
	FeeRate               float64  `toml:"fee_rate"`
	MaxPositionSize       float64  `toml:"max_position_size"`
	MaxExposurePerMarket  float64  `toml:"max_exposure_per_market"`
	MinEdge               float64  `toml:"min_edge"`
	ExitEdge              float64  `toml:"exit_edge"`
	KellyFraction         float64  `toml:"kelly_fraction"`
	AdvanceDays           int      `toml:"advance_days"`
	MaxDailyLoss          float64  `toml:"max_daily_loss"`
	CheckInterval         duration `toml:"check_interval"`
}

// MakerConfig holds market-maker quoting parameters.
type MakerConfig struct {
	Enabled            bool     `toml:"enabled"`
	MinSpread          float64  `toml:"min_spread"`
	BaseSize           float64  `toml:"base_size"`
	MaxInventory       float64  `toml:"max_inventory"`
	InventorySkewLimit float64  `toml:"inventory_skew_limit"`
	UpdateInterval     duration `toml:"update_interval"`
}

// MonitorConfig holds real-time temperature monitor parameters.
type MonitorConfig struct {
	Enabled        bool     `toml:"enabled"`
	ChangeDegrees  float64  `toml:"change_degrees"`
	CheckInterval  duration `toml:"check_interval"`
	EndHour        int      `toml:"end_hour"`
	AdjustNotional float64  `toml:"adjust_notional"`
}

// StreamConfig holds websocket price-stream parameters.
type StreamConfig struct {
	Enabled              bool     `toml:"enabled"`
	PingInterval         duration `toml:"ping_interval"`
	MaxReconnectAttempts int      `toml:"max_reconnect_attempts"`
	MaxReconnectDelay    duration `toml:"max_reconnect_delay"`
}

// PostgresConfig holds PostgreSQL connection parameters for the trade journal.
// Leave DSN and Host empty to run without persistence.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Leave Addr empty to run
// without the price mirror and alert stream.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for daily reports.
// Leave Bucket empty to disable archiving.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:      "https://clob.polymarket.com",
			GammaHost:     "https://gamma-api.polymarket.com",
			WsHost:        "wss://ws-subscriptions-clob.polymarket.com",
			ChainID:       137,
			SignatureType: 1,
		},
		Weather: WeatherConfig{
			Host:        "https://api.open-meteo.com",
			Cities:      []string{"NYC"},
			ForecastTTL: duration{30 * time.Minute},
			TimeoutHTTP: duration{10 * time.Second},
		},
		Trading: TradingConfig{
			DryRun:               true,
			DryRunBalance:        1000.0,
			FeeRate:              0.002,
			MaxPositionSize:      100.0,
			MaxExposurePerMarket: 200.0,
			MinEdge:              0.05,
			ExitEdge:             0.05,
			KellyFraction:        0.25,
			AdvanceDays:          3,
			MaxDailyLoss:         50.0,
			CheckInterval:        duration{60 * time.Second},
		},
		Maker: MakerConfig{
			Enabled:            false,
			MinSpread:          0.02,
			BaseSize:           50.0,
			MaxInventory:       500.0,
			InventorySkewLimit: 0.7,
			UpdateInterval:     duration{30 * time.Second},
		},
		Monitor: MonitorConfig{
			Enabled:        true,
			ChangeDegrees:  0.5,
			CheckInterval:  duration{60 * time.Second},
			EndHour:        23,
			AdjustNotional: 50.0,
		},
		Stream: StreamConfig{
			Enabled:              true,
			PingInterval:         duration{10 * time.Second},
			MaxReconnectAttempts: 5,
			MaxReconnectDelay:    duration{60 * time.Second},
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "weatherbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:         "us-east-1",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"fill", "temp_adjustment", "inventory_breach", "daily_loss_halt"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"maker":   true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, maker, monitor, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet is only needed when placing real orders.
	if !c.Trading.DryRun {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set when trading.dry_run is false")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}

	if c.Weather.Host == "" {
		errs = append(errs, "weather: host must not be empty")
	}
	if len(c.Weather.Cities) == 0 {
		errs = append(errs, "weather: at least one city must be configured")
	}

	if c.Trading.DryRun && c.Trading.DryRunBalance <= 0 {
		errs = append(errs, "trading: dry_run_balance must be > 0")
	}
	if c.Trading.FeeRate < 0 || c.Trading.FeeRate >= 1 {
		errs = append(errs, fmt.Sprintf("trading: fee_rate must be in [0,1), got %g", c.Trading.FeeRate))
	}
	if c.Trading.MaxPositionSize <= 0 {
		errs = append(errs, "trading: max_position_size must be > 0")
	}
	if c.Trading.MaxExposurePerMarket < c.Trading.MaxPositionSize {
		errs = append(errs, "trading: max_exposure_per_market must be >= max_position_size")
	}
	if c.Trading.MinEdge <= 0 || c.Trading.MinEdge >= 1 {
		errs = append(errs, fmt.Sprintf("trading: min_edge must be in (0,1), got %g", c.Trading.MinEdge))
	}
	if c.Trading.KellyFraction <= 0 || c.Trading.KellyFraction > 1 {
		errs = append(errs, fmt.Sprintf("trading: kelly_fraction must be in (0,1], got %g", c.Trading.KellyFraction))
	}
	if c.Trading.AdvanceDays < 0 {
		errs = append(errs, "trading: advance_days must be >= 0")
	}
	if c.Trading.MaxDailyLoss <= 0 {
		errs = append(errs, "trading: max_daily_loss must be > 0")
	}
	if c.Trading.CheckInterval.Duration <= 0 {
		errs = append(errs, "trading: check_interval must be positive")
	}

	if c.Maker.Enabled {
		if c.Maker.MinSpread <= 0 || c.Maker.MinSpread >= 0.5 {
			errs = append(errs, fmt.Sprintf("maker: min_spread must be in (0,0.5), got %g", c.Maker.MinSpread))
		}
		if c.Maker.BaseSize <= 0 {
			errs = append(errs, "maker: base_size must be > 0")
		}
		if c.Maker.MaxInventory <= 0 {
			errs = append(errs, "maker: max_inventory must be > 0")
		}
		if c.Maker.InventorySkewLimit <= 0 || c.Maker.InventorySkewLimit > 1 {
			errs = append(errs, fmt.Sprintf("maker: inventory_skew_limit must be in (0,1], got %g", c.Maker.InventorySkewLimit))
		}
		if c.Maker.UpdateInterval.Duration <= 0 {
			errs = append(errs, "maker: update_interval must be positive")
		}
	}

	if c.Monitor.Enabled {
		if c.Monitor.ChangeDegrees <= 0 {
			errs = append(errs, "monitor: change_degrees must be > 0")
		}
		if c.Monitor.CheckInterval.Duration <= 0 {
			errs = append(errs, "monitor: check_interval must be positive")
		}
		if c.Monitor.EndHour < 0 || c.Monitor.EndHour > 23 {
			errs = append(errs, fmt.Sprintf("monitor: end_hour must be 0-23, got %d", c.Monitor.EndHour))
		}
	}

	if c.Stream.Enabled {
		if c.Stream.MaxReconnectAttempts < 1 {
			errs = append(errs, "stream: max_reconnect_attempts must be >= 1")
		}
		if c.Stream.PingInterval.Duration <= 0 {
			errs = append(errs, "stream: ping_interval must be positive")
		}
	}

	// Postgres is optional; validate pool bounds only when configured.
	if c.PostgresEnabled() {
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be in [0, pool_max_conns]")
		}
	}

	if c.RedisEnabled() && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// PostgresEnabled reports whether a Postgres connection is configured.
func (c *Config) PostgresEnabled() bool {
	return strings.TrimSpace(c.Postgres.DSN) != "" || strings.TrimSpace(c.Postgres.Host) != ""
}

// RedisEnabled reports whether a Redis connection is configured.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

// S3Enabled reports whether report archiving to S3 is configured.
func (c *Config) S3Enabled() bool {
	return strings.TrimSpace(c.S3.Bucket) != ""
}
