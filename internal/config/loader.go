package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies WEATHERBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known WEATHERBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "WEATHERBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.Address, "WEATHERBOT_WALLET_ADDRESS")
	setStr(&cfg.Wallet.EncryptedKeyPath, "WEATHERBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "WEATHERBOT_WALLET_KEY_PASSWORD")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "WEATHERBOT_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "WEATHERBOT_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "WEATHERBOT_POLYMARKET_WS_HOST")
	setInt(&cfg.Polymarket.ChainID, "WEATHERBOT_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "WEATHERBOT_POLYMARKET_SIGNATURE_TYPE")
	setStr(&cfg.Polymarket.ApiKey, "WEATHERBOT_POLYMARKET_API_KEY")
	setStr(&cfg.Polymarket.ApiSecret, "WEATHERBOT_POLYMARKET_API_SECRET")
	setStr(&cfg.Polymarket.ApiPassphrase, "WEATHERBOT_POLYMARKET_API_PASSPHRASE")

	// ── Weather ──
	setStr(&cfg.Weather.Host, "WEATHERBOT_WEATHER_HOST")
	setStringSlice(&cfg.Weather.Cities, "WEATHERBOT_WEATHER_CITIES")
	setDuration(&cfg.Weather.ForecastTTL, "WEATHERBOT_WEATHER_FORECAST_TTL")

	// ── Trading ──
	setBool(&cfg.Trading.DryRun, "WEATHERBOT_TRADING_DRY_RUN")
	setFloat64(&cfg.Trading.DryRunBalance, "WEATHERBOT_TRADING_DRY_RUN_BALANCE")
	setFloat64(&cfg.Trading.FeeRate, "WEATHERBOT_TRADING_FEE_RATE")
	setFloat64(&cfg.Trading.MaxPositionSize, "WEATHERBOT_TRADING_MAX_POSITION_SIZE")
	setFloat64(&cfg.Trading.MaxExposurePerMarket, "WEATHERBOT_TRADING_MAX_EXPOSURE_PER_MARKET")
	setFloat64(&cfg.Trading.MinEdge, "WEATHERBOT_TRADING_MIN_EDGE")
	setFloat64(&cfg.Trading.ExitEdge, "WEATHERBOT_TRADING_EXIT_EDGE")
	setFloat64(&cfg.Trading.KellyFraction, "WEATHERBOT_TRADING_KELLY_FRACTION")
	setInt(&cfg.Trading.AdvanceDays, "WEATHERBOT_TRADING_ADVANCE_DAYS")
	setFloat64(&cfg.Trading.MaxDailyLoss, "WEATHERBOT_TRADING_MAX_DAILY_LOSS")
	setDuration(&cfg.Trading.CheckInterval, "WEATHERBOT_TRADING_CHECK_INTERVAL")

	// ── Maker ──
	setBool(&cfg.Maker.Enabled, "WEATHERBOT_MAKER_ENABLED")
	setFloat64(&cfg.Maker.MinSpread, "WEATHERBOT_MAKER_MIN_SPREAD")
	setFloat64(&cfg.Maker.BaseSize, "WEATHERBOT_MAKER_BASE_SIZE")
	setFloat64(&cfg.Maker.MaxInventory, "WEATHERBOT_MAKER_MAX_INVENTORY")
	setFloat64(&cfg.Maker.InventorySkewLimit, "WEATHERBOT_MAKER_INVENTORY_SKEW_LIMIT")
	setDuration(&cfg.Maker.UpdateInterval, "WEATHERBOT_MAKER_UPDATE_INTERVAL")

	// ── Monitor ──
	setBool(&cfg.Monitor.Enabled, "WEATHERBOT_MONITOR_ENABLED")
	setFloat64(&cfg.Monitor.ChangeDegrees, "WEATHERBOT_MONITOR_CHANGE_DEGREES")
	setDuration(&cfg.Monitor.CheckInterval, "WEATHERBOT_MONITOR_CHECK_INTERVAL")
	setInt(&cfg.Monitor.EndHour, "WEATHERBOT_MONITOR_END_HOUR")
	setFloat64(&cfg.Monitor.AdjustNotional, "WEATHERBOT_MONITOR_ADJUST_NOTIONAL")

	// ── Stream ──
	setBool(&cfg.Stream.Enabled, "WEATHERBOT_STREAM_ENABLED")
	setDuration(&cfg.Stream.PingInterval, "WEATHERBOT_STREAM_PING_INTERVAL")
	setInt(&cfg.Stream.MaxReconnectAttempts, "WEATHERBOT_STREAM_MAX_RECONNECT_ATTEMPTS")
	setDuration(&cfg.Stream.MaxReconnectDelay, "WEATHERBOT_STREAM_MAX_RECONNECT_DELAY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "WEATHERBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "WEATHERBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "WEATHERBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "WEATHERBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "WEATHERBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "WEATHERBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "WEATHERBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "WEATHERBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "WEATHERBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "WEATHERBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "WEATHERBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "WEATHERBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "WEATHERBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "WEATHERBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "WEATHERBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "WEATHERBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "WEATHERBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "WEATHERBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "WEATHERBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "WEATHERBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "WEATHERBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "WEATHERBOT_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "WEATHERBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "WEATHERBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "WEATHERBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "WEATHERBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "WEATHERBOT_MODE")
	setStr(&cfg.LogLevel, "WEATHERBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
