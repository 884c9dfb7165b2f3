package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "trade", cfg.Mode)
	assert.True(t, cfg.Trading.DryRun)
	assert.Equal(t, 137, cfg.Polymarket.ChainID)
	assert.Equal(t, []string{"NYC"}, cfg.Weather.Cities)
	assert.Equal(t, 60*time.Second, cfg.Trading.CheckInterval.Duration)

	// Optional backends are off until configured.
	assert.False(t, cfg.PostgresEnabled())
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.S3Enabled())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "yolo" }, "unknown mode"},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }, "unknown log_level"},
		{"no cities", func(c *Config) { c.Weather.Cities = nil }, "at least one city"},
		{"bad fee rate", func(c *Config) { c.Trading.FeeRate = 1.5 }, "fee_rate"},
		{"edge out of range", func(c *Config) { c.Trading.MinEdge = 0 }, "min_edge"},
		{"kelly out of range", func(c *Config) { c.Trading.KellyFraction = 2 }, "kelly_fraction"},
		{"exposure below size", func(c *Config) {
			c.Trading.MaxPositionSize = 300
		}, "max_exposure_per_market"},
		{"zero daily loss", func(c *Config) { c.Trading.MaxDailyLoss = 0 }, "max_daily_loss"},
		{"bad end hour", func(c *Config) { c.Monitor.EndHour = 24 }, "end_hour"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateLiveModeRequiresWallet(t *testing.T) {
	cfg := Defaults()
	cfg.Trading.DryRun = false
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private_key or encrypted_key_path")

	cfg.Wallet.PrivateKey = "0xabc"
	require.NoError(t, cfg.Validate())

	// An encrypted key file needs its password.
	cfg.Wallet.PrivateKey = ""
	cfg.Wallet.EncryptedKeyPath = "/tmp/key.json"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password")
}

func TestValidateSkipsDisabledSections(t *testing.T) {
	cfg := Defaults()
	// Invalid maker values are ignored while the maker is disabled.
	cfg.Maker.Enabled = false
	cfg.Maker.MinSpread = -1
	require.NoError(t, cfg.Validate())

	cfg.Maker.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_spread")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "maker"
log_level = "debug"

[weather]
cities = ["NYC", "Chicago"]
forecast_ttl = "15m"

[trading]
dry_run_balance = 2500.0

[maker]
enabled = true
min_spread = 0.03
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "maker", cfg.Mode)
	assert.Equal(t, []string{"NYC", "Chicago"}, cfg.Weather.Cities)
	assert.Equal(t, 15*time.Minute, cfg.Weather.ForecastTTL.Duration)
	assert.Equal(t, 2500.0, cfg.Trading.DryRunBalance)
	assert.True(t, cfg.Maker.Enabled)
	assert.Equal(t, 0.03, cfg.Maker.MinSpread)

	// Untouched sections keep their defaults.
	assert.Equal(t, "https://clob.polymarket.com", cfg.Polymarket.ClobHost)
	assert.Equal(t, 0.002, cfg.Trading.FeeRate)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WEATHERBOT_MODE", "full")
	t.Setenv("WEATHERBOT_TRADING_MAX_DAILY_LOSS", "75.5")
	t.Setenv("WEATHERBOT_TRADING_CHECK_INTERVAL", "90s")
	t.Setenv("WEATHERBOT_WEATHER_CITIES", "NYC, Miami ,")
	t.Setenv("WEATHERBOT_REDIS_ADDR", "localhost:6379")
	t.Setenv("WEATHERBOT_MAKER_ENABLED", "true")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, 75.5, cfg.Trading.MaxDailyLoss)
	assert.Equal(t, 90*time.Second, cfg.Trading.CheckInterval.Duration)
	assert.Equal(t, []string{"NYC", "Miami"}, cfg.Weather.Cities)
	assert.True(t, cfg.RedisEnabled())
	assert.True(t, cfg.Maker.Enabled)
}

func TestEnvOverridesIgnoreUnparseable(t *testing.T) {
	t.Setenv("WEATHERBOT_TRADING_MAX_DAILY_LOSS", "lots")
	t.Setenv("WEATHERBOT_MONITOR_CHECK_INTERVAL", "soon")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, 50.0, cfg.Trading.MaxDailyLoss)
	assert.Equal(t, 60*time.Second, cfg.Monitor.CheckInterval.Duration)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xdeadbeef"
	cfg.Redis.Password = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Wallet.PrivateKey)
	assert.Equal(t, "***", out.Redis.Password)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	// Empty secrets stay empty and non-secrets pass through.
	assert.Empty(t, out.Wallet.KeyPassword)
	assert.Equal(t, cfg.Weather.Cities, out.Weather.Cities)

	// The original is untouched.
	assert.Equal(t, "0xdeadbeef", cfg.Wallet.PrivateKey)
}

func TestDurationTextRoundTrip(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("2m30s")))
	assert.Equal(t, 150*time.Second, d.Duration)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2m30s", string(out))

	assert.Error(t, d.UnmarshalText([]byte("whenever")))
}
