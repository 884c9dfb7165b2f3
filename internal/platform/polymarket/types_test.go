package polymarket

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemperatureLabel(t *testing.T) {
	t.Run("closed range", func(t *testing.T) {
		r, ok := ParseTemperatureLabel("78-79°")
		require.True(t, ok)
		assert.Equal(t, 78.0, r.Low)
		assert.Equal(t, 79.0, r.High)
	})

	t.Run("reversed range is normalized", func(t *testing.T) {
		r, ok := ParseTemperatureLabel("79-78°")
		require.True(t, ok)
		assert.Equal(t, 78.0, r.Low)
		assert.Equal(t, 79.0, r.High)
	})

	t.Run("range with en dash", func(t *testing.T) {
		r, ok := ParseTemperatureLabel("80–81°")
		require.True(t, ok)
		assert.Equal(t, 80.0, r.Low)
		assert.Equal(t, 81.0, r.High)
	})

	t.Run("open upper bucket", func(t *testing.T) {
		r, ok := ParseTemperatureLabel("82° or above")
		require.True(t, ok)
		assert.Equal(t, 82.0, r.Low)
		assert.True(t, math.IsInf(r.High, 1))

		r, ok = ParseTemperatureLabel("82° or higher")
		require.True(t, ok)
		assert.Equal(t, 82.0, r.Low)
	})

	t.Run("open lower bucket", func(t *testing.T) {
		r, ok := ParseTemperatureLabel("77° or below")
		require.True(t, ok)
		assert.True(t, math.IsInf(r.Low, -1))
		assert.Equal(t, 77.0, r.High)
	})

	t.Run("negative temperatures", func(t *testing.T) {
		r, ok := ParseTemperatureLabel("-5° or lower")
		require.True(t, ok)
		assert.Equal(t, -5.0, r.High)
	})

	t.Run("single number is a point bucket", func(t *testing.T) {
		r, ok := ParseTemperatureLabel("80°")
		require.True(t, ok)
		assert.Equal(t, 80.0, r.Low)
		assert.Equal(t, 80.0, r.High)
	})

	t.Run("no number fails", func(t *testing.T) {
		_, ok := ParseTemperatureLabel("Yes")
		assert.False(t, ok)
	})
}

func TestAPIMarketToDomain(t *testing.T) {
	api := APIMarket{
		ID:            "0x1",
		Question:      "Highest temperature in NYC on March 18?",
		Slug:          "highest-temperature-in-nyc-on-march-18",
		Active:        true,
		Outcomes:      `["77° or below","78-79°","80° or above"]`,
		OutcomePrices: `["0.10","0.55","0.35"]`,
		ClobTokenIDs:  `["t-low","t-mid","t-high"]`,
		Volume:        "12500.5",
		Liquidity:     "800",
		EndDateISO:    "2026-03-18T17:00:00Z",
	}
	m := api.ToDomainMarket("nyc")

	assert.Equal(t, "nyc", m.City)
	assert.True(t, m.Active)
	assert.Equal(t, 12500.5, m.Volume)
	require.Len(t, m.Outcomes, 3)
	assert.Equal(t, "t-mid", m.Outcomes[1].TokenID)
	assert.Equal(t, 0.55, m.Outcomes[1].Price)
	assert.True(t, m.Outcomes[1].Range.Contains(78.5))
	assert.True(t, m.Outcomes[2].Range.Contains(95.0))
	assert.False(t, m.Outcomes[0].Range.Contains(78.0))
	assert.Equal(t, 2026, m.TargetDate.Year())
}

func TestFlexBool(t *testing.T) {
	var v struct {
		Active flexBool `json:"active"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"active":"true"}`), &v))
	assert.True(t, bool(v.Active))
	require.NoError(t, json.Unmarshal([]byte(`{"active":false}`), &v))
	assert.False(t, bool(v.Active))
}

func TestTemperatureMarketSlug(t *testing.T) {
	date := time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "highest-temperature-in-nyc-on-march-18", TemperatureMarketSlug("nyc", date))
	assert.Equal(t, "highest-temperature-in-new-york-on-march-18", TemperatureMarketSlug("New York", date))
}

func TestReconnectDelaySchedule(t *testing.T) {
	max := 60 * time.Second
	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
	}
	for i, expected := range want {
		assert.Equal(t, expected, ReconnectDelay(i+1, max), "attempt %d", i+1)
	}

	// Large attempts cap at the maximum delay.
	assert.Equal(t, max, ReconnectDelay(6, max))
	assert.Equal(t, max, ReconnectDelay(50, max))
	assert.Equal(t, 2*time.Second, ReconnectDelay(0, max))
}
