package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMarket(target time.Time) Market {
	return Market{
		ID:         "m1",
		Slug:       "highest-temperature-in-nyc-on-march-15",
		City:       "NYC",
		TargetDate: target,
		Active:     true,
		Outcomes: []Outcome{
			{TokenID: "t-low", Label: "77° or below", Range: OpenLow(77), Price: 0.05},
			{TokenID: "t-78", Label: "78-79°", Range: TemperatureRange{Low: 78, High: 79}, Price: 0.30},
			{TokenID: "t-80", Label: "80-81°", Range: TemperatureRange{Low: 80, High: 81}, Price: 0.45},
			{TokenID: "t-high", Label: "82° or above", Range: OpenHigh(82), Price: 0.20},
		},
	}
}

func TestTemperatureRangeContains(t *testing.T) {
	r := TemperatureRange{Low: 78, High: 79}
	assert.True(t, r.Contains(78))
	assert.True(t, r.Contains(79))
	assert.True(t, r.Contains(78.5))
	assert.False(t, r.Contains(77.9))
	assert.False(t, r.Contains(79.1))

	assert.True(t, OpenLow(77).Contains(-40))
	assert.False(t, OpenLow(77).Contains(77.5))
	assert.True(t, OpenHigh(82).Contains(120))
	assert.False(t, OpenHigh(82).Contains(81.9))
}

func TestOutcomeForTemperature(t *testing.T) {
	m := testMarket(time.Now())

	out, ok := m.OutcomeForTemperature(80.4)
	require.True(t, ok)
	assert.Equal(t, "t-80", out.TokenID)

	out, ok = m.OutcomeForTemperature(95)
	require.True(t, ok)
	assert.Equal(t, "t-high", out.TokenID)

	out, ok = m.OutcomeForTemperature(12)
	require.True(t, ok)
	assert.Equal(t, "t-low", out.TokenID)

	// Gap between buckets.
	_, ok = m.OutcomeForTemperature(79.5)
	assert.False(t, ok)
}

func TestDaysUntilTarget(t *testing.T) {
	t.Run("counts calendar days regardless of clock time", func(t *testing.T) {
		m := testMarket(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))
		now := time.Date(2026, 3, 13, 14, 0, 0, 0, time.UTC)
		assert.Equal(t, 1, m.DaysUntilTarget(now))
		assert.Equal(t, 1, m.DaysUntilTarget(now.Add(9*time.Hour+59*time.Minute)))
	})

	t.Run("target day is zero all day", func(t *testing.T) {
		m := testMarket(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, 0, m.DaysUntilTarget(time.Date(2026, 3, 15, 0, 0, 1, 0, time.UTC)))
		assert.Equal(t, 0, m.DaysUntilTarget(time.Date(2026, 3, 15, 23, 59, 0, 0, time.UTC)))
	})

	t.Run("past target goes negative", func(t *testing.T) {
		now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
		m := testMarket(now.AddDate(0, 0, -3))
		assert.Equal(t, -3, m.DaysUntilTarget(now))
	})

	t.Run("days ahead", func(t *testing.T) {
		now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
		m := testMarket(now.AddDate(0, 0, 2))
		assert.Equal(t, 2, m.DaysUntilTarget(now))
	})
}

func TestConfidenceDecay(t *testing.T) {
	assert.InDelta(t, 0.95, Confidence(0), 1e-9)
	assert.InDelta(t, 0.85, Confidence(1), 1e-9)
	assert.InDelta(t, 0.65, Confidence(3), 1e-9)
	assert.InDelta(t, 0.55, Confidence(4), 1e-9)
	assert.InDelta(t, 0.50, Confidence(5), 1e-9)
	assert.InDelta(t, 0.50, Confidence(30), 1e-9)
	assert.InDelta(t, 0.95, Confidence(-2), 1e-9)
}
