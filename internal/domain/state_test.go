package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	now := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	target := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	base := func() ClassifyInput {
		m := testMarket(target)
		return ClassifyInput{
			Market:      &m,
			Now:         now,
			AdvanceDays: 3,
		}
	}

	t.Run("halted wins over everything", func(t *testing.T) {
		in := base()
		in.Halted = true
		in.Now = target.Add(6 * time.Hour)
		assert.Equal(t, StateStopped, Classify(in))
	})

	t.Run("nil market is stopped", func(t *testing.T) {
		in := base()
		in.Market = nil
		assert.Equal(t, StateStopped, Classify(in))
	})

	t.Run("closed market is stopped", func(t *testing.T) {
		in := base()
		in.Market.Closed = true
		assert.Equal(t, StateStopped, Classify(in))
	})

	t.Run("inactive market keeps scanning", func(t *testing.T) {
		in := base()
		in.Market.Active = false
		assert.Equal(t, StateScanning, Classify(in))
	})

	t.Run("too far out keeps scanning", func(t *testing.T) {
		in := base()
		in.Market.TargetDate = now.AddDate(0, 0, 10)
		assert.Equal(t, StateScanning, Classify(in))
	})

	t.Run("inside the window takes positions", func(t *testing.T) {
		assert.Equal(t, StatePositioning, Classify(base()))
	})

	t.Run("inside the window makes markets when enabled", func(t *testing.T) {
		in := base()
		in.MakerEnabled = true
		assert.Equal(t, StateMarketMaking, Classify(in))
	})

	t.Run("target day hands off to the monitor", func(t *testing.T) {
		in := base()
		in.Now = target.Add(6 * time.Hour)
		assert.Equal(t, StateDayOfMonitoring, Classify(in))
	})

	t.Run("target day outranks market making", func(t *testing.T) {
		in := base()
		in.MakerEnabled = true
		in.Now = target.Add(6 * time.Hour)
		assert.Equal(t, StateDayOfMonitoring, Classify(in))
	})

	t.Run("past target waits for resolution", func(t *testing.T) {
		in := base()
		in.Now = target.AddDate(0, 0, 2)
		assert.Equal(t, StateWaitingResolution, Classify(in))
	})

	t.Run("window edge is tradable", func(t *testing.T) {
		in := base()
		in.Market.TargetDate = now.AddDate(0, 0, 3)
		assert.Equal(t, StatePositioning, Classify(in))
	})
}
