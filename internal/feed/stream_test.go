package feed

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApplyTickUpdatesTrackedMarket(t *testing.T) {
	s := NewStream(nil, nil, nil, nil, testLogger())
	market := &domain.Market{
		ID: "m1",
		Outcomes: []domain.Outcome{
			{TokenID: "t-80", Label: "80-81°", Price: 0.45},
		},
	}
	s.byToken["t-80"] = market

	// The tick lands in the tracked snapshot, so a reactive check runs
	// against the moved price.
	got := s.applyTick(domain.PriceChange{AssetID: "t-80", Price: 0.61})
	require.Same(t, market, got)
	assert.InDelta(t, 0.61, market.Outcomes[0].Price, 1e-9)

	assert.Nil(t, s.applyTick(domain.PriceChange{AssetID: "unknown", Price: 0.5}))

	// Zero-price frames do not clobber the snapshot.
	s.applyTick(domain.PriceChange{AssetID: "t-80", Price: 0})
	assert.InDelta(t, 0.61, market.Outcomes[0].Price, 1e-9)
}
