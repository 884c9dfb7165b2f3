package strategy

import "math"

// KellySize returns the fraction of bankroll to commit for a bet with the
// given edge and win probability, scaled by the configured Kelly fraction.
// With decimal odds b = 1/p - 1 the full-Kelly stake is edge/b; the result
// is clamped to [0, 1]. Returns 0 when the odds leave no payout (p >= 1).
func KellySize(edge, confidence, fraction float64) float64 {
	if confidence <= 0 || confidence >= 1 {
		return 0
	}
	b := 1/confidence - 1
	if b <= 0 {
		return 0
	}
	f := edge / b * fraction
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// TimeDecay discounts position size by forecast horizon: 10% per day out,
// floored at half size.
func TimeDecay(daysAhead int) float64 {
	d := 1 - 0.1*float64(daysAhead)
	if d < 0.5 {
		return 0.5
	}
	return d
}

// Round2 rounds to two decimal places, the venue's price and notional
// granularity.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
