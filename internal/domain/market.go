package domain

import (
	"math"
	"time"
)

// TemperatureRange is the closed interval of daily-high temperatures covered
// by one market outcome. Open-ended buckets ("83° and above") use -Inf/+Inf.
type TemperatureRange struct {
	Low  float64
	High float64
}

// OpenLow returns a range with no lower bound up to high.
func OpenLow(high float64) TemperatureRange {
	return TemperatureRange{Low: math.Inf(-1), High: high}
}

// OpenHigh returns a range with no upper bound starting at low.
func OpenHigh(low float64) TemperatureRange {
	return TemperatureRange{Low: low, High: math.Inf(1)}
}

// Contains reports whether temp falls inside the range, inclusive on both ends.
func (r TemperatureRange) Contains(temp float64) bool {
	return temp >= r.Low && temp <= r.High
}

// Outcome is one tradeable temperature bucket of a market.
type Outcome struct {
	TokenID string
	Label   string // e.g. "78-79°"
	Range   TemperatureRange
	Price   float64 // last known market price in [0,1]
}

// Market represents a daily-high temperature prediction market for one city.
type Market struct {
	ID         string
	Slug       string
	City       string
	Question   string
	TargetDate time.Time // the date whose daily high settles the market
	Outcomes   []Outcome
	Active     bool
	Closed     bool
	Volume     float64
	Liquidity  float64
	UpdatedAt  time.Time
}

// OutcomeForTemperature returns the outcome whose range contains temp.
// Buckets are disjoint so at most one matches.
func (m *Market) OutcomeForTemperature(temp float64) (*Outcome, bool) {
	for i := range m.Outcomes {
		if m.Outcomes[i].Range.Contains(temp) {
			return &m.Outcomes[i], true
		}
	}
	return nil, false
}

// OutcomeByToken returns the outcome with the given token ID.
func (m *Market) OutcomeByToken(tokenID string) (*Outcome, bool) {
	for i := range m.Outcomes {
		if m.Outcomes[i].TokenID == tokenID {
			return &m.Outcomes[i], true
		}
	}
	return nil, false
}

// DaysUntilTarget returns the calendar-day distance from now to the target
// date: 0 on the target day itself, negative once the day has passed. Both
// sides are compared at midnight so the time of day never shifts the count.
func (m *Market) DaysUntilTarget(now time.Time) int {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	target := time.Date(m.TargetDate.Year(), m.TargetDate.Month(), m.TargetDate.Day(), 0, 0, 0, 0, time.UTC)
	return int(target.Sub(today).Hours() / 24)
}
