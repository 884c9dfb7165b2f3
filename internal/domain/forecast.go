package domain

import "time"

// Forecast is a predicted daily-high temperature for a city and date.
type Forecast struct {
	City          string
	Date          time.Time
	PredictedHigh float64
	RetrievedAt   time.Time
}

// Confidence converts forecast horizon into a win probability estimate.
// Same-day forecasts are worth 0.95; each day further out costs 0.10,
// floored at 0.50 (a coin flip).
func Confidence(daysAhead int) float64 {
	c := 0.95 - 0.10*float64(daysAhead)
	if c < 0.50 {
		return 0.50
	}
	if c > 0.95 {
		return 0.95
	}
	return c
}

// TemperatureReading is a single observed temperature sample.
type TemperatureReading struct {
	City        string
	Temperature float64
	At          time.Time
}

// ObservationSummary aggregates today's observed temperatures for a city.
// Markets settle on the day's maximum, so CurrentMax is the figure the
// monitor compares; LatestTemp is only the most recent sample.
type ObservationSummary struct {
	City       string
	CurrentMax float64
	LatestTemp float64
	Count      int // hourly observations recorded so far today
	At         time.Time
}
