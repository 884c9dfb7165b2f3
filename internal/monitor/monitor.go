// Package monitor polls the observed daily-high temperature on market day
// and repositions the bot when the outcome bucket changes underneath it.
package monitor

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/weatherbot/internal/config"
	"github.com/alanyoungcy/weatherbot/internal/domain"
)

// TemperatureSource reports today's observed temperature summary for a city.
type TemperatureSource interface {
	ObservedMax(ctx context.Context, city string) (domain.ObservationSummary, error)
}

// ChangeHandler is invoked when the observed daily maximum moves past the
// change threshold, with the previous and new maxima. Errors are logged and
// swallowed; the monitor keeps polling.
type ChangeHandler func(ctx context.Context, city string, oldMax, newMax float64) error

// ReportSink persists the day's readings when a monitoring session ends.
type ReportSink interface {
	WriteReadings(ctx context.Context, city string, date time.Time, readings []domain.TemperatureReading) error
}

// RealtimeMonitor polls a city's observed daily maximum at a fixed interval
// until the local end hour, firing the handler on significant moves. Markets
// settle on the day's high, so an evening cooldown never registers: the
// tracked maximum only moves when the summary's maximum does. The baseline
// advances only when a change fires, so a slow drift accumulates until it
// crosses the threshold once.
type RealtimeMonitor struct {
	source  TemperatureSource
	cfg     config.MonitorConfig
	handler ChangeHandler
	reports ReportSink // optional
	logger  *slog.Logger

	mu       sync.Mutex
	baseline map[string]float64
	seeded   map[string]bool
	readings map[string][]domain.TemperatureReading
}

// NewRealtimeMonitor creates a monitor. handler and reports may be nil.
func NewRealtimeMonitor(source TemperatureSource, cfg config.MonitorConfig, handler ChangeHandler, reports ReportSink, logger *slog.Logger) *RealtimeMonitor {
	return &RealtimeMonitor{
		source:   source,
		cfg:      cfg,
		handler:  handler,
		reports:  reports,
		logger:   logger.With(slog.String("component", "monitor")),
		baseline: make(map[string]float64),
		seeded:   make(map[string]bool),
		readings: make(map[string][]domain.TemperatureReading),
	}
}

// DetectChange compares an observed maximum against the city's baseline. The
// first observation seeds the baseline and never counts as a change. On a
// detected change the baseline moves to the new value.
func (m *RealtimeMonitor) DetectChange(city string, max float64) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.seeded[city] {
		m.seeded[city] = true
		m.baseline[city] = max
		return 0, false
	}
	delta := max - m.baseline[city]
	if math.Abs(delta) < m.cfg.ChangeDegrees {
		return delta, false
	}
	m.baseline[city] = max
	return delta, true
}

// Poll takes one observation summary, records the latest sample, and fires
// the monitor's handler when the daily maximum moved.
func (m *RealtimeMonitor) Poll(ctx context.Context, city string) error {
	return m.pollWith(ctx, city, m.handler)
}

func (m *RealtimeMonitor) pollWith(ctx context.Context, city string, handler ChangeHandler) error {
	summary, err := m.source.ObservedMax(ctx, city)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.readings[city] = append(m.readings[city], domain.TemperatureReading{
		City:        city,
		Temperature: summary.LatestTemp,
		At:          summary.At,
	})
	m.mu.Unlock()

	delta, changed := m.DetectChange(city, summary.CurrentMax)
	if !changed {
		return nil
	}
	oldMax := summary.CurrentMax - delta

	m.logger.Info("daily maximum changed",
		slog.String("city", city),
		slog.Float64("old_max", oldMax),
		slog.Float64("new_max", summary.CurrentMax),
		slog.Int("observations", summary.Count))

	if handler != nil {
		if err := handler(ctx, city, oldMax, summary.CurrentMax); err != nil {
			m.logger.Warn("change handler failed",
				slog.String("city", city),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// Run polls the city with the monitor's own handler until the local clock
// reaches the end hour or the context is cancelled.
func (m *RealtimeMonitor) Run(ctx context.Context, city string) error {
	return m.RunWithHandler(ctx, city, m.handler)
}

// RunWithHandler is Run with a handler bound to this session, used for
// per-market monitoring where the repositioning target is fixed up front.
// The day's readings flush to the report sink on exit.
func (m *RealtimeMonitor) RunWithHandler(ctx context.Context, city string, handler ChangeHandler) error {
	ticker := time.NewTicker(m.cfg.CheckInterval.Duration)
	defer ticker.Stop()

	m.logger.Info("monitoring started",
		slog.String("city", city),
		slog.Int("end_hour", m.cfg.EndHour))

	for {
		if time.Now().Hour() >= m.cfg.EndHour {
			m.logger.Info("monitoring window closed", slog.String("city", city))
			return m.flush(ctx, city)
		}

		if err := m.pollWith(ctx, city, handler); err != nil {
			m.logger.Warn("temperature poll failed",
				slog.String("city", city),
				slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return m.flush(context.WithoutCancel(ctx), city)
		case <-ticker.C:
		}
	}
}

// Readings returns a copy of the readings recorded for a city so far.
func (m *RealtimeMonitor) Readings(city string) []domain.TemperatureReading {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TemperatureReading, len(m.readings[city]))
	copy(out, m.readings[city])
	return out
}

func (m *RealtimeMonitor) flush(ctx context.Context, city string) error {
	if m.reports == nil {
		return nil
	}
	readings := m.Readings(city)
	if len(readings) == 0 {
		return nil
	}
	flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := m.reports.WriteReadings(flushCtx, city, time.Now(), readings); err != nil {
		m.logger.Warn("report flush failed",
			slog.String("city", city),
			slog.String("error", err.Error()))
	}
	return nil
}
