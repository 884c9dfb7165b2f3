package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// TradeMode runs the strategy engine, with the live price stream when
// configured.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return deps.Engine.Run(ctx) })
	if deps.Stream != nil {
		g.Go(func() error { return deps.Stream.Run(ctx) })
	}

	err := g.Wait()
	a.flushReport(deps)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// MakerMode is TradeMode with market making required; Wire only builds the
// maker when it is enabled, so this guards against a misconfigured run.
func (a *App) MakerMode(ctx context.Context, deps *Dependencies) error {
	if deps.Maker == nil {
		return errors.New("app: maker mode requires maker.enabled")
	}
	return a.TradeMode(ctx, deps)
}

// MonitorMode runs only the real-time temperature monitors, one per city.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, city := range a.cfg.Weather.Cities {
		g.Go(func() error { return deps.Monitor.Run(ctx, city) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// FullMode runs trading, the price stream, and the monitors together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return deps.Engine.Run(ctx) })
	if deps.Stream != nil {
		g.Go(func() error { return deps.Stream.Run(ctx) })
	}
	for _, city := range a.cfg.Weather.Cities {
		g.Go(func() error { return deps.Monitor.Run(ctx, city) })
	}

	err := g.Wait()
	a.flushReport(deps)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// flushReport logs the dry-run session summary and archives it when object
// storage is configured.
func (a *App) flushReport(deps *Dependencies) {
	if deps.Simulator == nil {
		return
	}
	report := deps.Simulator.Report()
	a.logger.Info("session report",
		slog.Float64("start_balance", report.StartBalance),
		slog.Float64("balance", report.Balance),
		slog.Float64("equity", report.Equity),
		slog.Float64("pnl", report.PnL),
		slog.Float64("fees_paid", report.FeesPaid),
		slog.Int("trades", report.TradeCount),
		slog.Int("open_positions", report.OpenPositions))

	if deps.Archiver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := deps.Archiver.WriteSessionReport(ctx, report.StartedAt, report); err != nil {
			a.logger.Warn("session report archive failed", slog.String("error", err.Error()))
		}
	}
}
