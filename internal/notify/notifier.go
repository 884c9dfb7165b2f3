// Package notify delivers operational alerts to external channels. Alerts
// are filtered by kind and severity, throttled, and fanned out to every
// configured sender.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

// Sender is one delivery channel (Telegram, Discord).
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier formats alerts and dispatches them to all senders. A nil limiter
// disables throttling. Kinds is an allow-list; empty means every kind.
type Notifier struct {
	senders     []Sender
	kinds       map[domain.AlertKind]bool
	minSeverity domain.AlertSeverity
	limiter     domain.RateLimiter
	logger      *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders.
func NewNotifier(senders []Sender, kinds []string, minSeverity domain.AlertSeverity, limiter domain.RateLimiter, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.AlertKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[domain.AlertKind(strings.TrimSpace(k))] = true
	}
	return &Notifier{
		senders:     senders,
		kinds:       allowed,
		minSeverity: minSeverity,
		limiter:     limiter,
		logger:      logger.With(slog.String("component", "notifier")),
	}
}

// Publish filters and dispatches one alert. It satisfies the alert sink
// interfaces used by the strategies and the monitor.
func (n *Notifier) Publish(ctx context.Context, alert domain.Alert) error {
	if len(n.kinds) > 0 && !n.kinds[alert.Kind] {
		n.logger.DebugContext(ctx, "alert kind filtered out", slog.String("kind", string(alert.Kind)))
		return nil
	}
	if alert.Severity < n.minSeverity {
		return nil
	}
	return n.dispatch(ctx, alert)
}

// dispatch sends to every sender; one failure does not block the rest.
func (n *Notifier) dispatch(ctx context.Context, alert domain.Alert) error {
	if len(n.senders) == 0 {
		return nil
	}

	title := alertTitle(alert)
	message := alertMessage(alert)

	var errs []string
	for _, s := range n.senders {
		if n.limiter != nil {
			allowed, err := n.limiter.Allow(ctx, "notify:"+s.Name(), 20, time.Minute)
			if err != nil {
				n.logger.WarnContext(ctx, "rate limit check failed",
					slog.String("sender", s.Name()),
					slog.String("error", err.Error()))
			} else if !allowed {
				n.logger.DebugContext(ctx, "alert throttled", slog.String("sender", s.Name()))
				continue
			}
		}
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

func alertTitle(alert domain.Alert) string {
	prefix := "INFO"
	switch alert.Severity {
	case domain.AlertWarning:
		prefix = "WARN"
	case domain.AlertCritical:
		prefix = "CRITICAL"
	}
	return fmt.Sprintf("[%s] %s", prefix, alert.Kind)
}

func alertMessage(alert domain.Alert) string {
	var b strings.Builder
	b.WriteString(alert.Message)
	if alert.MarketID != "" {
		b.WriteString("\nmarket: ")
		b.WriteString(alert.MarketID)
	}
	if !alert.At.IsZero() {
		b.WriteString("\nat: ")
		b.WriteString(alert.At.UTC().Format(time.RFC3339))
	}
	return b.String()
}
