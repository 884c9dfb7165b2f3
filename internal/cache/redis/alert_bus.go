package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

const (
	alertChannel = "alerts"
	alertStream  = "alerts:log"

	// alertStreamMaxLen bounds the durable log via XADD MAXLEN ~.
	alertStreamMaxLen int64 = 10000
)

// AlertBus implements domain.AlertBus with Redis Pub/Sub for live fan-out
// and a capped Redis stream as the durable log.
type AlertBus struct {
	rdb *redis.Client
}

// NewAlertBus creates an AlertBus backed by the given Client.
func NewAlertBus(c *Client) *AlertBus {
	return &AlertBus{rdb: c.Underlying()}
}

// Publish sends the alert to live subscribers and appends it to the log.
// Both writes happen; a pub/sub delivery with no listeners is not an error.
func (ab *AlertBus) Publish(ctx context.Context, alert domain.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("redis: marshal alert: %w", err)
	}
	if err := ab.rdb.Publish(ctx, alertChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish alert: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: alertStream,
		MaxLen: alertStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": payload},
	}
	if err := ab.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: append alert log: %w", err)
	}
	return nil
}

// Subscribe returns a channel of live alerts. The subscription closes with
// the context; malformed payloads are dropped.
func (ab *AlertBus) Subscribe(ctx context.Context) (<-chan domain.Alert, error) {
	pubsub := ab.rdb.Subscribe(ctx, alertChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe alerts: %w", err)
	}

	out := make(chan domain.Alert, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var alert domain.Alert
				if err := json.Unmarshal([]byte(msg.Payload), &alert); err != nil {
					continue
				}
				select {
				case out <- alert:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// History reads up to count log entries after lastID. Use "0" to read from
// the beginning. No pending entries yields an empty slice, not an error.
func (ab *AlertBus) History(ctx context.Context, lastID string, count int) ([]domain.StreamMessage, error) {
	if lastID == "" {
		lastID = "0"
	}
	entries, err := ab.rdb.XRange(ctx, alertStream, incrementID(lastID), "+").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: alert history: %w", err)
	}

	messages := make([]domain.StreamMessage, 0, len(entries))
	for _, entry := range entries {
		if count > 0 && len(messages) >= count {
			break
		}
		payload, _ := entry.Values["payload"].(string)
		messages = append(messages, domain.StreamMessage{
			ID:      entry.ID,
			Payload: []byte(payload),
		})
	}
	return messages, nil
}

// incrementID turns an inclusive stream ID into the exclusive-start form
// understood by XRANGE.
func incrementID(id string) string {
	if id == "0" || id == "0-0" {
		return "-"
	}
	return "(" + id
}

// Compile-time interface check.
var _ domain.AlertBus = (*AlertBus)(nil)
