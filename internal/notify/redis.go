package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannel = "orderflow:order-changed"

// OrderChangedEvent tells subscribers to re-read an order. It carries no
// order state; the revision only grows.
type OrderChangedEvent struct {
	OrderID    uint      `json:"orderId"`
	Event      string    `json:"event"`
	Revision   int64     `json:"revision"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("notify: ping: %w", err)
	}

	return client, nil
}

func RevisionKey(orderID uint) string {
	return fmt.Sprintf("orderflow:order:%d:rev", orderID)
}

type RedisNotifier struct {
	client  *redis.Client
	channel string
	now     func() time.Time
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel, now: time.Now}
}

// OrderChanged bumps the order's revision counter and publishes the event.
func (n *RedisNotifier) OrderChanged(ctx context.Context, orderID uint, event string) error {
	rev, err := n.client.Incr(ctx, RevisionKey(orderID)).Result()
	if err != nil {
		return fmt.Errorf("notify: incr revision: %w", err)
	}

	payload, err := json.Marshal(OrderChangedEvent{
		OrderID:    orderID,
		Event:      event,
		Revision:   rev,
		OccurredAt: n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}

	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	return nil
}

// LogNotifier is used when Redis is disabled.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) OrderChanged(_ context.Context, orderID uint, event string) error {
	n.logger.Debug("order changed", zap.Uint("orderId", orderID), zap.String("event", event))
	return nil
}
