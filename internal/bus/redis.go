package bus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tellatale/engine/pkg/models"
)

// subscriberBuffer bounds undelivered frames per subscriber; slow clients
// lose frames rather than stall the fan-out.
const subscriberBuffer = 16

// RedisBus implements Bus over Redis Pub/Sub.
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus creates a RedisBus from a Redis URL.
func NewRedisBus(redisURL string) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisBus{client: redis.NewClient(opts)}, nil
}

func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}

func (b *RedisBus) Publish(ctx context.Context, projectID uuid.UUID, frame models.ProgressFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		slog.Error("marshal progress frame", "project_id", projectID, "error", err)
		return
	}
	if err := b.client.Publish(ctx, ChannelName(projectID), payload).Err(); err != nil {
		slog.Warn("publish progress frame", "project_id", projectID, "error", err)
	}
}

func (b *RedisBus) Subscribe(ctx context.Context, projectID uuid.UUID) (<-chan models.ProgressFrame, func(), error) {
	sub := b.client.Subscribe(ctx, ChannelName(projectID))
	// Force the subscription handshake so auth/connection errors surface here.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan models.ProgressFrame, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var frame models.ProgressFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				slog.Warn("decode progress frame", "project_id", projectID, "error", err)
				continue
			}
			select {
			case out <- frame:
			default:
				// Drop for slow subscribers; progress is advisory.
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}

var _ Bus = (*RedisBus)(nil)
