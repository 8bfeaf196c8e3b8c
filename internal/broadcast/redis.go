package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/warfront/realm-engine/internal/model"
)

// RedisPublisher publishes domain events to a Redis pub/sub channel so
// other engine instances and out-of-process consumers (war scoring) can
// observe them.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher on channel.
func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) PublishEvent(ctx context.Context, ev model.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("encode event", "report", ev.ReportID, "err", err)
		return
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		slog.Warn("publish event failed", "channel", p.channel, "report", ev.ReportID, "err", err)
	}
}

// Relay subscribes to channel and forwards every event to dst until ctx
// is done. Used to feed the local WebSocket hub from the shared channel.
func Relay(ctx context.Context, rdb *redis.Client, channel string, dst Publisher) {
	sub := rdb.Subscribe(ctx, channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev model.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.Warn("drop malformed event", "channel", channel, "err", err)
				continue
			}
			dst.PublishEvent(ctx, ev)
		}
	}
}
