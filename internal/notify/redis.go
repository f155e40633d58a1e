package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/seat-reservation-service/internal/config"
	"github.com/fairyhunter13/seat-reservation-service/internal/model"
)

// redisClient is the subset of *redis.Client the publisher uses.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisPublisher publishes events on a per-event channel and caches the
// latest status of each seat.
type RedisPublisher struct {
	client    redisClient
	prefix    string
	statusTTL time.Duration
}

// DialRedis connects to Redis and verifies the connection.
func DialRedis(ctx context.Context, cfg config.Redis) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisPublisher(client, cfg.ChannelPrefix, cfg.StatusTTL), nil
}

// NewRedisPublisher wraps an existing client.
func NewRedisPublisher(client redisClient, prefix string, statusTTL time.Duration) *RedisPublisher {
	if prefix == "" {
		prefix = "seat_events"
	}
	return &RedisPublisher{client: client, prefix: prefix, statusTTL: statusTTL}
}

func (r *RedisPublisher) channel(eventID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, eventID)
}

func (r *RedisPublisher) seatStatusKey(eventID string, seat int) string {
	return fmt.Sprintf("seat_status:%s:%d", eventID, seat)
}

// Publish sends ev on the event channel, then records the seat status.
func (r *RedisPublisher) Publish(ctx context.Context, ev model.SeatEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel(ev.EventID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	if err := r.client.Set(ctx, r.seatStatusKey(ev.EventID, ev.Seat), string(ev.Status()), r.statusTTL).Err(); err != nil {
		return fmt.Errorf("redis set seat status: %w", err)
	}
	return nil
}

func (r *RedisPublisher) Close() error { return r.client.Close() }
