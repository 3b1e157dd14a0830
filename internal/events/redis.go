package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pdforever:"

// RedisConfig holds Redis connection settings for the publisher.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	Channel  string
}

// RedisPublisher publishes events as JSON on a channel and keeps per-outcome
// counters of closed sessions.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = "sessions"
	}

	return &RedisPublisher{
		client:  client,
		channel: keyPrefix + channel,
	}, nil
}

// Channel returns the fully prefixed channel name.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := p.client.TxPipeline()
	pipe.Publish(ctx, p.channel, data)
	if e.Type == TypeSessionClosed && e.Outcome != "" {
		pipe.Incr(ctx, outcomeKey(e.Outcome))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Count returns how many sessions closed with outcome.
func (p *RedisPublisher) Count(ctx context.Context, outcome string) (int64, error) {
	n, err := p.client.Get(ctx, outcomeKey(outcome)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return n, nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func outcomeKey(outcome string) string {
	return keyPrefix + "sessions:closed:" + outcome
}
