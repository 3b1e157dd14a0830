//go:build integration

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/akosicedzkii/pdforever/internal/domain"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisPublisherPublishesAndCounts(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	p, err := NewRedisPublisher(RedisConfig{Addr: addr, Channel: "sessions"})
	require.NoError(t, err)
	defer p.Close()

	sub := goredis.NewClient(&goredis.Options{Addr: addr})
	defer sub.Close()
	pubsub := sub.Subscribe(ctx, p.Channel())
	defer pubsub.Close()
	_, err = pubsub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, p.Publish(ctx, Event{Type: TypeSessionOpened, SessionID: "s1", Operation: domain.OpImagesToPDF}))
	require.NoError(t, p.Publish(ctx, Event{
		Type:      TypeSessionClosed,
		SessionID: "s1",
		Operation: domain.OpImagesToPDF,
		State:     domain.StateDelivering,
		Outcome:   OutcomeDelivered,
	}))

	for _, want := range []string{TypeSessionOpened, TypeSessionClosed} {
		msg, err := pubsub.ReceiveMessage(ctx)
		require.NoError(t, err)
		var e Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &e))
		assert.Equal(t, want, e.Type)
		assert.Equal(t, "s1", e.SessionID)
	}

	n, err := p.Count(ctx, OutcomeDelivered)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = p.Count(ctx, OutcomeConversionError)
	require.NoError(t, err)
	assert.Zero(t, n)
}
