package publish

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questboard/scheduler/internal/store"
)

func newTestPublisher(t *testing.T) (*RedisPublisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisPublisherFromClient(client, "questboard:schedule", slog.Default()), client
}

func TestRedisPublishRoundTrip(t *testing.T) {
	pub, client := newTestPublisher(t)
	ctx := context.Background()

	offset := 15
	r := store.Row{
		ID:            uuid.New(),
		GameID:        uuid.New(),
		Kind:          store.KindReminder,
		OffsetMinutes: &offset,
		DueTime:       time.Date(2026, 8, 24, 19, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.Publish(ctx, FromRow(r)))

	msgs, err := client.XRange(ctx, "questboard:schedule", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	assert.Equal(t, EventReminderDue, msgs[0].Values["event"])
	assert.Equal(t, DedupKey(r), msgs[0].Values["dedup_key"])

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["body"].(string)), &env))
	assert.Equal(t, r.GameID.String(), env.GameID)
	assert.Equal(t, r.DueTime, env.ScheduledFor)
}

func TestRedisPublishBrokerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	pub := NewRedisPublisherFromClient(client, "questboard:schedule", slog.Default())

	mr.Close()
	err := pub.Publish(context.Background(), FromRow(store.Row{ID: uuid.New()}))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRedisHealthCheck(t *testing.T) {
	pub, _ := newTestPublisher(t)
	assert.NoError(t, pub.HealthCheck(context.Background()))
}
