package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, *RedisPublisher) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	pub := NewRedisPublisher(client, RedisConfig{Prefix: "vg", LatestTTL: time.Minute}, nil)
	return mr, client, pub
}

func testReading() *models.Reading {
	return &models.Reading{
		ID:        "r-1",
		DeviceID:  "watch-1",
		Timestamp: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		HeartRate: &models.VitalSample{Value: 72},
		SpO2:      &models.VitalSample{Value: 97},
	}
}

func TestRedisPublisher_Publish(t *testing.T) {
	_, client, pub := setupTestRedis(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, "vg:device:watch-1")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, "device:watch-1", EventSensorData, testReading()))

	select {
	case msg := <-sub.Channel():
		var m Message
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &m))
		assert.Equal(t, "device:watch-1", m.Room)
		assert.Equal(t, EventSensorData, m.Event)

		var r models.Reading
		require.NoError(t, json.Unmarshal(m.Data, &r))
		assert.Equal(t, "r-1", r.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRedisPublisher_LatestReading(t *testing.T) {
	mr, _, pub := setupTestRedis(t)
	ctx := context.Background()

	got, err := pub.LatestReading(ctx, "watch-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, pub.CacheReading(ctx, testReading()))
	assert.True(t, mr.Exists("vg:latest:watch-1"))
	assert.Equal(t, time.Minute, mr.TTL("vg:latest:watch-1"))

	got, err = pub.LatestReading(ctx, "watch-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r-1", got.ID)
	assert.Equal(t, 72.0, got.HeartRate.Value)

	mr.FastForward(2 * time.Minute)
	got, err = pub.LatestReading(ctx, "watch-1")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entry should read as missing")
}

func TestRedisPublisher_CorruptCache(t *testing.T) {
	mr, _, pub := setupTestRedis(t)
	require.NoError(t, mr.Set("vg:latest:watch-1", "{not json"))

	_, err := pub.LatestReading(context.Background(), "watch-1")
	assert.Error(t, err)
}

func TestRedisPublisher_Defaults(t *testing.T) {
	pub := NewRedisPublisher(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), RedisConfig{}, nil)
	assert.Equal(t, "vitalguard:global", pub.Channel(RoomGlobal))
	assert.Equal(t, 10*time.Minute, pub.latestTTL)
}

func TestRedisPublisher_Unavailable(t *testing.T) {
	mr, _, pub := setupTestRedis(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, pub.Ping(ctx))
	assert.Error(t, pub.Publish(ctx, RoomGlobal, EventGlobalAlert, "x"))
}
