package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Prefix    string        // Channel and key prefix (default: "vitalguard")
	LatestTTL time.Duration // TTL of the latest-reading cache (default: 10m)
}

// NewRedisClient creates a Redis client from cfg.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisPublisher publishes room events to Redis pub/sub channels named
// <prefix>:<room> and caches the latest reading per device.
type RedisPublisher struct {
	client    *redis.Client
	prefix    string
	latestTTL time.Duration
	logger    *zap.Logger
}

// NewRedisPublisher creates a publisher on an existing client.
func NewRedisPublisher(client *redis.Client, cfg RedisConfig, logger *zap.Logger) *RedisPublisher {
	if cfg.Prefix == "" {
		cfg.Prefix = "vitalguard"
	}
	if cfg.LatestTTL <= 0 {
		cfg.LatestTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{
		client:    client,
		prefix:    cfg.Prefix,
		latestTTL: cfg.LatestTTL,
		logger:    logger.Named("redis"),
	}
}

// Channel returns the pub/sub channel for room.
func (p *RedisPublisher) Channel(room string) string {
	return p.prefix + ":" + room
}

func (p *RedisPublisher) latestKey(deviceID string) string {
	return fmt.Sprintf("%s:latest:%s", p.prefix, deviceID)
}

// Publish sends a {room,event,data} envelope to the room's channel.
func (p *RedisPublisher) Publish(ctx context.Context, room, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	payload, err := json.Marshal(Message{Room: room, Event: event, Data: raw})
	if err != nil {
		return fmt.Errorf("encode %s message: %w", event, err)
	}
	if err := p.client.Publish(ctx, p.Channel(room), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", room, err)
	}
	return nil
}

// CacheReading stores r as the device's latest reading.
func (p *RedisPublisher) CacheReading(ctx context.Context, r *models.Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}
	if err := p.client.Set(ctx, p.latestKey(r.DeviceID), data, p.latestTTL).Err(); err != nil {
		return fmt.Errorf("failed to set latest reading: %w", err)
	}
	p.logger.Debug("cached latest reading",
		zap.String("device_id", r.DeviceID),
		zap.String("reading_id", r.ID))
	return nil
}

// LatestReading returns the cached latest reading, or nil when none is
// cached or it has expired.
func (p *RedisPublisher) LatestReading(ctx context.Context, deviceID string) (*models.Reading, error) {
	data, err := p.client.Get(ctx, p.latestKey(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}

	var r models.Reading
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal latest reading: %w", err)
	}
	return &r, nil
}

// Ping checks the Redis connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
