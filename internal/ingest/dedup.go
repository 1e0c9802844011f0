package ingest

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper decides whether an operational event has been seen before.
// Kafka redelivers on rebalance; a redelivered event must not trigger a
// second execution.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// RedisDeduper marks event IDs with SETNX under a TTL.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a Deduper on the given client.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupKey(eventID), "seen", d.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func dedupKey(eventID string) string {
	return "ingest:event:" + eventID
}
