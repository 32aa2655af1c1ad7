package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisProcessedKeyPrefix = "reservation:processed:"

// redis-backed processed store; entries expire on their own so Cleanup is a
// noop here
type RedisProcessedStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisProcessedStore(ctx context.Context, addr string) (*RedisProcessedStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisProcessedStore{
		client:    client,
		retention: 7 * 24 * time.Hour,
	}, nil
}

func (r *RedisProcessedStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	n, err := r.client.Exists(ctx, redisProcessedKeyPrefix+messageID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisProcessedStore) MarkProcessed(ctx context.Context, messageID, messageType string) error {
	return r.client.Set(ctx, redisProcessedKeyPrefix+messageID, messageType, r.retention).Err()
}

func (r *RedisProcessedStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	return nil
}

func (r *RedisProcessedStore) Close() error {
	return r.client.Close()
}
