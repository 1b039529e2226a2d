// Package redisx holds the Redis client, key layout and the two small stores
// built on it: webhook dedup and the payment status cache.
package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// dedup:{provider}:{reference}:{state}:{txn}
	KeyWebhookDedup = "dedup:%s:%s:%s:%s"
	// payment_status:{provider}:{reference} -> payment status
	KeyPaymentStatus = "payment_status:%s:%s"
)

func New(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// DedupStore remembers which notifications were already processed.
type DedupStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDedupStore(rdb *redis.Client, ttl time.Duration) *DedupStore {
	return &DedupStore{rdb: rdb, ttl: ttl}
}

func (s *DedupStore) Key(provider, reference, state, txnID string) string {
	return fmt.Sprintf(KeyWebhookDedup, provider, reference, state, txnID)
}

// Seen claims key and reports whether it had already been claimed.
func (s *DedupStore) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Release forgets key so a failed notification can be retried by the vendor.
func (s *DedupStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// StatusCache keeps the last polled payment status for a short time so that
// browsers polling the status endpoint do not hammer the vendor.
type StatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStatusCache(rdb *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{rdb: rdb, ttl: ttl}
}

// Get returns "", false on a miss.
func (c *StatusCache) Get(ctx context.Context, provider, reference string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, fmt.Sprintf(KeyPaymentStatus, provider, reference)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *StatusCache) Set(ctx context.Context, provider, reference, status string) error {
	return c.rdb.Set(ctx, fmt.Sprintf(KeyPaymentStatus, provider, reference), status, c.ttl).Err()
}

func (c *StatusCache) Invalidate(ctx context.Context, provider, reference string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyPaymentStatus, provider, reference)).Err()
}
