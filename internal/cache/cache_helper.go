package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheConfig pairs a key prefix with the TTL of entries written under it.
type CacheConfig struct {
	TTL    time.Duration
	Prefix string
}

var (
	// Exam rows change only through administrative actions, each of which
	// deletes the key.
	ExamCacheConfig = CacheConfig{
		TTL:    2 * time.Minute,
		Prefix: "exam:",
	}

	// Question bank is read-only to this service
	QuestionCacheConfig = CacheConfig{
		TTL:    10 * time.Minute,
		Prefix: "question:",
	}

	// Submitted attempts never change again.
	AttemptCacheConfig = CacheConfig{
		TTL:    5 * time.Minute,
		Prefix: "attempt:",
	}

	// Computed leaderboards; generation counters never expire
	LeaderboardCacheConfig = CacheConfig{
		TTL:    30 * time.Minute,
		Prefix: "leaderboard:",
	}
)

var (
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrCacheNotFound     = errors.New("cache not found")
)

// CacheHelper stores JSON values under one key prefix. A helper without a
// client misses on every read and drops every write.
type CacheHelper struct {
	client *redis.Client
	config CacheConfig
}

func NewCacheHelper(client *redis.Client, config CacheConfig) *CacheHelper {
	return &CacheHelper{client: client, config: config}
}

// GetCacheKey returns the full Redis key for key.
func (c *CacheHelper) GetCacheKey(key string) string {
	return c.config.Prefix + key
}

func (c *CacheHelper) Get(ctx context.Context, key string, dest any) error {
	if c.client == nil {
		return ErrCacheNotAvailable
	}
	data, err := c.client.Get(ctx, c.GetCacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheNotFound
	}
	if err != nil {
		return fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal: %w", err)
	}
	return nil
}

// Set writes value with the helper's TTL.
func (c *CacheHelper) Set(ctx context.Context, key string, value any) error {
	if c.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	return c.client.Set(ctx, c.GetCacheKey(key), data, c.config.TTL).Err()
}

func (c *CacheHelper) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = c.GetCacheKey(key)
	}
	return c.client.Del(ctx, full...).Err()
}

// Forget deletes keys and logs instead of failing; a stale entry expires
// with its TTL.
func (c *CacheHelper) Forget(ctx context.Context, keys ...string) {
	if err := c.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys", "error", err, "keys", keys)
	}
}

// InvalidatePattern removes every key under the prefix matching pattern.
// It walks the keyspace with SCAN so a large keyspace never blocks Redis.
func (c *CacheHelper) InvalidatePattern(ctx context.Context, pattern string) error {
	if c.client == nil {
		return nil
	}

	iter := c.client.Scan(ctx, 0, c.GetCacheKey(pattern), 100).Iterator()
	pipe := c.client.Pipeline()
	queued := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		queued++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan %q: %w", pattern, err)
	}
	if queued == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache delete %d keys: %w", queued, err)
	}
	return nil
}

// ReadThrough returns the cached value for key, or loads it, stores it and
// returns it. Cache failures are logged and never fail the read.
func ReadThrough[T any](ctx context.Context, c *CacheHelper, key string, load func() (*T, error)) (*T, error) {
	var cached T
	err := c.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ErrCacheNotFound) && !errors.Is(err, ErrCacheNotAvailable) {
		slog.WarnContext(ctx, "Cache read failed, loading from source", "error", err, "key", c.GetCacheKey(key))
	}

	value, err := load()
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, value); err != nil {
		slog.WarnContext(ctx, "Cache write failed", "error", err, "key", c.GetCacheKey(key))
	}
	return value, nil
}

// CacheManager holds the per-entity helpers the repositories share.
type CacheManager struct {
	client *redis.Client

	Exam     *CacheHelper
	Question *CacheHelper
	Attempt  *CacheHelper
}

func NewCacheManager(client *redis.Client) *CacheManager {
	return &CacheManager{
		client:   client,
		Exam:     NewCacheHelper(client, ExamCacheConfig),
		Question: NewCacheHelper(client, QuestionCacheConfig),
		Attempt:  NewCacheHelper(client, AttemptCacheConfig),
	}
}

func (cm *CacheManager) HealthCheck(ctx context.Context) error {
	if cm.client == nil {
		return ErrCacheNotAvailable
	}
	if err := cm.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}
	return nil
}

// InvalidateExam drops the cached exam row.
func (cm *CacheManager) InvalidateExam(ctx context.Context, examID uint) {
	cm.Exam.Forget(ctx, IDKey(examID))
}

func IDKey(id uint) string {
	return fmt.Sprintf("id:%d", id)
}
