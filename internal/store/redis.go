package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eldtechnologies/agentslack/internal/models"
)

const (
	recentCallsKey = "toolcalls:recent"
	recentCallsCap = 1000
)

// RedisStore wraps the Redis connection shared by the rate limiter and the
// recent tool-call feed.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// RecordToolCall adds the call to a capped sorted set scored by time.
func (s *RedisStore) RecordToolCall(ctx context.Context, call models.ToolCall) error {
	data, err := json.Marshal(call)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, recentCallsKey, redis.Z{
		Score:  float64(call.At.UnixMilli()),
		Member: data,
	})
	pipe.ZRemRangeByRank(ctx, recentCallsKey, 0, -recentCallsCap-1)
	_, err = pipe.Exec(ctx)
	return err
}

// RecentToolCalls returns the newest calls first.
func (s *RedisStore) RecentToolCalls(ctx context.Context, limit int) ([]models.ToolCall, error) {
	results, err := s.client.ZRevRange(ctx, recentCallsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	calls := make([]models.ToolCall, 0, len(results))
	for _, r := range results {
		var c models.ToolCall
		if err := json.Unmarshal([]byte(r), &c); err != nil {
			continue
		}
		calls = append(calls, c)
	}
	return calls, nil
}

// LastActivity returns the time of the newest recorded call.
func (s *RedisStore) LastActivity(ctx context.Context) (time.Time, bool, error) {
	res, err := s.client.ZRevRangeWithScores(ctx, recentCallsKey, 0, 0).Result()
	if err != nil || len(res) == 0 {
		return time.Time{}, false, err
	}
	return time.UnixMilli(int64(res[0].Score)), true, nil
}
