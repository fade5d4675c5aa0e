package queuestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spoolhouse/sqlspool/internal/core/domain"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// RedisStore keeps the queue index in Redis so it survives process
// restarts. One hash per configuration, entry id -> JSON.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{rdb: rdb}, nil
}

func queueKey(configName string) string {
	return fmt.Sprintf("sqlspool:queue:%s", configName)
}

func (s *RedisStore) Add(ctx context.Context, entry domain.QueuedFile) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry: %w", err)
	}
	if err := s.rdb.HSet(ctx, queueKey(entry.ConfigName), entry.ID, data).Err(); err != nil {
		return fmt.Errorf("hset failed: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, configName string) ([]domain.QueuedFile, error) {
	values, err := s.rdb.HGetAll(ctx, queueKey(configName)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall failed: %w", err)
	}

	out := make([]domain.QueuedFile, 0, len(values))
	for _, raw := range values {
		var entry domain.QueuedFile
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueuedAt.Before(out[j].QueuedAt) })
	return out, nil
}

func (s *RedisStore) Remove(ctx context.Context, configName, id string) error {
	if err := s.rdb.HDel(ctx, queueKey(configName), id).Err(); err != nil {
		return fmt.Errorf("hdel failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
