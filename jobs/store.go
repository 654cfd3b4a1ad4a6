// Package jobs keeps the lifecycle status of assembly jobs so the HTTP API
// can report on work started by any entry point.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"nightreel/types"
)

var ErrNotFound = errors.New("job not found")

// Store records job statuses by id.
type Store interface {
	Put(ctx context.Context, status types.JobStatus) error
	Get(ctx context.Context, id string) (*types.JobStatus, error)
}

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	Addr     string // e.g. localhost:6379
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisConfigFromEnv reads REDIS_ADDR, REDIS_PASS, REDIS_DB, JOB_KEY_PREFIX
// and JOB_TTL_SECONDS.
func RedisConfigFromEnv() RedisConfig {
	cfg := RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASS"),
		Prefix:   os.Getenv("JOB_KEY_PREFIX"),
		TTL:      7 * 24 * time.Hour,
	}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "nightreel:job:"
	}
	if db, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil && db >= 0 {
		cfg.DB = db
	}
	if secs, err := strconv.Atoi(os.Getenv("JOB_TTL_SECONDS")); err == nil && secs > 0 {
		cfg.TTL = time.Duration(secs) * time.Second
	}
	return cfg
}

// RedisStore keeps each status as a JSON string under prefix+id with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return &RedisStore{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}, nil
}

func (r *RedisStore) key(id string) string { return r.prefix + id }

func (r *RedisStore) Put(ctx context.Context, status types.JobStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(status.ID), data, r.ttl).Err()
}

func (r *RedisStore) Get(ctx context.Context, id string) (*types.JobStatus, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var status types.JobStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &status, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// MemoryStore is the in-process store used when Redis is not configured.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[string]types.JobStatus
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{statuses: make(map[string]types.JobStatus)}
}

func (m *MemoryStore) Put(_ context.Context, status types.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[status.ID] = status
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*types.JobStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &status, nil
}
