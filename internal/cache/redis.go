// Package cache memoizes dispatch replies behind a Redis-backed
// singleton client, with a distributed lock so concurrent identical
// requests coalesce onto a single dispatch run instead of each paying
// the full catalogue/render/route cost.
package cache

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	client     *redis.Client
	clientOnce sync.Once
	clientErr  error
)

// Config holds Redis configuration.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
	MutexTTL time.Duration
}

// LoadConfigFromEnv loads Redis configuration from environment variables.
func LoadConfigFromEnv() *Config {
	port, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, _ := time.ParseDuration(getEnv("CACHE_TTL", "10m"))
	mutexTTL, _ := time.ParseDuration(getEnv("CACHE_MUTEX_TTL", "5s"))

	return &Config{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     port,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
		TTL:      ttl,
		MutexTTL: mutexTTL,
	}
}

// GetClient returns the global Redis client (singleton pattern).
func GetClient() (*redis.Client, error) {
	clientOnce.Do(func() {
		config := LoadConfigFromEnv()

		opts := &redis.Options{
			Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
			Password:     config.Password,
			DB:           config.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 2,
		}

		if getEnv("REDIS_TLS_ENABLED", "false") == "true" {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}

		client = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			clientErr = fmt.Errorf("failed to connect to Redis: %w", err)
		}
	})

	return client, clientErr
}

// Close closes the Redis client.
func Close() {
	if client != nil {
		client.Close()
	}
}

// ReplyKey hashes a request document's raw bytes into a cache key. The
// same document (base_requests, settings, stat_requests all included)
// always dispatches to the same reply array, so the full document is
// the cache key's input rather than any single query.
func ReplyKey(requestDocument []byte) string {
	hash := sha256.Sum256(requestDocument)
	return fmt.Sprintf("reply:%x", hash)
}

func lockKey(replyKey string) string {
	return fmt.Sprintf("lock:%s", replyKey)
}

// GetReply retrieves a cached reply document's raw JSON bytes.
func GetReply(ctx context.Context, key string) ([]byte, error) {
	c, err := GetClient()
	if err != nil {
		return nil, err
	}
	data, err := c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SetReply caches a reply document's raw JSON bytes under key.
func SetReply(ctx context.Context, key string, reply []byte, ttl time.Duration) error {
	c, err := GetClient()
	if err != nil {
		return err
	}
	return c.Set(ctx, key, reply, ttl).Err()
}

// AcquireLock attempts to acquire a distributed lock for the dispatch
// run that will populate key. Returns true if the lock was acquired.
func AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c, err := GetClient()
	if err != nil {
		return false, err
	}
	return c.SetNX(ctx, lockKey(key), "1", ttl).Result()
}

// ReleaseLock releases the distributed lock for key.
func ReleaseLock(ctx context.Context, key string) error {
	c, err := GetClient()
	if err != nil {
		return err
	}
	return c.Del(ctx, lockKey(key)).Err()
}

// WaitForReply polls for a lock's release and then retrieves the
// result it was guarding, avoiding a thundering herd of identical
// dispatch runs when many callers race on the same request document.
func WaitForReply(ctx context.Context, key string, maxWait time.Duration) ([]byte, error) {
	c, err := GetClient()
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		exists, err := c.Exists(ctx, lockKey(key)).Result()
		if err != nil {
			return nil, err
		}
		if exists == 0 {
			return GetReply(ctx, key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("timeout waiting for cached reply")
}

// HealthCheck performs a health check on the Redis connection.
func HealthCheck(ctx context.Context) error {
	c, err := GetClient()
	if err != nil {
		return fmt.Errorf("Redis client not initialized: %w", err)
	}
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}
	return nil
}

// Stats returns Redis connection pool and server statistics.
func Stats(ctx context.Context) (map[string]interface{}, error) {
	c, err := GetClient()
	if err != nil {
		return nil, err
	}

	info, err := c.Info(ctx, "stats").Result()
	if err != nil {
		return nil, err
	}

	poolStats := c.PoolStats()
	return map[string]interface{}{
		"info":        info,
		"hits":        poolStats.Hits,
		"misses":      poolStats.Misses,
		"timeouts":    poolStats.Timeouts,
		"total_conns": poolStats.TotalConns,
		"idle_conns":  poolStats.IdleConns,
		"stale_conns": poolStats.StaleConns,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
