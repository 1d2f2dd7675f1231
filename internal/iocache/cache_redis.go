package iocache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "teampulse:cache:"
	redisTimeout   = 5 * time.Second
	redisScanCount = 100
)

// RedisCacheStore keeps each entry in a hash with value, version and ts
// fields. Entries expire on the server after the TTL.
type RedisCacheStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ contract.CacheStore = &RedisCacheStore{} // Compile-time check

// NewRedisCacheStore connects to the redis URL, e.g. redis://localhost:6379/0.
func NewRedisCacheStore(url string, ttl time.Duration) (*RedisCacheStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w. Check connection format: redis://[:password@]host:port/db", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis cache at %s: %w", opts.Addr, err)
	}
	return &RedisCacheStore{client: client, ttl: ttl}, nil
}

func (r *RedisCacheStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisTimeout)
}

// Get retrieves a value by key. A missing or expired key wraps ErrNotFound.
func (r *RedisCacheStore) Get(key string) ([]byte, int, int64, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	fields, err := r.client.HGetAll(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return nil, 0, 0, err
	}
	if len(fields) == 0 {
		return nil, 0, 0, fmt.Errorf("cache key %s: %w", key, contract.ErrNotFound)
	}
	version, err := strconv.Atoi(fields["version"])
	if err != nil {
		return nil, 0, 0, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	ts, err := strconv.ParseInt(fields["ts"], 10, 64)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	return []byte(fields["value"]), version, ts, nil
}

// Set writes the entry and its expiry in one MULTI/EXEC.
func (r *RedisCacheStore) Set(key string, value []byte, version int, timestamp int64) error {
	ctx, cancel := r.ctx()
	defer cancel()

	full := redisKeyPrefix + key
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, full)
		pipe.HSet(ctx, full, "value", value, "version", version, "ts", timestamp)
		if r.ttl > 0 {
			pipe.Expire(ctx, full, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", contract.ErrCacheWrite, key, err)
	}
	return nil
}

// Delete removes a key.
func (r *RedisCacheStore) Delete(key string) error {
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}
	return nil
}

// scanKeys calls fn for every batch of cache keys.
func (r *RedisCacheStore) scanKeys(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, redisKeyPrefix+"*", redisScanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Clear removes every cache key. Other keys in the same database are untouched.
func (r *RedisCacheStore) Clear() error {
	ctx, cancel := r.ctx()
	defer cancel()
	err := r.scanKeys(ctx, func(keys []string) error {
		return r.client.Del(ctx, keys...).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to clear redis cache: %w", err)
	}
	return nil
}

// Close closes the client.
func (r *RedisCacheStore) Close() error {
	return r.client.Close()
}

// GetStatus counts entries and sums their value sizes.
func (r *RedisCacheStore) GetStatus() (schema.CacheStatus, error) {
	status := schema.CacheStatus{Backend: string(schema.RedisCache), Connected: true}

	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		status.Connected = false
		return status, nil
	}

	var newest, oldest int64
	err := r.scanKeys(ctx, func(keys []string) error {
		for _, key := range keys {
			fields, err := r.client.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				continue // expired between SCAN and HGETALL
			}
			ts, err := strconv.ParseInt(fields["ts"], 10, 64)
			if err != nil {
				continue
			}
			status.TotalEntries++
			status.TableSizeBytes += int64(len(fields["value"]))
			if newest == 0 || ts > newest {
				newest = ts
			}
			if oldest == 0 || ts < oldest {
				oldest = ts
			}
		}
		return nil
	})
	if err != nil {
		return status, fmt.Errorf("failed to scan redis cache: %w", err)
	}
	if status.TotalEntries > 0 {
		status.LastEntryTime = time.Unix(newest, 0)
		status.OldestEntryTime = time.Unix(oldest, 0)
	}
	return status, nil
}
