package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	RecentTurnsTTL = 24 * time.Hour
	PersonaTTL     = time.Hour
	MediaIndexTTL  = 30 * 24 * time.Hour
)

type Cache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(url string, prefix string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{
		client: client,
		prefix: prefix,
	}, nil
}

// NewFromClient wraps an already configured client.
func NewFromClient(client *redis.Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

// IsMiss reports a missing key.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Cache) Key(parts ...string) string {
	if c.prefix == "" {
		return strings.Join(parts, ":")
	}
	return c.prefix + ":" + strings.Join(parts, ":")
}

func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

// SetNX sets key only if it does not exist yet and reports whether it did.
func (c *Cache) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *Cache) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Version reads the counter at key; a missing counter is version 0.
func (c *Cache) Version(ctx context.Context, key string) (int64, error) {
	v, err := c.client.Get(ctx, key).Int64()
	if IsMiss(err) {
		return 0, nil
	}
	return v, err
}

// PushCapped bumps the version counter and pushes value onto the head of an
// existing list, capped at size entries. Both happen in one transaction. A
// missing list stays missing and the returned length is 0.
func (c *Cache) PushCapped(ctx context.Context, versionKey, key, value string, size int64, ttl time.Duration) (int64, error) {
	var pushed *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, ttl)
		pushed = pipe.LPushX(ctx, key, value)
		pipe.LTrim(ctx, key, 0, size-1)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pushed.Val(), nil
}

// ReplaceList swaps the list at key for values (pushed in order, so the last
// value ends up at the head), but only while versionKey still reads version.
// It reports whether the list was written.
func (c *Cache) ReplaceList(ctx context.Context, versionKey string, version int64, key string, values []string, ttl time.Duration) (bool, error) {
	replaced := false
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !IsMiss(err) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(values) > 0 {
				pipe.LPush(ctx, key, toArgs(values)...)
				pipe.Expire(ctx, key, ttl)
			}
			return nil
		})
		if err != nil {
			return err
		}
		replaced = true
		return nil
	}, versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return replaced, err
}

// Reset deletes the list at key and moves its version, so fills started
// against the old contents are discarded.
func (c *Cache) Reset(ctx context.Context, versionKey, key string, ttl time.Duration) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, ttl)
		return nil
	})
	return err
}

func (c *Cache) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.client.LRange(ctx, key, start, stop).Result()
}

func toArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func (c *Cache) Close() error {
	return c.client.Close()
}
