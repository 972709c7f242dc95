package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/linkflow-go/templates/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache using Redis
type RedisCache struct {
	client  *redis.Client
	options *Options
	codec   Codec
}

func NewRedisCache(client *redis.Client, opts *Options) *RedisCache {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Codec == nil {
		opts.Codec = &JSONCodec{}
	}
	if opts.Name == "" {
		opts.Name = "default"
	}

	return &RedisCache{
		client:  client,
		options: opts,
		codec:   opts.Codec,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheMiss(c.options.Name)
			return ErrCacheMiss
		}
		return fmt.Errorf("redis get error: %w", err)
	}

	data, err = c.decompress(data)
	if err != nil {
		return fmt.Errorf("decompress error: %w", err)
	}

	if err := c.codec.Decode(data, dest); err != nil {
		return fmt.Errorf("decode error: %w", err)
	}

	metrics.RecordCacheHit(c.options.Name)
	return nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := c.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("encode error: %w", err)
	}

	data = c.compress(data)

	if ttl == 0 {
		ttl = c.options.DefaultTTL
	}

	key = c.buildKey(key)
	err = c.retryOperation(func() error {
		return c.client.Set(ctx, key, data, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	built := make([]string, len(keys))
	for i, key := range keys {
		built[i] = c.buildKey(key)
	}

	err := c.retryOperation(func() error {
		return c.client.Del(ctx, built...).Err()
	})
	if err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, pattern string) error {
	pattern = c.buildKey(pattern)

	var cursor uint64
	var keys []string

	for {
		batch, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan error: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline delete error: %w", err)
	}

	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) buildKey(key string) string {
	if c.options.Namespace != "" {
		return fmt.Sprintf("%s:%s", c.options.Namespace, key)
	}
	return key
}

// Payloads at or above the threshold are gzipped and prefixed with a 1 byte.
// JSON never starts with that byte.
func (c *RedisCache) compress(data []byte) []byte {
	if c.options.CompressionThreshold <= 0 || len(data) < c.options.CompressionThreshold {
		return data
	}

	var buf bytes.Buffer
	buf.WriteByte(1)

	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return data
	}
	if err := gz.Close(); err != nil {
		return data
	}

	return buf.Bytes()
}

func (c *RedisCache) decompress(data []byte) ([]byte, error) {
	if len(data) == 0 || data[0] != 1 {
		return data, nil
	}

	gz, err := gzip.NewReader(bytes.NewReader(data[1:]))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

func (c *RedisCache) retryOperation(fn func() error) error {
	var err error
	for i := 0; i <= c.options.MaxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if i < c.options.MaxRetries {
			time.Sleep(c.options.RetryDelay)
		}
	}
	return err
}
