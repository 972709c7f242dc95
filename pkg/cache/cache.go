package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	// ErrCacheMiss is returned when a key is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

// Cache defines the interface for cache operations
type Cache interface {
	// Get retrieves a value from cache into dest
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value in cache with TTL; zero TTL uses the default
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes keys from cache
	Delete(ctx context.Context, keys ...string) error

	// Invalidate removes all keys matching a pattern
	Invalidate(ctx context.Context, pattern string) error

	// Ping checks if cache is available
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// Codec defines the interface for encoding/decoding cache values
type Codec interface {
	Encode(value interface{}) ([]byte, error)
	Decode(data []byte, dest interface{}) error
}

// JSONCodec implements Codec using JSON encoding
type JSONCodec struct{}

func (c *JSONCodec) Encode(value interface{}) ([]byte, error) {
	return json.Marshal(value)
}

func (c *JSONCodec) Decode(data []byte, dest interface{}) error {
	return json.Unmarshal(data, dest)
}

// Options represents cache configuration options
type Options struct {
	// DefaultTTL is the default TTL for cache entries
	DefaultTTL time.Duration

	// MaxRetries is the maximum number of retries for writes
	MaxRetries int

	// RetryDelay is the delay between retries
	RetryDelay time.Duration

	// Namespace is a prefix for all cache keys
	Namespace string

	// Codec is the encoder/decoder for cache values
	Codec Codec

	// CompressionThreshold is the minimum size in bytes to enable compression
	CompressionThreshold int

	// Name labels the hit/miss metrics
	Name string
}

// DefaultOptions returns default cache options
func DefaultOptions() *Options {
	return &Options{
		DefaultTTL:           5 * time.Minute,
		MaxRetries:           2,
		RetryDelay:           50 * time.Millisecond,
		Codec:                &JSONCodec{},
		CompressionThreshold: 1024,
		Name:                 "default",
	}
}

// KeyBuilder builds cache keys with consistent formatting
type KeyBuilder struct {
	namespace string
	separator string
}

func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{
		namespace: namespace,
		separator: ":",
	}
}

// Build builds a cache key from parts
func (b *KeyBuilder) Build(parts ...string) string {
	if b.namespace != "" {
		parts = append([]string{b.namespace}, parts...)
	}
	return strings.Join(parts, b.separator)
}

// Pattern builds a pattern for cache invalidation
func (b *KeyBuilder) Pattern(parts ...string) string {
	return b.Build(parts...) + "*"
}

// nopCache never stores anything.
type nopCache struct{}

// NewNop returns a cache that always misses.
func NewNop() Cache { return nopCache{} }

func (nopCache) Get(context.Context, string, interface{}) error { return ErrCacheMiss }

func (nopCache) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func (nopCache) Delete(context.Context, ...string) error { return nil }

func (nopCache) Invalidate(context.Context, string) error { return nil }

func (nopCache) Ping(context.Context) error { return nil }

func (nopCache) Close() error { return nil }
