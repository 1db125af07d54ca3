// Package redis adapts a go-redis client to the key-value operations the
// usage tracker needs.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nadavnv/smart-home-core/internal/infrastructure/config"
)

const pingTimeout = 5 * time.Second

// Store implements the usage tracker's KV interface on Redis sets, hashes
// and lists. It is safe for concurrent use.
type Store struct {
	rdb *goredis.Client
}

// Connect creates a client from cfg and pings it.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}

	return &Store{rdb: rdb}, nil
}

// NewStore wraps an existing client.
func NewStore(rdb *goredis.Client) *Store {
	return &Store{rdb: rdb}
}

// SAdd adds member to the set at key.
func (s *Store) SAdd(ctx context.Context, key, member string) error {
	return s.rdb.SAdd(ctx, key, member).Err()
}

// SRem removes member from the set at key.
func (s *Store) SRem(ctx context.Context, key, member string) error {
	return s.rdb.SRem(ctx, key, member).Err()
}

// SIsMember reports whether member is in the set at key.
func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return s.rdb.SIsMember(ctx, key, member).Result()
}

// HGet returns a hash field; ok is false when the field is absent.
func (s *Store) HGet(ctx context.Context, key, field string) (value string, ok bool, err error) {
	value, err = s.rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// HSet sets a hash field.
func (s *Store) HSet(ctx context.Context, key, field, value string) error {
	return s.rdb.HSet(ctx, key, field, value).Err()
}

// HDel removes a hash field.
func (s *Store) HDel(ctx context.Context, key, field string) error {
	return s.rdb.HDel(ctx, key, field).Err()
}

// RPush appends value to the list at key.
func (s *Store) RPush(ctx context.Context, key, value string) error {
	return s.rdb.RPush(ctx, key, value).Err()
}

// Del removes key.
func (s *Store) Del(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// HealthCheck pings the server.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
