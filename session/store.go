package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the Redis backend cannot be reached.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrVerdictCorrupt is returned when a stored verdict blob cannot be decoded.
var ErrVerdictCorrupt = errors.New("verdict corrupt")

const minRedisTTL = time.Millisecond

// Store is a Redis-backed [Cache]. One Store serves one dashboard session,
// addressed by its key.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	name   string
}

// NewStore returns a Redis cache for the session identified by name.
func NewStore(client redis.UniversalClient, prefix, name string) *Store {
	if prefix == "" {
		prefix = "gs"
	}
	return &Store{
		redis:  client,
		prefix: prefix,
		name:   name,
	}
}

func (s *Store) key() string {
	return s.prefix + ":verdict:" + s.name
}

// Get loads the verdict. A missing key is reported as (Verdict{}, false, nil).
func (s *Store) Get(ctx context.Context) (Verdict, bool, error) {
	data, err := s.redis.Get(ctx, s.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Verdict{}, false, nil
		}
		return Verdict{}, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	v, err := Decode(data)
	if err != nil {
		// a corrupt blob is dropped so the next check rewrites it
		_ = s.redis.Del(ctx, s.key()).Err()
		return Verdict{}, false, fmt.Errorf("%w: %v", ErrVerdictCorrupt, err)
	}
	return v, true, nil
}

// Set writes v with a Redis expiry equal to its remaining lifetime.
func (s *Store) Set(ctx context.Context, v Verdict) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}

	ttl := v.TTL - time.Since(v.StoredAt)
	if ttl < minRedisTTL {
		ttl = minRedisTTL
	}

	if err := s.redis.Set(ctx, s.key(), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Invalidate deletes the verdict. Deleting a missing key is not an error.
func (s *Store) Invalidate(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping measures the round-trip time to Redis.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
