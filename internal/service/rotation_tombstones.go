package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RotationTombstones remembers recently rotated-out token hashes for a short
// grace window, so an ordinary client retry that loses the rotation race can
// be told apart from a genuine replay. A nil store (or zero grace) means
// strict mode: every unknown well-signed token is treated as reuse.
type RotationTombstones interface {
	MarkRotated(ctx context.Context, hash string) error
	Seen(ctx context.Context, hash string) (bool, error)
}

type RedisRotationTombstones struct {
	client redis.UniversalClient
	prefix string
	grace  time.Duration
}

func NewRedisRotationTombstones(client redis.UniversalClient, prefix string, grace time.Duration) *RedisRotationTombstones {
	if prefix == "" {
		prefix = "rotation_tombstone"
	}
	return &RedisRotationTombstones{client: client, prefix: prefix, grace: grace}
}

func (s *RedisRotationTombstones) MarkRotated(ctx context.Context, hash string) error {
	if s.client == nil || s.grace <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.key(hash), "1", s.grace).Err()
}

func (s *RedisRotationTombstones) Seen(ctx context.Context, hash string) (bool, error) {
	if s.client == nil || s.grace <= 0 {
		return false, nil
	}
	_, err := s.client.Get(ctx, s.key(hash)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisRotationTombstones) key(hash string) string {
	return fmt.Sprintf("%s:%s", s.prefix, hash)
}
