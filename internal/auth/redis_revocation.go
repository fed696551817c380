package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

const revokedPrefix = "revoked:"

// RedisRevocationStore keeps the denylist in Redis so it survives restarts
// and is shared by every instance.
type RedisRevocationStore struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisRevocationStore wraps rdb. A nil now uses the wall clock.
func NewRedisRevocationStore(rdb *redis.Client, now func() time.Time) *RedisRevocationStore {
	if now == nil {
		now = time.Now
	}
	return &RedisRevocationStore{rdb: rdb, now: now}
}

// Revoke stores the token's hash with a TTL equal to its remaining lifetime.
func (s *RedisRevocationStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, revokedPrefix+tokenKey(token), 1, ttl).Err(); err != nil {
		return oops.Code("REVOCATION_WRITE_FAILED").In("redis").Wrap(err)
	}
	return nil
}

// IsRevoked reports whether the token's hash is present.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	err := s.rdb.Get(ctx, revokedPrefix+tokenKey(token)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("REVOCATION_READ_FAILED").In("redis").Wrap(err)
	}
	return true, nil
}
