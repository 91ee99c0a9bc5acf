package utils

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist remembers logged-out JWTs until they would have expired.
type TokenBlacklist struct {
	store *TTLStore
}

func NewTokenBlacklist(rc *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{store: NewTTLStore(rc, "jwt:blacklist:")}
}

// Revoke blacklists token until expiresAt.
func (b *TokenBlacklist) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return b.store.Save(ctx, token, []byte("1"), ttl)
}

// Revoked reports whether token was logged out. Redis errors fail open so an
// outage does not lock every user out.
func (b *TokenBlacklist) Revoked(ctx context.Context, token string) bool {
	ok, err := b.store.Exists(ctx, token)
	if err != nil {
		Sugar.Warnw("token blacklist lookup failed", "error", err)
		return false
	}
	return ok
}
