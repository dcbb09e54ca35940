// Package redisstore keeps the token revocation set in Redis so several
// service instances share it.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedTokenKeyPrefix = "revoked:sha256:"

// RevocationStore is a Redis-backed revocation set. Keys never expire: the
// set is append-only.
type RevocationStore struct {
	client *redis.Client
}

// NewRevocationStore constructs a store on client.
func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client}
}

// IsRevoked reports whether tokenHash is present.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedTokenKeyPrefix+tokenHash).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

// Revoke adds tokenHash with SETNX; it reports whether this call inserted it.
func (s *RevocationStore) Revoke(ctx context.Context, tokenHash string, revokedAt time.Time) (bool, error) {
	ok, err := s.client.SetNX(ctx, revokedTokenKeyPrefix+tokenHash, revokedAt.UTC().Format(time.RFC3339Nano), 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	return ok, nil
}
