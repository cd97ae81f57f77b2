// Package session issues, validates, and revokes opaque bearer tokens for
// ledgercore's transport layer. It is the named "session/authentication
// bookkeeping" collaborator of spec §6 — the ledger core has no notion of a
// caller identity; every request authenticated here simply carries an
// account id once it reaches the transport handlers.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrInvalidToken is returned by Validate for an unknown, expired, or
// revoked token.
var ErrInvalidToken = errors.New("session: invalid or expired token")

// Store issues bearer tokens scoped to an owning account id, backed by
// Redis. Tokens are opaque uuid.v4 strings; Redis's own TTL does the expiry
// bookkeeping rather than an expires_at column, mirroring how the teacher's
// CachedStore leans on Redis TTLs (store/redis.go) instead of a separate
// sweeper.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a Store. ttl is how long an issued token remains valid.
func New(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Issue mints a new bearer token for accountID and returns it.
func (s *Store) Issue(ctx context.Context, accountID string) (string, error) {
	token := uuid.NewString()
	if err := s.rdb.Set(ctx, tokenKey(token), accountID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("session: issue: %w", err)
	}
	return token, nil
}

// Validate resolves a bearer token to the account id it was issued for, and
// slides its TTL forward (sessions that keep getting used should not expire
// mid-use).
func (s *Store) Validate(ctx context.Context, token string) (string, error) {
	accountID, err := s.rdb.Get(ctx, tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("session: validate: %w", err)
	}
	s.rdb.Expire(ctx, tokenKey(token), s.ttl)
	return accountID, nil
}

// Revoke invalidates a token immediately, e.g. on explicit logout.
func (s *Store) Revoke(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, tokenKey(token)).Err(); err != nil {
		return fmt.Errorf("session: revoke: %w", err)
	}
	return nil
}

func tokenKey(token string) string { return fmt.Sprintf("session:%s", token) }
