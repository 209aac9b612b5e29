package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenCache keeps hot bearer-token lookups out of Postgres. The cached value
// carries the owning user ID, the token expiry and the secret hash, so a hit
// still requires the presented secret to match and is still bounded by the
// token's own lifetime, not the cache TTL.
type TokenCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenCache constructs a TokenCache.
func NewTokenCache(client *redis.Client, ttl time.Duration) *TokenCache {
	return &TokenCache{client: client, ttl: ttl}
}

// Put stores the token's user, expiry and secret hash under its ID. The cache
// entry never outlives the token: the TTL is capped at the time remaining
// until expiresAt, and an already-expired token is not cached at all.
func (tc *TokenCache) Put(ctx context.Context, tokenID string, userID int64, hash string, expiresAt time.Time) error {
	ttl := tc.ttl
	remaining := time.Until(expiresAt)
	if remaining <= 0 {
		return nil
	}
	if remaining < ttl {
		ttl = remaining
	}
	value := strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(expiresAt.UnixMilli(), 10) + ":" + hash
	return tc.client.Set(ctx, tc.key(tokenID), value, ttl).Err()
}

// Get returns the cached user ID, secret hash and expiry for a token ID. The
// boolean return is false on a cache miss or an undecodable entry.
func (tc *TokenCache) Get(ctx context.Context, tokenID string) (int64, string, time.Time, bool, error) {
	value, err := tc.client.Get(ctx, tc.key(tokenID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, "", time.Time{}, false, nil
		}
		return 0, "", time.Time{}, false, err
	}
	parts := strings.SplitN(value, ":", 3)
	if len(parts) != 3 {
		return 0, "", time.Time{}, false, nil
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", time.Time{}, false, nil
	}
	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", time.Time{}, false, nil
	}
	return userID, parts[2], time.UnixMilli(expiry), true, nil
}

// Forget drops cache entries for the given token IDs.
func (tc *TokenCache) Forget(ctx context.Context, tokenIDs ...string) error {
	if len(tokenIDs) == 0 {
		return nil
	}
	keys := make([]string, len(tokenIDs))
	for i, id := range tokenIDs {
		keys[i] = tc.key(id)
	}
	return tc.client.Del(ctx, keys...).Err()
}

func (tc *TokenCache) key(tokenID string) string {
	return "token:" + tokenID
}

// newTokenSecret generates a token ID and secret. The plaintext handed to the
// client is "<id>|<secret>"; the store keeps only hashSecret(secret).
func newTokenSecret() (id, secret string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("auth: token secret: %w", err)
	}
	return uuid.NewString(), base64.RawURLEncoding.EncodeToString(raw), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// splitToken separates a presented bearer token into ID and secret.
func splitToken(plain string) (id, secret string, ok bool) {
	return strings.Cut(plain, "|")
}
