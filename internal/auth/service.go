package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/opencolegio/opencolegio/internal/shared"
)

// LoginRecorder enqueues a login audit entry for background processing.
type LoginRecorder interface {
	EnqueueLoginRecorded(ctx context.Context, userID int64, ip, userAgent string) error
}

// Service wraps authentication business rules: credential verification and
// bearer token issuance, verification and revocation.
type Service struct {
	repo     Repository
	cache    *TokenCache
	recorder LoginRecorder
	logger   *slog.Logger
	tokenTTL time.Duration
	now      func() time.Time
}

// NewService constructs a Service. recorder may be nil; login auditing is then
// skipped.
func NewService(repo Repository, cache *TokenCache, recorder LoginRecorder, logger *slog.Logger, tokenTTL time.Duration) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		recorder: recorder,
		logger:   logger,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// Login validates RUT/password credentials and issues a bearer token. Every
// failure mode collapses into ErrInvalidCredentials; the response never
// discloses whether the RUT exists.
func (s *Service) Login(ctx context.Context, rut, password, ip, userAgent string) (*User, string, error) {
	rut = shared.NormalizeRUT(rut)
	user, err := s.repo.FindByRUT(ctx, rut)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, "", shared.ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !user.IsActive {
		return nil, "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", shared.ErrInvalidCredentials
	}

	plain, err := s.issueToken(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	if s.recorder != nil {
		if err := s.recorder.EnqueueLoginRecorded(ctx, user.ID, ip, userAgent); err != nil {
			s.logger.Warn("enqueue login audit", slog.Int64("user_id", user.ID), slog.Any("error", err))
		}
	}
	return user, plain, nil
}

// Logout revokes every token belonging to the user, in store and cache.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	ids, err := s.repo.DeleteUserTokens(ctx, userID)
	if err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Forget(ctx, ids...); err != nil {
			s.logger.Warn("purge token cache", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
	return nil
}

// VerifyToken resolves a presented bearer token to a user ID. Lookups prefer
// the cache and fall back to the store, repopulating the cache on a hit.
// Expiry is enforced on both paths; the cache never extends a token's life.
func (s *Service) VerifyToken(ctx context.Context, plain string) (int64, error) {
	id, secret, ok := splitToken(plain)
	if !ok || id == "" || secret == "" {
		return 0, shared.ErrInvalidToken
	}
	presented := hashSecret(secret)

	if s.cache != nil {
		userID, hash, expiresAt, hit, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("token cache get", slog.Any("error", err))
		} else if hit {
			if s.now().After(expiresAt) {
				if err := s.cache.Forget(ctx, id); err != nil {
					s.logger.Warn("purge expired cache entry", slog.Any("error", err))
				}
				return 0, shared.ErrInvalidToken
			}
			if !hashEqual(presented, hash) {
				return 0, shared.ErrInvalidToken
			}
			return userID, nil
		}
	}

	token, err := s.repo.FindToken(ctx, id)
	if err != nil {
		return 0, err
	}
	if s.now().After(token.ExpiresAt) {
		return 0, shared.ErrInvalidToken
	}
	if !hashEqual(presented, token.TokenHash) {
		return 0, shared.ErrInvalidToken
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, token.ID, token.UserID, token.TokenHash, token.ExpiresAt); err != nil {
			s.logger.Warn("token cache put", slog.Any("error", err))
		}
	}
	if err := s.repo.TouchToken(ctx, token.ID, s.now()); err != nil {
		s.logger.Warn("touch token", slog.Any("error", err))
	}
	return token.UserID, nil
}

// CurrentUser fetches the acting user's record.
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*User, error) {
	return s.repo.FindByID(ctx, userID)
}

// TokenTTL exposes the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}

func (s *Service) issueToken(ctx context.Context, userID int64) (string, error) {
	id, secret, err := newTokenSecret()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	token := AccessToken{
		ID:        id,
		UserID:    userID,
		TokenHash: hashSecret(secret),
		Name:      "auth_token",
		ExpiresAt: now.Add(s.tokenTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreateToken(ctx, token); err != nil {
		return "", err
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, token.ID, userID, token.TokenHash, token.ExpiresAt); err != nil {
			s.logger.Warn("token cache put", slog.Any("error", err))
		}
	}
	return id + "|" + secret, nil
}

func hashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
