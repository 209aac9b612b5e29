package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/opencolegio/opencolegio/internal/auth"
	"github.com/opencolegio/opencolegio/internal/shared"
	_ "github.com/opencolegio/opencolegio/testing"
)

type stubRepo struct {
	mu     sync.Mutex
	users  map[string]*auth.User
	tokens map[string]auth.AccessToken
}

func newStubRepo(users ...*auth.User) *stubRepo {
	repo := &stubRepo{
		users:  make(map[string]*auth.User),
		tokens: make(map[string]auth.AccessToken),
	}
	for _, u := range users {
		repo.users[u.RUT] = u
	}
	return repo
}

func (s *stubRepo) FindByRUT(ctx context.Context, rut string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[rut]; ok {
		return user, nil
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) CreateToken(ctx context.Context, token auth.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.ID] = token
	return nil
}

func (s *stubRepo) FindToken(ctx context.Context, id string) (auth.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.tokens[id]; ok {
		return token, nil
	}
	return auth.AccessToken{}, shared.ErrInvalidToken
}

func (s *stubRepo) TouchToken(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.tokens[id]; ok {
		token.LastUsedAt = &at
		s.tokens[id] = token
	}
	return nil
}

func (s *stubRepo) DeleteUserTokens(ctx context.Context, userID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, token := range s.tokens {
		if token.UserID == userID {
			ids = append(ids, id)
			delete(s.tokens, id)
		}
	}
	return ids, nil
}

var _ auth.Repository = (*stubRepo)(nil)

type recorderStub struct {
	mu      sync.Mutex
	entries []int64
}

func (r *recorderStub) EnqueueLoginRecorded(ctx context.Context, userID int64, ip, userAgent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, userID)
	return nil
}

func testUser(t *testing.T, rut, password string, active bool) *auth.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &auth.User{
		ID:           1,
		RUT:          rut,
		Name:         "Admin User",
		Email:        "admin@example.com",
		PasswordHash: string(hash),
		IsActive:     active,
	}
}

func newService(t *testing.T, repo auth.Repository, recorder auth.LoginRecorder) *auth.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := auth.NewTokenCache(client, time.Hour)
	return auth.NewService(repo, cache, recorder, nil, time.Hour)
}

func TestLoginIssuesToken(t *testing.T) {
	recorder := &recorderStub{}
	repo := newStubRepo(testUser(t, "12345678-9", "password123", true))
	service := newService(t, repo, recorder)
	ctx := context.Background()

	user, token, err := service.Login(ctx, "12.345.678-9", "password123", "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != 1 {
		t.Fatalf("expected user 1, got %d", user.ID)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	userID, err := service.VerifyToken(ctx, token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if userID != 1 {
		t.Fatalf("expected user 1 from token, got %d", userID)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.entries) != 1 || recorder.entries[0] != 1 {
		t.Fatalf("expected one audit entry for user 1, got %v", recorder.entries)
	}
}

func TestLoginFailures(t *testing.T) {
	repo := newStubRepo(
		testUser(t, "12345678-9", "password123", true),
	)
	inactive := testUser(t, "98765432-1", "password456", false)
	inactive.ID = 2
	repo.users[inactive.RUT] = inactive
	service := newService(t, repo, nil)
	ctx := context.Background()

	cases := []struct {
		name     string
		rut      string
		password string
	}{
		{"wrong password", "12345678-9", "nope"},
		{"unknown rut", "11111111-1", "password123"},
		{"inactive user", "98765432-1", "password456"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := service.Login(ctx, tc.rut, tc.password, "", "")
			if err != shared.ErrInvalidCredentials {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	service := newService(t, newStubRepo(), nil)
	ctx := context.Background()

	for _, token := range []string{"", "nonsense", "|", "id|", "|secret"} {
		if _, err := service.VerifyToken(ctx, token); err == nil {
			t.Fatalf("expected error for token %q", token)
		}
	}
}

func TestVerifyTokenRejectsTamperedSecret(t *testing.T) {
	repo := newStubRepo(testUser(t, "12345678-9", "password123", true))
	service := newService(t, repo, nil)
	ctx := context.Background()

	_, token, err := service.Login(ctx, "12345678-9", "password123", "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Same token ID, different secret. The cache holds the entry, so this
	// exercises the hash check on the cache-hit path.
	tampered := token[:len(token)-4] + "XXXX"
	if _, err := service.VerifyToken(ctx, tampered); err == nil {
		t.Fatal("expected tampered token to be rejected")
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	repo := newStubRepo()
	service := newService(t, repo, nil)
	ctx := context.Background()

	expired := auth.AccessToken{
		ID:        "token-id",
		UserID:    1,
		TokenHash: "irrelevant",
		Name:      "auth_token",
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	if err := repo.CreateToken(ctx, expired); err != nil {
		t.Fatalf("create token: %v", err)
	}

	if _, err := service.VerifyToken(ctx, "token-id|whatever"); err != shared.ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyTokenExpiredOnWarmCache(t *testing.T) {
	repo := newStubRepo(testUser(t, "12345678-9", "password123", true))
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := auth.NewTokenCache(client, time.Hour)
	service := auth.NewService(repo, cache, nil, nil, 50*time.Millisecond)
	ctx := context.Background()

	_, token, err := service.Login(ctx, "12345678-9", "password123", "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := service.VerifyToken(ctx, token); err != nil {
		t.Fatalf("verify before expiry: %v", err)
	}

	// The cache still holds the entry, so this exercises the hit path: the
	// token's own expiry must win over the cache entry's lifetime.
	time.Sleep(80 * time.Millisecond)
	if _, err := service.VerifyToken(ctx, token); err != shared.ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestLogoutRevokesAllTokens(t *testing.T) {
	repo := newStubRepo(testUser(t, "12345678-9", "password123", true))
	service := newService(t, repo, nil)
	ctx := context.Background()

	_, first, err := service.Login(ctx, "12345678-9", "password123", "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	_, second, err := service.Login(ctx, "12345678-9", "password123", "", "")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if err := service.Logout(ctx, 1); err != nil {
		t.Fatalf("logout: %v", err)
	}

	for _, token := range []string{first, second} {
		if _, err := service.VerifyToken(ctx, token); err == nil {
			t.Fatal("expected revoked token to be rejected")
		}
	}
}
