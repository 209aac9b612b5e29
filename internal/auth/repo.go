package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opencolegio/opencolegio/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByRUT(ctx context.Context, rut string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	CreateToken(ctx context.Context, token AccessToken) error
	FindToken(ctx context.Context, id string) (AccessToken, error)
	TouchToken(ctx context.Context, id string, at time.Time) error
	DeleteUserTokens(ctx context.Context, userID int64) ([]string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

const userColumns = `id, rut, name, email, password_hash, is_active, created_at, updated_at`

// FindByRUT fetches a user by normalized RUT.
func (r *PGRepository) FindByRUT(ctx context.Context, rut string) (*User, error) {
	return r.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE rut = $1`, rut)
}

// FindByID fetches a user by ID.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PGRepository) findUser(ctx context.Context, sql string, arg any) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx, sql, arg).Scan(
		&user.ID, &user.RUT, &user.Name, &user.Email,
		&user.PasswordHash, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateToken persists an issued access token.
func (r *PGRepository) CreateToken(ctx context.Context, token AccessToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO access_tokens (id, user_id, token_hash, name, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.UserID, token.TokenHash, token.Name, token.ExpiresAt, token.CreatedAt,
	)
	return err
}

// FindToken fetches an access token record by ID.
func (r *PGRepository) FindToken(ctx context.Context, id string) (AccessToken, error) {
	var token AccessToken
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, token_hash, name, last_used_at, expires_at, created_at
		 FROM access_tokens WHERE id = $1`,
		id,
	).Scan(&token.ID, &token.UserID, &token.TokenHash, &token.Name,
		&token.LastUsedAt, &token.ExpiresAt, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccessToken{}, shared.ErrInvalidToken
		}
		return AccessToken{}, err
	}
	return token, nil
}

// TouchToken records the last use of a token; best effort, callers may ignore
// the error.
func (r *PGRepository) TouchToken(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE access_tokens SET last_used_at = $2 WHERE id = $1`, id, at)
	return err
}

// DeleteUserTokens removes every token belonging to the user and returns the
// removed IDs so cache entries can be purged as well.
func (r *PGRepository) DeleteUserTokens(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `DELETE FROM access_tokens WHERE user_id = $1 RETURNING id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteExpiredTokens removes tokens past their expiry. Used by the hourly
// prune job.
func (r *PGRepository) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM access_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RecordLogin writes a login audit row. Invoked from the background worker.
func (r *PGRepository) RecordLogin(ctx context.Context, userID int64, ip, userAgent string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO login_audit (user_id, ip, user_agent, logged_in_at) VALUES ($1, $2, $3, $4)`,
		userID, ip, userAgent, at,
	)
	return err
}
