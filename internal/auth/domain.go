package auth

import "time"

// User represents an account that can authenticate against the API.
type User struct {
	ID           int64     `json:"id"`
	RUT          string    `json:"rut"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AccessToken is a server-side record of an issued bearer token. Only the
// SHA-256 of the token secret is stored; the plaintext exists solely in the
// login response.
type AccessToken struct {
	ID         string
	UserID     int64
	TokenHash  string
	Name       string
	LastUsedAt *time.Time
	ExpiresAt  time.Time
	CreatedAt  time.Time
}
