package users

import "time"

// User is the administrative view of an account; credentials never leave the
// auth module.
type User struct {
	ID        int64     `json:"id"`
	RUT       string    `json:"rut"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
