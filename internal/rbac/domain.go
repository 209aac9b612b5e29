package rbac

import "time"

// DefaultGuard is the guard name stamped on roles and permissions created
// through the API. Uniqueness of names is scoped per guard.
const DefaultGuard = "api"

// Role represents a named permission grouping assignable to users.
type Role struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	GuardName string    `json:"guard_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Permission represents an atomic capability checked against a user.
type Permission struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	GuardName string    `json:"guard_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
