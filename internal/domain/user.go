package domain

import "time"

// Roles carried in the JWT and trusted by the order workflow.
const (
	RoleUser     = "USER"
	RoleProvider = "PROVIDER"
	RoleAdmin    = "ADMIN"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor is the authenticated principal attached to a request by the
// auth middleware.
type Actor struct {
	ID   string
	Role string
}
