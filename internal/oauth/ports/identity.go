package ports

import "context"

// User is the slice of the identity store the claims need.
type User struct {
	ID     int64   `json:"id"`
	Email  *string `json:"email"`
	Active bool    `json:"active"`
}

// IdentityPort looks up users in the identity store. Adapters return
// sentinel.ErrNotFound for unknown users.
type IdentityPort interface {
	GetUserByID(ctx context.Context, userID int64) (*User, error)
}
