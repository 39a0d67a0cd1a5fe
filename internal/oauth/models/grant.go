package models

import "time"

// Grant is a user's standing consent for a client. One per (client, user);
// its scopes only ever grow.
type Grant struct {
	ID        int64
	ClientID  int64
	UserID    int64
	Scopes    []string
	CreatedAt time.Time
}
