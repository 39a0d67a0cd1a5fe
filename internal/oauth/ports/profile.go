package ports

import "context"

// Profile is a user's public profile.
type Profile struct {
	UserID      int64   `json:"user_id"`
	Username    string  `json:"username"`
	DisplayName *string `json:"display_name"`
	Avatar      *int64  `json:"avatar"`
}

// Name is the display name, falling back to the username.
func (p *Profile) Name() string {
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}
	return p.Username
}

// ProfilePort looks up profiles by user id.
type ProfilePort interface {
	GetProfileByID(ctx context.Context, userID int64) (*Profile, error)
}
