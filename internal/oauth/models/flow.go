package models

import "time"

const (
	// FlowApprovalWindow bounds how long a pending flow waits for consent.
	FlowApprovalWindow = 30 * time.Minute
	// CodeLifetime bounds how long an issued authorization code can be redeemed.
	CodeLifetime = 10 * time.Minute
	// AccessTokenLifetime is the validity of every minted access token.
	AccessTokenLifetime = time.Hour
)

// Flow is one authorization attempt from request through token issuance.
//
// Lifecycle: pending (no code) -> code issued (code set, AuthorizedAt nil) ->
// token issued (AuthorizedAt set) -> refreshed (access token replaced).
type Flow struct {
	ID                   int64
	ClientID             int64
	GrantID              *int64
	UserID               int64
	RedirectURI          string
	Scopes               []string
	State                *string
	Nonce                *string
	CodeChallenge        *string
	CodeChallengeMethod  *string
	Code                 *string
	CodeIssuedAt         *time.Time
	AccessToken          *string
	RefreshToken         *string
	CreatedAt            time.Time
	AuthorizedAt         *time.Time
	AccessTokenExpiresAt *time.Time
}

// ApprovalExpired reports whether a pending flow is past its approval window.
func (f *Flow) ApprovalExpired(now time.Time) bool {
	return f.CreatedAt.Add(FlowApprovalWindow).Before(now)
}

// CodeExpired reports whether the flow's code can no longer be redeemed.
func (f *Flow) CodeExpired(now time.Time) bool {
	if f.CodeIssuedAt == nil {
		return true
	}
	return f.CodeIssuedAt.Add(CodeLifetime).Before(now)
}

// NewFlow carries the columns written when a flow is created.
type NewFlow struct {
	ClientID            int64
	GrantID             *int64
	UserID              int64
	RedirectURI         string
	Scopes              []string
	State               *string
	Nonce               *string
	CodeChallenge       *string
	CodeChallengeMethod *string
	Code                *string
}

// TokenUpdate carries the columns written when tokens are minted for a flow.
type TokenUpdate struct {
	FlowID               int64
	AccessToken          string
	RefreshToken         *string
	AccessTokenExpiresAt time.Time
}

// AccessTokenInfo is what a bearer token resolves to.
type AccessTokenInfo struct {
	UserID   int64    `json:"user_id"`
	GrantID  int64    `json:"grant_id"`
	ClientID int64    `json:"client_id"`
	Scopes   []string `json:"scope"`
}
