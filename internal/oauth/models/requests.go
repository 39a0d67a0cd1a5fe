package models

// AuthorizationInfoRequest is a raw /authorize query plus the caller's
// identity as established by the gateway.
type AuthorizationInfoRequest struct {
	Query  map[string]string
	UserID *int64
}

// AuthorizationInfo is the consent page model. FlowID is present only for
// authenticated callers. RedirectTo is set when the caller should navigate
// immediately: on silent reauthorization, or on prompt=none failures.
type AuthorizationInfo struct {
	RPInfo     RPInfo   `json:"rp_info"`
	Scopes     []string `json:"scopes"`
	FlowID     *string  `json:"flow_id,omitempty"`
	RedirectTo *string  `json:"redirect_to,omitempty"`
}

// BasicCredentials are the decoded parts of an Authorization: Basic header.
type BasicCredentials struct {
	Username string
	Password string
}

// TokenRequest is a raw token endpoint request.
type TokenRequest struct {
	Form  map[string]string
	Basic *BasicCredentials
}

// TokenGrant is one of the supported grant types, decoded once from the form.
type TokenGrant interface {
	grantType() string
}

const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// AuthorizationCodeGrant redeems a code issued by the authorization flow.
type AuthorizationCodeGrant struct {
	Code         string
	CodeVerifier *string
	RedirectURI  *string
}

func (AuthorizationCodeGrant) grantType() string { return GrantTypeAuthorizationCode }

// RefreshTokenGrant exchanges a refresh token, optionally narrowing scope.
type RefreshTokenGrant struct {
	RefreshToken string
	Scope        *string
}

func (RefreshTokenGrant) grantType() string { return GrantTypeRefreshToken }

// GrantTypeOf names the grant for logs and metrics.
func GrantTypeOf(g TokenGrant) string {
	if g == nil {
		return "unknown"
	}
	return g.grantType()
}
