package models

import "net/http"

// OAuth error codes written to protocol error bodies.
const (
	ErrInvalidRequest       = "invalid_request"
	ErrInvalidClient        = "invalid_client"
	ErrInvalidGrant         = "invalid_grant"
	ErrInvalidScope         = "invalid_scope"
	ErrUnsupportedGrantType = "unsupported_grant_type"
	ErrInvalidToken         = "invalid_token"
)

// ProtocolResponse is an OAuth outcome the caller forwards verbatim: a
// status and a JSON body. Internal failures are never carried here.
type ProtocolResponse struct {
	Status int
	Body   any
}

// ProtocolError is the body of every OAuth error response.
type ProtocolError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// NewProtocolError builds an error response. invalid_client and
// invalid_token answer 401, everything else 400.
func NewProtocolError(code, description string) *ProtocolResponse {
	status := http.StatusBadRequest
	if code == ErrInvalidClient || code == ErrInvalidToken {
		status = http.StatusUnauthorized
	}
	return &ProtocolResponse{
		Status: status,
		Body:   ProtocolError{Error: code, ErrorDescription: description},
	}
}

// TokenResponse is the successful token endpoint body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Claims are the standard OIDC claims released for a user. Only scope-gated
// fields that were resolved are set.
type Claims struct {
	Subject           string  `json:"sub"`
	Email             *string `json:"email,omitempty"`
	EmailVerified     *bool   `json:"email_verified,omitempty"`
	Name              *string `json:"name,omitempty"`
	PreferredUsername *string `json:"preferred_username,omitempty"`
	Profile           *string `json:"profile,omitempty"`
	Picture           *string `json:"picture,omitempty"`
}

// UserinfoResponse is the userinfo body: the claims plus the issuer.
type UserinfoResponse struct {
	Claims
	Issuer string `json:"iss"`
}
