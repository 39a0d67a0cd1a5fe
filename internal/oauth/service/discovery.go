package service

import (
	"github.com/go-jose/go-jose/v4"

	"idp/internal/oauth/models"
)

var claimsSupported = []string{
	"sub", "aud", "email", "email_verified", "exp", "iat", "iss",
	"name", "preferred_username", "profile", "picture",
}

// OpenIDConfiguration returns the provider metadata. Endpoints live under
// the frontend root, which proxies them here.
func (s *Service) OpenIDConfiguration() models.OpenIDConfiguration {
	root := s.cfg.FrontendRoot
	return models.OpenIDConfiguration{
		Issuer:                            s.cfg.Issuer,
		AuthorizationEndpoint:             root + "/openid/authorize",
		TokenEndpoint:                     root + "/openid/token",
		UserinfoEndpoint:                  root + "/openid/userinfo",
		JWKSURI:                           root + "/openid/jwks",
		ResponseTypesSupported:            []string{responseTypeCode},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{string(jose.RS256)},
		ScopesSupported:                   append([]string(nil), models.SupportedScopes...),
		ClaimsSupported:                   append([]string(nil), claimsSupported...),
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post"},
		GrantTypesSupported:               []string{models.GrantTypeAuthorizationCode, models.GrantTypeRefreshToken},
		CodeChallengeMethodsSupported:     []string{codeChallengeMethod},
	}
}

// JWKS returns the public signing keys.
func (s *Service) JWKS() jose.JSONWebKeySet {
	return s.signer.JWKS()
}
