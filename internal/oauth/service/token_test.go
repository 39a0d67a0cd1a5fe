package service_test

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"

	jwttoken "idp/internal/jwt_token"
	"idp/internal/oauth/models"
	dErrors "idp/pkg/domain-errors"
	"idp/pkg/idcodec"
)

func (s *ServiceSuite) TestEndToEnd() {
	code := s.obtainCode(s.authorizeQuery("c1", "openid email", "state", "st-1", "nonce", "n-1"), userID)
	s.True(strings.HasPrefix(code, "BF/C/"))

	tokens := s.requireTokens(s.exchange(s.client, code))
	s.Equal("Bearer", tokens.TokenType)
	s.Equal(int64(3600), tokens.ExpiresIn)
	s.Equal("openid email", tokens.Scope)
	s.True(strings.HasPrefix(tokens.AccessToken, "BF/A/"))
	s.Empty(tokens.RefreshToken, "no offline_access, no refresh token")

	claims, err := s.signer.ParseIDToken(tokens.IDToken)
	s.Require().NoError(err)
	sub, err := s.codec.Decrypt(idcodec.User, claims.Subject)
	s.Require().NoError(err)
	s.Equal(userID, sub)
	s.Require().NotNil(claims.Email)
	s.Equal("u1@example.com", *claims.Email)
	s.True(*claims.EmailVerified)
	s.Equal(issuer, claims.Issuer)
	s.Equal([]string{"c1"}, []string(claims.Audience))
	s.Equal("c1", claims.AuthorizedParty)
	s.Equal("n-1", *claims.Nonce)
	s.Equal(jwttoken.HalfHash(tokens.AccessToken), claims.AccessTokenHash)
	s.Equal(jwttoken.HalfHash(code), claims.CodeHash)
	s.Equal(s.now.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	s.Nil(claims.Name, "profile scope not granted")
}

func (s *ServiceSuite) TestTokenEndpointErrors() {
	code := s.obtainCode(s.authorizeQuery("c1", "openid"), userID)

	cases := []struct {
		name   string
		form   map[string]string
		basic  *models.BasicCredentials
		status int
		error  string
	}{
		{
			name:   "no client credentials",
			form:   map[string]string{"grant_type": "authorization_code", "code": code},
			status: http.StatusUnauthorized, error: models.ErrInvalidClient,
		},
		{
			name:   "client id without secret",
			form:   map[string]string{"grant_type": "authorization_code", "code": code, "client_id": "c1"},
			status: http.StatusUnauthorized, error: models.ErrInvalidClient,
		},
		{
			name:   "missing grant_type",
			form:   map[string]string{"client_id": "c1", "client_secret": "c1-secret", "code": code},
			status: http.StatusBadRequest, error: models.ErrInvalidRequest,
		},
		{
			name:   "unknown client",
			form:   map[string]string{"grant_type": "authorization_code", "client_id": "nope", "client_secret": "x", "code": code},
			status: http.StatusUnauthorized, error: models.ErrInvalidClient,
		},
		{
			name:   "wrong secret",
			form:   map[string]string{"grant_type": "authorization_code", "client_id": "c1", "client_secret": "wrong", "code": code},
			status: http.StatusUnauthorized, error: models.ErrInvalidClient,
		},
		{
			name:   "wrong secret in basic auth",
			form:   map[string]string{"grant_type": "authorization_code", "code": code},
			basic:  &models.BasicCredentials{Username: "c1", Password: "wrong"},
			status: http.StatusUnauthorized, error: models.ErrInvalidClient,
		},
		{
			name:   "unsupported grant type",
			form:   map[string]string{"grant_type": "password", "client_id": "c1", "client_secret": "c1-secret"},
			status: http.StatusBadRequest, error: models.ErrUnsupportedGrantType,
		},
		{
			name:   "missing code",
			form:   map[string]string{"grant_type": "authorization_code", "client_id": "c1", "client_secret": "c1-secret"},
			status: http.StatusBadRequest, error: models.ErrInvalidRequest,
		},
		{
			name:   "unknown code",
			form:   map[string]string{"grant_type": "authorization_code", "client_id": "c1", "client_secret": "c1-secret", "code": "BF/C/unknown"},
			status: http.StatusBadRequest, error: models.ErrInvalidGrant,
		},
		{
			name:   "code of another client",
			form:   map[string]string{"grant_type": "authorization_code", "client_id": "c2", "client_secret": "c2-secret", "code": code},
			status: http.StatusBadRequest, error: models.ErrInvalidGrant,
		},
		{
			name:   "unregistered redirect_uri",
			form:   map[string]string{"grant_type": "authorization_code", "client_id": "c1", "client_secret": "c1-secret", "code": code, "redirect_uri": "https://evil/cb"},
			status: http.StatusBadRequest, error: models.ErrInvalidRequest,
		},
		{
			name:   "missing refresh_token",
			form:   map[string]string{"grant_type": "refresh_token", "client_id": "c1", "client_secret": "c1-secret"},
			status: http.StatusBadRequest, error: models.ErrInvalidRequest,
		},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			resp, err := s.svc.TokenEndpoint(s.ctx, models.TokenRequest{Form: tc.form, Basic: tc.basic})
			s.Require().NoError(err)
			s.requireProtocolError(resp, tc.status, tc.error)
		})
	}

	s.Run("failed attempts leave the code redeemable", func() {
		resp, err := s.svc.TokenEndpoint(s.ctx, models.TokenRequest{
			Form:  map[string]string{"grant_type": "authorization_code", "code": code},
			Basic: &models.BasicCredentials{Username: "c1", Password: "c1-secret"},
		})
		s.Require().NoError(err)
		s.requireTokens(resp)
	})
}

func (s *ServiceSuite) TestCodeSingleUse() {
	s.Run("sequential", func() {
		code := s.obtainCode(s.authorizeQuery("c1", "openid"), userID)
		s.requireTokens(s.exchange(s.client, code))
		s.requireProtocolError(s.exchange(s.client, code), http.StatusBadRequest, models.ErrInvalidGrant)
	})

	s.Run("concurrent", func() {
		code := s.obtainCode(s.authorizeQuery("c1", "openid"), otherUserID)

		const attempts = 10
		var wg sync.WaitGroup
		var issued, rejected atomic.Int32
		for range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := s.svc.TokenEndpoint(s.ctx, models.TokenRequest{Form: map[string]string{
					"grant_type":    "authorization_code",
					"client_id":     "c1",
					"client_secret": "c1-secret",
					"code":          code,
				}})
				if err != nil {
					return
				}
				if resp.Status == http.StatusOK {
					issued.Add(1)
				} else {
					rejected.Add(1)
				}
			}()
		}
		wg.Wait()

		s.Equal(int32(1), issued.Load())
		s.Equal(int32(attempts-1), rejected.Load())
	})
}

func (s *ServiceSuite) TestCodeExpiry() {
	code := s.obtainCode(s.authorizeQuery("c1", "openid"), userID)
	s.advance(11 * time.Minute)

	resp := s.exchange(s.client, code)
	s.requireProtocolError(resp, http.StatusBadRequest, models.ErrInvalidGrant)
	s.Equal("code expired", resp.Body.(models.ProtocolError).ErrorDescription)
}

func (s *ServiceSuite) TestPKCE() {
	verifier := oauth2.GenerateVerifier()
	code := s.obtainCode(s.authorizeQuery("c2", "openid", "redirect_uri", "https://two/cb",
		"code_challenge", oauth2.S256ChallengeFromVerifier(verifier), "code_challenge_method", "S256"), userID)

	s.Run("verifier missing", func() {
		resp := s.exchange(s.strict, code, "redirect_uri", "https://two/cb")
		s.requireProtocolError(resp, http.StatusBadRequest, models.ErrInvalidRequest)
	})

	s.Run("verifier too short", func() {
		resp := s.exchange(s.strict, code, "redirect_uri", "https://two/cb", "code_verifier", strings.Repeat("a", 42))
		s.requireProtocolError(resp, http.StatusBadRequest, models.ErrInvalidRequest)
	})

	s.Run("verifier too long", func() {
		resp := s.exchange(s.strict, code, "redirect_uri", "https://two/cb", "code_verifier", strings.Repeat("a", 129))
		s.requireProtocolError(resp, http.StatusBadRequest, models.ErrInvalidRequest)
	})

	s.Run("verifier mismatch", func() {
		resp := s.exchange(s.strict, code, "redirect_uri", "https://two/cb", "code_verifier", strings.Repeat("a", 43))
		s.requireProtocolError(resp, http.StatusBadRequest, models.ErrInvalidGrant)
	})

	s.Run("redirect_uri required with several registered", func() {
		resp := s.exchange(s.strict, code, "code_verifier", verifier)
		s.requireProtocolError(resp, http.StatusBadRequest, models.ErrInvalidRequest)
	})

	s.Run("matching verifier", func() {
		s.requireTokens(s.exchange(s.strict, code, "redirect_uri", "https://two/cb", "code_verifier", verifier))
	})

	s.Run("verifier without challenge", func() {
		plain := s.obtainCode(s.authorizeQuery("c1", "openid"), otherUserID)
		resp := s.exchange(s.client, plain, "code_verifier", verifier)
		s.requireProtocolError(resp, http.StatusBadRequest, models.ErrInvalidRequest)
	})
}

func (s *ServiceSuite) TestRefreshToken() {
	code := s.obtainCode(s.authorizeQuery("c1", "openid email offline_access"), userID)
	first := s.requireTokens(s.exchange(s.client, code))
	s.Require().NotEmpty(first.RefreshToken)
	s.True(strings.HasPrefix(first.RefreshToken, "BF/R/"))

	refresh := func(client *models.Client, token string, extra ...string) *models.ProtocolResponse {
		form := map[string]string{
			"grant_type":    "refresh_token",
			"client_id":     client.ClientID,
			"client_secret": client.ClientSecret,
			"refresh_token": token,
		}
		for i := 0; i+1 < len(extra); i += 2 {
			form[extra[i]] = extra[i+1]
		}
		return s.token(form)
	}

	s.Run("full scope reuses refresh token", func() {
		s.advance(time.Minute)
		next := s.requireTokens(refresh(s.client, first.RefreshToken))
		s.Equal(first.RefreshToken, next.RefreshToken)
		s.NotEqual(first.AccessToken, next.AccessToken)
		s.Equal("openid email offline_access", next.Scope)

		claims, err := s.signer.ParseIDToken(next.IDToken)
		s.Require().NoError(err)
		s.Empty(claims.CodeHash)

		_, err = s.svc.GetAccessToken(s.ctx, first.AccessToken)
		s.Equal(dErrors.CodeInvalidToken, dErrors.CodeOf(err), "replaced access token is dead")
	})

	s.Run("narrowed scope applies to the response only", func() {
		next := s.requireTokens(refresh(s.client, first.RefreshToken, "scope", "openid"))
		s.Equal("openid", next.Scope)
		s.Equal(first.RefreshToken, next.RefreshToken)

		claims, err := s.signer.ParseIDToken(next.IDToken)
		s.Require().NoError(err)
		s.Nil(claims.Email)

		grant, err := s.store.FindGrant(s.ctx, s.client.ID, userID)
		s.Require().NoError(err)
		s.Equal([]string{"openid", "email", "offline_access"}, grant.Scopes)

		info, err := s.svc.GetAccessToken(s.ctx, next.AccessToken)
		s.Require().NoError(err)
		s.Equal([]string{"openid", "email", "offline_access"}, info.Scopes)
	})

	s.Run("wider scope", func() {
		resp := refresh(s.client, first.RefreshToken, "scope", "openid profile")
		s.requireProtocolError(resp, http.StatusBadRequest, models.ErrInvalidScope)
	})

	s.Run("empty scope", func() {
		resp := refresh(s.client, first.RefreshToken, "scope", "")
		s.requireProtocolError(resp, http.StatusBadRequest, models.ErrInvalidScope)
	})

	s.Run("malformed token", func() {
		s.requireProtocolError(refresh(s.client, "garbage"), http.StatusBadRequest, models.ErrInvalidGrant)
		s.requireProtocolError(refresh(s.client, "BF/R/not-an-id/x"), http.StatusBadRequest, models.ErrInvalidGrant)
	})

	s.Run("forged random part", func() {
		parts := strings.Split(first.RefreshToken, "/")
		forged := strings.Join(append(parts[:3], "forged"), "/")
		s.requireProtocolError(refresh(s.client, forged), http.StatusBadRequest, models.ErrInvalidGrant)
	})

	s.Run("other client", func() {
		s.requireProtocolError(refresh(s.strict, first.RefreshToken), http.StatusBadRequest, models.ErrInvalidGrant)
	})
}

func (s *ServiceSuite) TestAccessTokenAndUserinfo() {
	code := s.obtainCode(s.authorizeQuery("c1", "openid email"), userID)
	tokens := s.requireTokens(s.exchange(s.client, code))

	s.Run("resolves the grant", func() {
		info, err := s.svc.GetAccessToken(s.ctx, tokens.AccessToken)
		s.Require().NoError(err)
		s.Equal(userID, info.UserID)
		s.Equal(s.client.ID, info.ClientID)
		s.Equal([]string{"openid", "email"}, info.Scopes)
	})

	s.Run("userinfo returns claims and issuer", func() {
		resp, err := s.svc.Userinfo(s.ctx, tokens.AccessToken)
		s.Require().NoError(err)
		s.Require().Equal(http.StatusOK, resp.Status)
		body := resp.Body.(models.UserinfoResponse)
		s.Equal(issuer, body.Issuer)
		s.Equal("u1@example.com", *body.Email)
		s.Equal(s.codec.Encrypt(idcodec.User, userID), body.Subject)
	})

	s.Run("unknown token", func() {
		_, err := s.svc.GetAccessToken(s.ctx, "BF/A/x/y")
		s.Equal(dErrors.CodeInvalidToken, dErrors.CodeOf(err))

		resp, err := s.svc.Userinfo(s.ctx, "")
		s.Require().NoError(err)
		s.requireProtocolError(resp, http.StatusUnauthorized, models.ErrInvalidToken)
	})

	s.Run("expired after one hour", func() {
		s.advance(time.Hour)
		_, err := s.svc.GetAccessToken(s.ctx, tokens.AccessToken)
		s.Equal(dErrors.CodeInvalidToken, dErrors.CodeOf(err))
	})
}

func (s *ServiceSuite) TestDiscovery() {
	cfg := s.svc.OpenIDConfiguration()
	s.Equal(issuer, cfg.Issuer)
	s.Equal(frontendRoot+"/openid/authorize", cfg.AuthorizationEndpoint)
	s.Equal(frontendRoot+"/openid/token", cfg.TokenEndpoint)
	s.Equal(frontendRoot+"/openid/userinfo", cfg.UserinfoEndpoint)
	s.Equal(frontendRoot+"/openid/jwks", cfg.JWKSURI)
	s.Equal([]string{"code"}, cfg.ResponseTypesSupported)
	s.Equal([]string{"RS256"}, cfg.IDTokenSigningAlgValuesSupported)
	s.Equal([]string{"S256"}, cfg.CodeChallengeMethodsSupported)
	s.ElementsMatch([]string{"client_secret_basic", "client_secret_post"}, cfg.TokenEndpointAuthMethodsSupported)
	s.Contains(cfg.ClaimsSupported, "preferred_username")

	jwks := s.svc.JWKS()
	s.Require().Len(jwks.Keys, 1)
	s.Equal("test-kid", jwks.Keys[0].KeyID)
	s.Equal("sig", jwks.Keys[0].Use)
}
