package service_test

import (
	"context"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"idp/internal/oauth/models"
	dErrors "idp/pkg/domain-errors"
	"idp/pkg/idcodec"
	"idp/pkg/platform/audit"
)

func (s *ServiceSuite) TestAuthorizeValidation() {
	challenge := oauth2.S256ChallengeFromVerifier(oauth2.GenerateVerifier())
	user := userID

	cases := []struct {
		name  string
		query map[string]string
		want  dErrors.Code
	}{
		{"missing scope", map[string]string{"client_id": "c1", "response_type": "code"}, dErrors.CodeMissingParameter},
		{"missing response_type", map[string]string{"client_id": "c1", "scope": "openid"}, dErrors.CodeMissingParameter},
		{"missing client_id", map[string]string{"response_type": "code", "scope": "openid"}, dErrors.CodeMissingParameter},
		{"response_type token", s.authorizeQuery("c1", "openid", "response_type", "token"), dErrors.CodeInvalidParameter},
		{"state too long", s.authorizeQuery("c1", "openid", "state", strings.Repeat("s", 257)), dErrors.CodeInvalidParameter},
		{"nonce too long", s.authorizeQuery("c1", "openid", "nonce", strings.Repeat("n", 257)), dErrors.CodeInvalidParameter},
		{"unsupported scope", s.authorizeQuery("c1", "openid address"), dErrors.CodeInvalidParameter},
		{"empty scope", s.authorizeQuery("c1", " "), dErrors.CodeInvalidParameter},
		{"unknown client", s.authorizeQuery("nope", "openid"), dErrors.CodeClientNotFound},
		{"unregistered redirect", s.authorizeQuery("c1", "openid", "redirect_uri", "https://evil/cb"), dErrors.CodeInvalidRedirectURI},
		{"redirect omitted with several registered", s.authorizeQuery("c2", "openid", "code_challenge", challenge, "code_challenge_method", "S256"), dErrors.CodeMissingParameter},
		{"scope not allowed for client", s.authorizeQuery("c1", "openid profile"), dErrors.CodeInvalidScope},
		{"challenge required", s.authorizeQuery("c2", "openid", "redirect_uri", "https://two/cb"), dErrors.CodeMissingParameter},
		{"plain challenge method", s.authorizeQuery("c2", "openid", "redirect_uri", "https://two/cb", "code_challenge", challenge, "code_challenge_method", "plain"), dErrors.CodeInvalidParameter},
		{"challenge method omitted", s.authorizeQuery("c2", "openid", "redirect_uri", "https://two/cb", "code_challenge", challenge), dErrors.CodeInvalidParameter},
		{"short challenge", s.authorizeQuery("c2", "openid", "redirect_uri", "https://two/cb", "code_challenge", challenge[:42], "code_challenge_method", "S256"), dErrors.CodeInvalidParameter},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.svc.GetAuthorizationInfo(s.ctx, models.AuthorizationInfoRequest{Query: tc.query, UserID: &user})
			s.Require().Error(err)
			s.Equal(tc.want, dErrors.CodeOf(err), err.Error())
		})
	}
}

func (s *ServiceSuite) TestAuthorizeStateAtLimitAccepted() {
	user := userID
	info := s.authorize(s.authorizeQuery("c1", "openid", "state", strings.Repeat("s", 256)), &user)
	s.NotNil(info.FlowID)
}

func (s *ServiceSuite) TestAuthorizeUnauthenticated() {
	s.Run("returns client info without a flow", func() {
		info := s.authorize(s.authorizeQuery("c2", "openid profile", "redirect_uri", "https://two/cb",
			"code_challenge", oauth2.S256ChallengeFromVerifier(oauth2.GenerateVerifier()), "code_challenge_method", "S256"), nil)
		s.Nil(info.FlowID)
		s.Nil(info.RedirectTo)
		s.Equal("c2", info.RPInfo.ClientID)
		s.Equal("App Two", info.RPInfo.DisplayName)
		s.True(info.RPInfo.Official)
		s.Equal([]string{"openid", "profile"}, info.Scopes)
	})

	s.Run("prompt none redirects with interaction_required", func() {
		info := s.authorize(s.authorizeQuery("c1", "openid", "prompt", "none", "state", "xyz"), nil)
		s.Nil(info.FlowID)
		s.Require().NotNil(info.RedirectTo)
		s.Equal("https://app/cb?error=interaction_required&iss=https%3A%2F%2Fidp.example&state=xyz", *info.RedirectTo)
	})
}

func (s *ServiceSuite) TestAuthorizeCreatesPendingFlow() {
	user := userID
	info := s.authorize(s.authorizeQuery("c1", "openid email", "state", "st", "nonce", "nn"), &user)
	s.Require().NotNil(info.FlowID)
	s.Nil(info.RedirectTo)

	flowID, err := s.codec.Decrypt(idcodec.OAuthFlow, *info.FlowID)
	s.Require().NoError(err)
	flow, ok := s.store.Flow(flowID)
	s.Require().True(ok)
	s.Nil(flow.Code)
	s.Nil(flow.GrantID)
	s.Equal("https://app/cb", flow.RedirectURI)
	s.Equal([]string{"openid", "email"}, flow.Scopes)
	s.Equal("st", *flow.State)
	s.Equal("nn", *flow.Nonce)
}

func (s *ServiceSuite) TestAuthorizePromptNoneWithoutGrant() {
	user := userID
	info := s.authorize(s.authorizeQuery("c1", "openid", "prompt", "none"), &user)
	s.NotNil(info.FlowID)
	s.Require().NotNil(info.RedirectTo)
	s.Equal("interaction_required", redirectParam(s.T(), *info.RedirectTo, "error"))
	s.Empty(redirectParam(s.T(), *info.RedirectTo, "state"))
}

func (s *ServiceSuite) TestAcceptAuthorization() {
	s.Run("redirect carries code, issuer and state", func() {
		user := userID
		info := s.authorize(s.authorizeQuery("c1", "openid", "state", "a b&c"), &user)
		redirect, err := s.svc.AcceptAuthorization(s.ctx, *info.FlowID, userID)
		s.Require().NoError(err)

		s.True(strings.HasPrefix(redirect, "https://app/cb?code=BF%2FC%2F"))
		s.Equal(issuer, redirectParam(s.T(), redirect, "iss"))
		s.Equal("a b&c", redirectParam(s.T(), redirect, "state"))
	})

	s.Run("registered query is kept", func() {
		verifier := oauth2.GenerateVerifier()
		user := userID
		info := s.authorize(s.authorizeQuery("c2", "openid", "redirect_uri", "https://two/alt?tenant=x",
			"code_challenge", oauth2.S256ChallengeFromVerifier(verifier), "code_challenge_method", "S256"), &user)
		redirect, err := s.svc.AcceptAuthorization(s.ctx, *info.FlowID, userID)
		s.Require().NoError(err)
		s.True(strings.HasPrefix(redirect, "https://two/alt?tenant=x&code="))
		s.Empty(redirectParam(s.T(), redirect, "state"))
	})

	s.Run("records consent", func() {
		events, err := s.audit.ListByUser(context.Background(), userID)
		s.Require().NoError(err)
		s.Require().NotEmpty(events)
		s.Equal(string(audit.EventConsentGranted), events[0].Action)
		s.Equal(audit.CategoryCompliance, events[0].Category)
	})
}

func (s *ServiceSuite) TestAcceptAuthorizationRejects() {
	pending := func(user int64) string {
		info := s.authorize(s.authorizeQuery("c1", "openid"), &user)
		return *info.FlowID
	}

	s.Run("undecodable flow id", func() {
		_, err := s.svc.AcceptAuthorization(s.ctx, "not-a-flow", userID)
		s.Equal(dErrors.CodeFlowNotFound, dErrors.CodeOf(err))
	})

	s.Run("flow id of another type", func() {
		_, err := s.svc.AcceptAuthorization(s.ctx, s.codec.Encrypt(idcodec.User, 1), userID)
		s.Equal(dErrors.CodeFlowNotFound, dErrors.CodeOf(err))
	})

	s.Run("other user", func() {
		_, err := s.svc.AcceptAuthorization(s.ctx, pending(userID), otherUserID)
		s.Equal(dErrors.CodeFlowNotFound, dErrors.CodeOf(err))
	})

	s.Run("flow older than 30 minutes", func() {
		flowID := pending(userID)
		s.advance(31 * time.Minute)
		_, err := s.svc.AcceptAuthorization(s.ctx, flowID, userID)
		s.Equal(dErrors.CodeFlowNotFound, dErrors.CodeOf(err))

		_, err = s.store.FindGrant(s.ctx, s.client.ID, userID)
		s.Error(err, "expired flow must not create a grant")
	})

	s.Run("already accepted", func() {
		flowID := pending(otherUserID)
		_, err := s.svc.AcceptAuthorization(s.ctx, flowID, otherUserID)
		s.Require().NoError(err)
		_, err = s.svc.AcceptAuthorization(s.ctx, flowID, otherUserID)
		s.Equal(dErrors.CodeFlowNotFound, dErrors.CodeOf(err))
	})
}

func (s *ServiceSuite) TestScopeMonotonicityAndSilentReauthorization() {
	user := userID

	s.obtainCode(s.authorizeQuery("c1", "openid"), userID)
	s.obtainCode(s.authorizeQuery("c1", "openid email"), userID)

	grant, err := s.store.FindGrant(s.ctx, s.client.ID, userID)
	s.Require().NoError(err)
	s.Equal([]string{"openid", "email"}, grant.Scopes)

	info := s.authorize(s.authorizeQuery("c1", "openid", "state", "again"), &user)
	s.Require().NotNil(info.RedirectTo, "covered scopes must not prompt")
	code := redirectParam(s.T(), *info.RedirectTo, "code")
	s.True(strings.HasPrefix(code, "BF/C/"))
	s.Equal("again", redirectParam(s.T(), *info.RedirectTo, "state"))

	flowID, err := s.codec.Decrypt(idcodec.OAuthFlow, *info.FlowID)
	s.Require().NoError(err)
	flow, ok := s.store.Flow(flowID)
	s.Require().True(ok)
	s.Equal(grant.ID, *flow.GrantID)
	s.Equal([]string{"openid"}, flow.Scopes)

	tokens := s.requireTokens(s.exchange(s.client, code))
	s.Equal("openid", tokens.Scope)

	events, err := s.audit.ListByUser(s.ctx, userID)
	s.Require().NoError(err)
	var silent int
	for _, e := range events {
		if e.Action == string(audit.EventSilentReauthorization) {
			silent++
		}
	}
	s.Equal(1, silent)
}

func (s *ServiceSuite) TestSilentReauthorizationNeedsSuperset() {
	user := userID
	s.obtainCode(s.authorizeQuery("c1", "openid"), userID)

	info := s.authorize(s.authorizeQuery("c1", "openid email"), &user)
	s.Nil(info.RedirectTo)
	s.NotNil(info.FlowID)
}
