package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"idp/internal/oauth/models"
	dErrors "idp/pkg/domain-errors"
	"idp/pkg/platform/sentinel"
)

// GetAccessToken resolves a bearer token to the grant behind it. Expired
// tokens and tokens whose flow never reached a grant are invalid_token.
func (s *Service) GetAccessToken(ctx context.Context, accessToken string) (*models.AccessTokenInfo, error) {
	ctx, span := s.tracer.Start(ctx, "oauth.GetAccessToken")
	defer span.End()

	if accessToken == "" {
		s.metrics.IncAccessTokenLookup(false)
		return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid token")
	}

	info, err := s.store.FindAccessToken(ctx, accessToken, s.now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncAccessTokenLookup(false)
			return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid token")
		}
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up access token")
	}
	s.metrics.IncAccessTokenLookup(true)
	return info, nil
}

// Userinfo serves /openid/userinfo. A bad token is a 401 protocol response.
func (s *Service) Userinfo(ctx context.Context, accessToken string) (*models.ProtocolResponse, error) {
	start := time.Now()
	defer s.metrics.ObserveUserinfo(start)

	info, err := s.GetAccessToken(ctx, accessToken)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeInvalidToken) {
			return models.NewProtocolError(models.ErrInvalidToken, "invalid access token"), nil
		}
		return nil, err
	}

	claims := s.claims.Assemble(ctx, info.UserID, info.Scopes)
	return &models.ProtocolResponse{
		Status: http.StatusOK,
		Body: models.UserinfoResponse{
			Claims: claims,
			Issuer: s.cfg.Issuer,
		},
	}, nil
}
