package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	jwttoken "idp/internal/jwt_token"
	"idp/internal/oauth/models"
	dErrors "idp/pkg/domain-errors"
	"idp/pkg/idcodec"
	"idp/pkg/platform/audit"
)

const tokenTypeBearer = "Bearer"

type mintParams struct {
	client *models.Client
	flow   *models.Flow
	// scopes released in this response; may be narrower than flow.Scopes.
	scopes []string
	// refreshToken is the presented token on refresh, reused as is.
	refreshToken *string
	// code is set on code exchange and feeds c_hash.
	code *string
	now  time.Time
}

// mintTokens writes fresh token material to the locked flow and builds the
// token response, ID token included.
func (s *Service) mintTokens(ctx context.Context, store TxStore, p mintParams) (*models.ProtocolResponse, error) {
	encFlowID := s.codec.Encrypt(idcodec.OAuthFlow, p.flow.ID)

	accessToken := models.NewAccessToken(encFlowID)
	refreshToken := p.refreshToken
	if refreshToken == nil && models.HasScope(p.scopes, models.ScopeOfflineAccess) {
		minted := models.NewRefreshToken(encFlowID)
		refreshToken = &minted
	}
	expiresAt := p.now.Add(models.AccessTokenLifetime)

	if err := store.StoreTokens(ctx, models.TokenUpdate{
		FlowID:               p.flow.ID,
		AccessToken:          accessToken,
		RefreshToken:         refreshToken,
		AccessTokenExpiresAt: expiresAt,
	}, p.now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store tokens")
	}

	claims := s.claims.Assemble(ctx, p.flow.UserID, p.scopes)
	idToken, err := s.signer.SignIDToken(jwttoken.IDTokenInput{
		ClientID:    p.client.ClientID,
		Claims:      claims,
		Nonce:       p.flow.Nonce,
		AccessToken: accessToken,
		Code:        p.code,
		IssuedAt:    p.now,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return nil, err
	}

	action := audit.EventTokenIssued
	if p.refreshToken != nil {
		action = audit.EventTokenRefreshed
	}
	if err := s.recordEvent(ctx, audit.Event{
		Action:   string(action),
		UserID:   p.flow.UserID,
		ClientID: p.client.ClientID,
		FlowID:   p.flow.ID,
		Scopes:   p.scopes,
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record token event")
	}

	body := models.TokenResponse{
		AccessToken: accessToken,
		TokenType:   tokenTypeBearer,
		IDToken:     idToken,
		Scope:       strings.Join(p.scopes, " "),
		ExpiresIn:   int64(models.AccessTokenLifetime.Seconds()),
	}
	if refreshToken != nil {
		body.RefreshToken = *refreshToken
	}
	return &models.ProtocolResponse{Status: http.StatusOK, Body: body}, nil
}
