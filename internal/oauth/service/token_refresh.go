package service

import (
	"context"
	"errors"

	"idp/internal/oauth/models"
	dErrors "idp/pkg/domain-errors"
	"idp/pkg/idcodec"
	"idp/pkg/platform/sentinel"
	scopes "idp/pkg/platform/strings"
)

// exchangeRefreshToken issues a new access token for a flow. A narrower
// scope applies to this response only; the flow keeps its scopes.
func (s *Service) exchangeRefreshToken(ctx context.Context, client *models.Client, g models.RefreshTokenGrant) (*models.ProtocolResponse, error) {
	encFlowID, ok := models.RefreshTokenFlowID(g.RefreshToken)
	if !ok {
		return models.NewProtocolError(models.ErrInvalidGrant, "invalid refresh token"), nil
	}
	flowID, err := s.codec.Decrypt(idcodec.OAuthFlow, encFlowID)
	if err != nil {
		return models.NewProtocolError(models.ErrInvalidGrant, "invalid refresh token"), nil
	}

	var resp *models.ProtocolResponse
	err = s.tx.RunInTx(ctx, func(ctx context.Context, store TxStore) error {
		flow, err := store.LockFlowByRefreshToken(ctx, flowID, g.RefreshToken, client.ID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return abort(models.ErrInvalidGrant, "invalid refresh token")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load flow")
		}

		granted := flow.Scopes
		if g.Scope != nil {
			requested := scopes.Fields(*g.Scope)
			if len(requested) == 0 || !scopes.ContainsAll(flow.Scopes, requested) {
				return abort(models.ErrInvalidScope, "invalid scope")
			}
			granted = requested
		}

		resp, err = s.mintTokens(ctx, store, mintParams{
			client:       client,
			flow:         flow,
			scopes:       granted,
			refreshToken: &g.RefreshToken,
			now:          s.now(ctx),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
