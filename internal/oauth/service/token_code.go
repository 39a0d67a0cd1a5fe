package service

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"idp/internal/oauth/models"
	dErrors "idp/pkg/domain-errors"
	"idp/pkg/platform/sentinel"
)

const (
	minVerifierLength = 43
	maxVerifierLength = 128
)

// exchangeCode redeems an authorization code. The flow row stays locked
// from lookup to token write, so a code is redeemed at most once.
func (s *Service) exchangeCode(ctx context.Context, client *models.Client, g models.AuthorizationCodeGrant) (*models.ProtocolResponse, error) {
	var resp *models.ProtocolResponse
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store TxStore) error {
		now := s.now(ctx)

		flow, err := store.LockFlowByCode(ctx, g.Code, client.ID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return abort(models.ErrInvalidGrant, "invalid code")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load flow")
		}
		if flow.CodeExpired(now) {
			return abort(models.ErrInvalidGrant, "code expired")
		}

		if err := checkCodeVerifier(flow, g.CodeVerifier); err != nil {
			return err
		}

		if g.RedirectURI == nil && len(client.RedirectURIs) > 1 {
			return abort(models.ErrInvalidRequest, "redirect_uri is required")
		}
		if g.RedirectURI != nil && !client.HasRedirectURI(*g.RedirectURI) {
			return abort(models.ErrInvalidRequest, "redirect_uri does not match")
		}

		resp, err = s.mintTokens(ctx, store, mintParams{
			client: client,
			flow:   flow,
			scopes: flow.Scopes,
			code:   &g.Code,
			now:    now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func checkCodeVerifier(flow *models.Flow, verifier *string) error {
	switch {
	case flow.CodeChallenge != nil && verifier == nil:
		return abort(models.ErrInvalidRequest, "code_verifier is required")
	case flow.CodeChallenge == nil && verifier != nil:
		return abort(models.ErrInvalidRequest, "code_verifier is not required")
	case verifier == nil:
		return nil
	}
	if n := len(*verifier); n < minVerifierLength || n > maxVerifierLength {
		return abort(models.ErrInvalidRequest, "code_verifier length must be between 43 and 128 characters")
	}
	if oauth2.S256ChallengeFromVerifier(*verifier) != *flow.CodeChallenge {
		return abort(models.ErrInvalidGrant, "code_verifier does not match")
	}
	return nil
}
