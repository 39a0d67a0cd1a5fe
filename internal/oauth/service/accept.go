package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"idp/internal/oauth/models"
	dErrors "idp/pkg/domain-errors"
	"idp/pkg/idcodec"
	"idp/pkg/platform/audit"
	"idp/pkg/platform/sentinel"
)

// AcceptAuthorization records the user's explicit consent for a pending flow
// and returns the redirect carrying the new authorization code.
func (s *Service) AcceptAuthorization(ctx context.Context, encFlowID string, userID int64) (string, error) {
	ctx, span := s.tracer.Start(ctx, "oauth.AcceptAuthorization")
	defer span.End()

	flowID, err := s.codec.Decrypt(idcodec.OAuthFlow, encFlowID)
	if err != nil {
		return "", dErrors.New(dErrors.CodeFlowNotFound, "flow not found")
	}
	span.SetAttributes(attribute.Int64("oauth.flow_id", flowID))

	var redirect string
	err = s.tx.RunInTx(ctx, func(ctx context.Context, store TxStore) error {
		now := s.now(ctx)

		flow, err := store.LockPendingFlow(ctx, flowID, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeFlowNotFound, "flow not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load flow")
		}
		if flow.ApprovalExpired(now) {
			return dErrors.New(dErrors.CodeFlowNotFound, "flow not found")
		}

		grantID, err := store.UpsertGrant(ctx, flow.ClientID, flow.UserID, flow.Scopes, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save grant")
		}

		code := models.NewCode()
		if err := store.IssueCode(ctx, flow.ID, grantID, code, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue code")
		}

		redirect, err = s.codeRedirect(flow.RedirectURI, code, flow.State)
		if err != nil {
			return err
		}

		// Consent is compliance relevant: no outbox row, no code.
		if err := s.recordEvent(ctx, audit.Event{
			Action: string(audit.EventConsentGranted),
			UserID: flow.UserID,
			FlowID: flow.ID,
			Scopes: flow.Scopes,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record consent")
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "accept failed")
		return "", err
	}

	s.metrics.IncConsentAccepted()
	return redirect, nil
}
