package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"idp/internal/oauth/models"
	dErrors "idp/pkg/domain-errors"
	"idp/pkg/platform/audit"
	"idp/pkg/platform/sentinel"
)

// protocolAbort carries an OAuth error out of a transaction. Returning it
// from RunInTx rolls back; TokenEndpoint unwraps it into the response.
type protocolAbort struct {
	resp *models.ProtocolResponse
}

func (e *protocolAbort) Error() string {
	if body, ok := e.resp.Body.(models.ProtocolError); ok {
		return body.Error + ": " + body.ErrorDescription
	}
	return "oauth protocol error"
}

func abort(code, description string) error {
	return &protocolAbort{resp: models.NewProtocolError(code, description)}
}

// TokenEndpoint serves /openid/token. OAuth failures come back as a
// ProtocolResponse with a nil error; only internal failures are errors.
func (s *Service) TokenEndpoint(ctx context.Context, req models.TokenRequest) (*models.ProtocolResponse, error) {
	start := time.Now()
	grantType := metricGrantType(req.Form["grant_type"])
	defer s.metrics.ObserveToken(grantType, start)

	ctx, span := s.tracer.Start(ctx, "oauth.TokenEndpoint")
	defer span.End()
	span.SetAttributes(attribute.String("oauth.grant_type", grantType))

	resp, err := s.tokenEndpoint(ctx, req)
	var pa *protocolAbort
	if errors.As(err, &pa) {
		resp, err = pa.resp, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token endpoint failed")
		s.metrics.IncToken(grantType, "error")
		return nil, err
	}

	outcome := "issued"
	if body, ok := resp.Body.(models.ProtocolError); ok {
		outcome = body.Error
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.Status))
	s.metrics.IncToken(grantType, outcome)
	return resp, nil
}

func (s *Service) tokenEndpoint(ctx context.Context, req models.TokenRequest) (*models.ProtocolResponse, error) {
	clientID, clientSecret := clientCredentials(req)
	if clientID == nil || clientSecret == nil {
		return models.NewProtocolError(models.ErrInvalidClient, "missing client credentials"), nil
	}

	grantType, ok := req.Form["grant_type"]
	if !ok {
		return models.NewProtocolError(models.ErrInvalidRequest, "missing parameter `grant_type`"), nil
	}
	if grantType == "" {
		return models.NewProtocolError(models.ErrUnsupportedGrantType, "failed to parse grant_type"), nil
	}

	client, resp, err := s.authenticateClient(ctx, *clientID, *clientSecret)
	if resp != nil || err != nil {
		return resp, err
	}

	grant, resp := decodeGrant(grantType, req.Form)
	if resp != nil {
		return resp, nil
	}

	switch g := grant.(type) {
	case models.AuthorizationCodeGrant:
		return s.exchangeCode(ctx, client, g)
	case models.RefreshTokenGrant:
		return s.exchangeRefreshToken(ctx, client, g)
	default:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("unhandled grant %T", grant))
	}
}

// clientCredentials prefers form parameters over the Basic header, field by
// field.
func clientCredentials(req models.TokenRequest) (id, secret *string) {
	if req.Basic != nil {
		id, secret = &req.Basic.Username, &req.Basic.Password
	}
	if v, ok := req.Form["client_id"]; ok {
		id = &v
	}
	if v, ok := req.Form["client_secret"]; ok {
		secret = &v
	}
	return id, secret
}

func (s *Service) authenticateClient(ctx context.Context, clientID, clientSecret string) (*models.Client, *models.ProtocolResponse, error) {
	client, err := s.store.FindClientByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.clientAuthFailed(ctx, clientID, "client not found")
			return nil, models.NewProtocolError(models.ErrInvalidClient, "client not found"), nil
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load client")
	}
	if subtle.ConstantTimeCompare([]byte(client.ClientSecret), []byte(clientSecret)) != 1 {
		s.clientAuthFailed(ctx, clientID, "wrong client secret")
		return nil, models.NewProtocolError(models.ErrInvalidClient, "wrong client secret"), nil
	}
	return client, nil, nil
}

func (s *Service) clientAuthFailed(ctx context.Context, clientID, reason string) {
	s.logger.InfoContext(ctx, "client authentication failed", "client_id", clientID, "reason", reason)
	if err := s.recordEvent(ctx, audit.Event{
		Action:   string(audit.EventClientAuthFailed),
		ClientID: clientID,
		Reason:   reason,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to record audit event", "error", err)
	}
}

// decodeGrant turns the form into a typed grant, checking the parameters
// each grant requires.
func decodeGrant(grantType string, form map[string]string) (models.TokenGrant, *models.ProtocolResponse) {
	switch grantType {
	case models.GrantTypeAuthorizationCode:
		code, ok := form["code"]
		if !ok {
			return nil, models.NewProtocolError(models.ErrInvalidRequest, "missing parameter `code`")
		}
		return models.AuthorizationCodeGrant{
			Code:         code,
			CodeVerifier: optional(form, "code_verifier"),
			RedirectURI:  optional(form, "redirect_uri"),
		}, nil
	case models.GrantTypeRefreshToken:
		token, ok := form["refresh_token"]
		if !ok {
			return nil, models.NewProtocolError(models.ErrInvalidRequest, "missing parameter `refresh_token`")
		}
		return models.RefreshTokenGrant{
			RefreshToken: token,
			Scope:        optional(form, "scope"),
		}, nil
	default:
		return nil, models.NewProtocolError(models.ErrUnsupportedGrantType, fmt.Sprintf("unsupported grant type `%s`", grantType))
	}
}

// metricGrantType bounds label cardinality to the grants we know.
func metricGrantType(grantType string) string {
	switch grantType {
	case models.GrantTypeAuthorizationCode, models.GrantTypeRefreshToken:
		return grantType
	default:
		return "other"
	}
}
