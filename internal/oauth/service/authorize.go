package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"idp/internal/oauth/models"
	dErrors "idp/pkg/domain-errors"
	"idp/pkg/idcodec"
	"idp/pkg/platform/audit"
	"idp/pkg/platform/sentinel"
	scopes "idp/pkg/platform/strings"
)

const (
	maxStateLength       = 256
	maxNonceLength       = 256
	codeChallengeLength  = 43
	codeChallengeMethod  = "S256"
	responseTypeCode     = "code"
	promptNone           = "none"
	errInteractionNeeded = "interaction_required"
)

// authorizeParams is a validated /authorize query.
type authorizeParams struct {
	clientID            string
	scopes              []string
	redirectURI         *string
	state               *string
	nonce               *string
	prompt              *string
	codeChallenge       *string
	codeChallengeMethod *string
}

// GetAuthorizationInfo validates an authorization request and decides what
// the consent page does next. Validation failures are domain errors; the
// caller renders them instead of redirecting, since the redirect target is
// not trusted yet.
func (s *Service) GetAuthorizationInfo(ctx context.Context, req models.AuthorizationInfoRequest) (*models.AuthorizationInfo, error) {
	start := time.Now()
	defer s.metrics.ObserveAuthorize(start)

	ctx, span := s.tracer.Start(ctx, "oauth.GetAuthorizationInfo")
	defer span.End()

	info, outcome, err := s.authorize(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authorization rejected")
		s.metrics.IncAuthorization(string(dErrors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.String("oauth.outcome", outcome))
	s.metrics.IncAuthorization(outcome)
	return info, nil
}

func (s *Service) authorize(ctx context.Context, req models.AuthorizationInfoRequest) (*models.AuthorizationInfo, string, error) {
	params, err := parseAuthorizeQuery(req.Query)
	if err != nil {
		return nil, "", err
	}

	client, err := s.store.FindClientByClientID(ctx, params.clientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, "", dErrors.New(dErrors.CodeClientNotFound, "client not found")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load client")
	}

	redirectURI, err := resolveRedirectURI(client, params.redirectURI)
	if err != nil {
		return nil, "", err
	}

	for _, scope := range params.scopes {
		if !models.HasScope(client.AllowedScopes, scope) {
			return nil, "", dErrors.New(dErrors.CodeInvalidScope, fmt.Sprintf("scope %q is not allowed for this client", scope))
		}
	}

	if err := validateCodeChallenge(client, params); err != nil {
		return nil, "", err
	}

	info := &models.AuthorizationInfo{
		RPInfo: client.Info(),
		Scopes: params.scopes,
	}

	var interactionRedirect *string
	if params.prompt != nil && *params.prompt == promptNone {
		target, err := s.errorRedirect(redirectURI, errInteractionNeeded, params.state)
		if err != nil {
			return nil, "", err
		}
		interactionRedirect = &target
	}

	if req.UserID == nil {
		info.RedirectTo = interactionRedirect
		return info, "unauthenticated", nil
	}
	userID := *req.UserID

	grant, err := s.store.FindGrant(ctx, client.ID, userID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grant")
	}

	flow := models.NewFlow{
		ClientID:            client.ID,
		UserID:              userID,
		RedirectURI:         redirectURI,
		Scopes:              params.scopes,
		State:               params.state,
		Nonce:               params.nonce,
		CodeChallenge:       params.codeChallenge,
		CodeChallengeMethod: params.codeChallengeMethod,
	}

	if grant != nil && scopes.ContainsAll(grant.Scopes, params.scopes) {
		code := models.NewCode()
		flow.GrantID = &grant.ID
		flow.Code = &code

		flowID, err := s.store.CreateFlow(ctx, flow, s.now(ctx))
		if err != nil {
			return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create flow")
		}
		target, err := s.codeRedirect(redirectURI, code, params.state)
		if err != nil {
			return nil, "", err
		}
		if err := s.recordEvent(ctx, audit.Event{
			Action:   string(audit.EventSilentReauthorization),
			UserID:   userID,
			ClientID: client.ClientID,
			FlowID:   flowID,
			Scopes:   params.scopes,
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to record audit event", "error", err, "flow_id", flowID)
		}

		encFlowID := s.codec.Encrypt(idcodec.OAuthFlow, flowID)
		info.FlowID = &encFlowID
		info.RedirectTo = &target
		return info, "silent", nil
	}

	flowID, err := s.store.CreateFlow(ctx, flow, s.now(ctx))
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create flow")
	}
	encFlowID := s.codec.Encrypt(idcodec.OAuthFlow, flowID)
	info.FlowID = &encFlowID
	info.RedirectTo = interactionRedirect
	if interactionRedirect != nil {
		return info, "interaction_required", nil
	}
	return info, "consent_required", nil
}

func parseAuthorizeQuery(query map[string]string) (*authorizeParams, error) {
	for _, name := range []string{"scope", "response_type", "client_id"} {
		if _, ok := query[name]; !ok {
			return nil, dErrors.New(dErrors.CodeMissingParameter, fmt.Sprintf("missing required parameter %q", name))
		}
	}

	params := &authorizeParams{
		clientID:            query["client_id"],
		redirectURI:         optional(query, "redirect_uri"),
		state:               optional(query, "state"),
		nonce:               optional(query, "nonce"),
		prompt:              optional(query, "prompt"),
		codeChallenge:       optional(query, "code_challenge"),
		codeChallengeMethod: optional(query, "code_challenge_method"),
	}

	if query["response_type"] != responseTypeCode {
		return nil, dErrors.New(dErrors.CodeInvalidParameter, "response_type must be `code`")
	}
	if params.state != nil && len(*params.state) > maxStateLength {
		return nil, dErrors.New(dErrors.CodeInvalidParameter, "state is too long")
	}
	if params.nonce != nil && len(*params.nonce) > maxNonceLength {
		return nil, dErrors.New(dErrors.CodeInvalidParameter, "nonce is too long")
	}

	params.scopes = scopes.Fields(query["scope"])
	if len(params.scopes) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidParameter, "scope must not be empty")
	}
	for _, scope := range params.scopes {
		if !models.IsSupportedScope(scope) {
			return nil, dErrors.New(dErrors.CodeInvalidParameter, fmt.Sprintf("unsupported scope %q", scope))
		}
	}
	return params, nil
}

// resolveRedirectURI picks the redirect target. An omitted redirect_uri is
// only allowed when exactly one is registered.
func resolveRedirectURI(client *models.Client, requested *string) (string, error) {
	if requested != nil {
		u, err := url.Parse(*requested)
		if err != nil || !u.IsAbs() {
			return "", dErrors.New(dErrors.CodeInvalidRedirectURI, "redirect_uri is not a valid url")
		}
		if !client.HasRedirectURI(*requested) {
			return "", dErrors.New(dErrors.CodeInvalidRedirectURI, "redirect_uri is not registered")
		}
		return *requested, nil
	}
	if len(client.RedirectURIs) != 1 {
		return "", dErrors.New(dErrors.CodeMissingParameter, "redirect_uri is required")
	}
	return client.RedirectURIs[0], nil
}

func validateCodeChallenge(client *models.Client, params *authorizeParams) error {
	if params.codeChallenge == nil {
		if client.EnforceCodeChallenge {
			return dErrors.New(dErrors.CodeMissingParameter, "code_challenge is required for this client")
		}
		return nil
	}
	if params.codeChallengeMethod == nil || *params.codeChallengeMethod != codeChallengeMethod {
		return dErrors.New(dErrors.CodeInvalidParameter, "code_challenge_method must be S256")
	}
	if len(*params.codeChallenge) != codeChallengeLength {
		return dErrors.New(dErrors.CodeInvalidParameter, "code_challenge must be 43 characters")
	}
	return nil
}

func optional(query map[string]string, name string) *string {
	v, ok := query[name]
	if !ok {
		return nil
	}
	return &v
}
