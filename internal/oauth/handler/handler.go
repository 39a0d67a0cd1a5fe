package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-jose/go-jose/v4"

	"idp/internal/oauth/models"
	"idp/internal/platform/metrics"
	"idp/internal/platform/middleware"
	dErrors "idp/pkg/domain-errors"
	"idp/pkg/platform/httputil"
	"idp/pkg/requestcontext"
)

// Service is the authorization server surface exposed over HTTP.
type Service interface {
	OpenIDConfiguration() models.OpenIDConfiguration
	JWKS() jose.JSONWebKeySet
	GetAuthorizationInfo(ctx context.Context, req models.AuthorizationInfoRequest) (*models.AuthorizationInfo, error)
	AcceptAuthorization(ctx context.Context, encFlowID string, userID int64) (string, error)
	TokenEndpoint(ctx context.Context, req models.TokenRequest) (*models.ProtocolResponse, error)
	GetAccessToken(ctx context.Context, accessToken string) (*models.AccessTokenInfo, error)
	Userinfo(ctx context.Context, accessToken string) (*models.ProtocolResponse, error)
}

// Handler serves the OpenID provider routes.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

// New creates a Handler. A zero timeout defaults to 30s.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{
		service: service,
		logger:  logger,
		metrics: metrics,
		timeout: timeout,
	}
}

// Register mounts the provider routes on r.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(h.timeout))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.LatencyMiddleware(h.metrics))
	router.Use(middleware.TrustedUser(h.logger))

	router.Get("/.well-known/openid-configuration", h.handleOpenIDConfiguration)
	router.Get("/openid/jwks", h.handleJWKS)
	router.Get("/openid/authorize/info", h.handleAuthorizationInfo)
	router.With(middleware.RequireUser(h.logger)).Post("/openid/authorize/accept", h.handleAccept)
	router.Post("/openid/token", h.handleToken)
	router.Post("/internal/access-token", h.handleAccessToken)
	router.Get("/openid/userinfo", h.handleUserinfo)
	router.Post("/openid/userinfo", h.handleUserinfo)

	r.Mount("/", router)
}

func (h *Handler) handleOpenIDConfiguration(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	httputil.WriteJSON(w, http.StatusOK, h.service.OpenIDConfiguration())
}

func (h *Handler) handleJWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	httputil.WriteJSON(w, http.StatusOK, h.service.JWKS())
}

func (h *Handler) handleAuthorizationInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := models.AuthorizationInfoRequest{Query: firstValues(r.URL.Query())}
	if userID, ok := requestcontext.UserID(ctx); ok {
		req.UserID = &userID
	}

	info, err := h.service.GetAuthorizationInfo(ctx, req)
	if err != nil {
		h.logError(ctx, "authorization info failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, info)
}

type acceptRequest struct {
	FlowID string `json:"flow_id"`
}

type acceptResponse struct {
	RedirectTo string `json:"redirect_to"`
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := requestcontext.UserID(ctx)

	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	if req.FlowID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeMissingParameter, "flow_id is required"))
		return
	}

	redirectTo, err := h.service.AcceptAuthorization(ctx, req.FlowID, userID)
	if err != nil {
		h.logError(ctx, "accept authorization failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acceptResponse{RedirectTo: redirectTo})
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		h.writeProtocol(w, models.NewProtocolError(models.ErrInvalidRequest, "malformed form body"))
		return
	}

	req := models.TokenRequest{Form: firstValues(r.PostForm)}
	if username, password, ok := r.BasicAuth(); ok {
		basic, err := decodeBasic(username, password)
		if err != nil {
			h.writeProtocol(w, models.NewProtocolError(models.ErrInvalidClient, "malformed basic credentials"))
			return
		}
		req.Basic = basic
	}

	resp, err := h.service.TokenEndpoint(ctx, req)
	if err != nil {
		h.logError(ctx, "token endpoint failed", err)
		httputil.WriteError(w, err)
		return
	}
	h.writeProtocol(w, resp)
}

type accessTokenRequest struct {
	AccessToken string `json:"access_token"`
}

func (h *Handler) handleAccessToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req accessTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	info, err := h.service.GetAccessToken(ctx, req.AccessToken)
	if err != nil {
		h.logError(ctx, "access token lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) handleUserinfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, _ := middleware.BearerToken(r)

	resp, err := h.service.Userinfo(ctx, token)
	if err != nil {
		h.logError(ctx, "userinfo failed", err)
		httputil.WriteError(w, err)
		return
	}
	if resp.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	h.writeProtocol(w, resp)
}

func (h *Handler) writeProtocol(w http.ResponseWriter, resp *models.ProtocolResponse) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	httputil.WriteJSON(w, resp.Status, resp.Body)
}

// logError logs internal failures only; caller mistakes are already in the
// access log.
func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err,
	)
}

// decodeBasic undoes the form-encoding RFC 6749 §2.3.1 applies to client
// credentials before they are base64'd.
func decodeBasic(username, password string) (*models.BasicCredentials, error) {
	user, err := url.QueryUnescape(username)
	if err != nil {
		return nil, err
	}
	pass, err := url.QueryUnescape(password)
	if err != nil {
		return nil, err
	}
	return &models.BasicCredentials{Username: user, Password: pass}, nil
}

func firstValues(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			out[key] = vals[0]
		}
	}
	return out
}
