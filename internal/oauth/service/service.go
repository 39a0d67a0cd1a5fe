package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	jwttoken "idp/internal/jwt_token"
	"idp/internal/oauth/metrics"
	"idp/internal/oauth/models"
	"idp/pkg/idcodec"
	"idp/pkg/platform/audit"
	"idp/pkg/requestcontext"
)

// Store reads and writes outside a transaction.
type Store interface {
	FindClientByClientID(ctx context.Context, clientID string) (*models.Client, error)
	FindGrant(ctx context.Context, clientID, userID int64) (*models.Grant, error)
	CreateFlow(ctx context.Context, flow models.NewFlow, now time.Time) (int64, error)
	FindAccessToken(ctx context.Context, accessToken string, now time.Time) (*models.AccessTokenInfo, error)
}

// TxStore is the store as seen inside RunInTx. The Lock* methods hold a row
// lock on the flow until the transaction ends and return sentinel.ErrNotFound
// when no row matches.
type TxStore interface {
	LockPendingFlow(ctx context.Context, flowID, userID int64) (*models.Flow, error)
	LockFlowByCode(ctx context.Context, code string, clientID int64) (*models.Flow, error)
	LockFlowByRefreshToken(ctx context.Context, flowID int64, refreshToken string, clientID int64) (*models.Flow, error)
	UpsertGrant(ctx context.Context, clientID, userID int64, scopes []string, now time.Time) (int64, error)
	IssueCode(ctx context.Context, flowID, grantID int64, code string, now time.Time) error
	StoreTokens(ctx context.Context, update models.TokenUpdate, now time.Time) error
}

// StoreTx provides a transactional boundary. fn receives a context bound to
// the transaction so audit writes join it. Any error from fn rolls back and
// is returned unchanged.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store TxStore) error) error
}

// ClaimsAssembler resolves the standard claims for a user.
type ClaimsAssembler interface {
	Assemble(ctx context.Context, userID int64, scopes []string) models.Claims
}

// IDTokenSigner signs ID tokens and publishes the verification keys.
type IDTokenSigner interface {
	SignIDToken(in jwttoken.IDTokenInput) (string, error)
	JWKS() jose.JSONWebKeySet
}

// Config carries the deployment specific URLs.
type Config struct {
	Issuer       string
	FrontendRoot string
}

// Service implements the authorization server operations. It keeps
// transport concerns out of protocol logic.
type Service struct {
	store   Store
	tx      StoreTx
	codec   *idcodec.Codec
	claims  ClaimsAssembler
	signer  IDTokenSigner
	audit   audit.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	cfg     Config
	clock   func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditStore records consent and token events. Without it events are
// dropped.
func WithAuditStore(a audit.Store) Option {
	return func(s *Service) { s.audit = a }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func New(
	store Store,
	tx StoreTx,
	codec *idcodec.Codec,
	claims ClaimsAssembler,
	signer IDTokenSigner,
	cfg Config,
	opts ...Option,
) (*Service, error) {
	switch {
	case store == nil:
		return nil, errors.New("store is required")
	case tx == nil:
		return nil, errors.New("transaction runner is required")
	case codec == nil:
		return nil, errors.New("id codec is required")
	case claims == nil:
		return nil, errors.New("claims assembler is required")
	case signer == nil:
		return nil, errors.New("id token signer is required")
	case cfg.Issuer == "":
		return nil, errors.New("issuer is required")
	}

	s := &Service{
		store:  store,
		tx:     tx,
		codec:  codec,
		claims: claims,
		signer: signer,
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer("idp/internal/oauth/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(prometheus.NewRegistry())
	}
	return s, nil
}

// now prefers an injected clock, then the request-scoped time.
func (s *Service) now(ctx context.Context) time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return requestcontext.Now(ctx)
}

func (s *Service) recordEvent(ctx context.Context, event audit.Event) error {
	if s.audit == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	event.Category = audit.AuditEvent(event.Action).Category()
	return s.audit.Append(ctx, event)
}
