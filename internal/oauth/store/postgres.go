package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"idp/internal/oauth/models"
	"idp/internal/oauth/service"
	"idp/pkg/platform/sentinel"
	txcontext "idp/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// PostgresStore persists clients, grants and flows. It is pure I/O; expiry
// and validation rules live in the service.
type PostgresStore struct {
	pool      *pgxpool.Pool
	txTimeout time.Duration
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, txTimeout: defaultTxTimeout}
}

type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const clientColumns = `id, owner_id, client_id, client_secret, redirect_uris, display_name,
	privacy_url, tos_url, official, allowed_scopes, enforce_code_challenge, created_at`

const flowColumns = `id, client_id, grant_id, user_id, redirect_uri, scopes, state, nonce,
	code_challenge, code_challenge_method, code, code_issued_at, access_token, refresh_token,
	created_at, authorized_at, access_token_expires_at`

func (s *PostgresStore) FindClientByClientID(ctx context.Context, clientID string) (*models.Client, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM oauth_provider.clients WHERE client_id = $1`, clientID)
	client, err := scanClient(row)
	if err != nil {
		return nil, notFound(err, "find client")
	}
	return client, nil
}

func (s *PostgresStore) FindGrant(ctx context.Context, clientID, userID int64) (*models.Grant, error) {
	var g models.Grant
	err := s.pool.QueryRow(ctx, `
		SELECT id, client_id, user_id, scopes, created_at
		FROM oauth_provider.grants
		WHERE client_id = $1 AND user_id = $2
	`, clientID, userID).Scan(&g.ID, &g.ClientID, &g.UserID, &g.Scopes, &g.CreatedAt)
	if err != nil {
		return nil, notFound(err, "find grant")
	}
	return &g, nil
}

// CreateFlow inserts a flow. When a code is supplied its issue time is now.
func (s *PostgresStore) CreateFlow(ctx context.Context, flow models.NewFlow, now time.Time) (int64, error) {
	var codeIssuedAt *time.Time
	if flow.Code != nil {
		codeIssuedAt = &now
	}
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO oauth_provider.flows (
			client_id, grant_id, user_id, redirect_uri, scopes, state, nonce,
			code_challenge, code_challenge_method, code, code_issued_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`,
		flow.ClientID,
		flow.GrantID,
		flow.UserID,
		flow.RedirectURI,
		flow.Scopes,
		flow.State,
		flow.Nonce,
		flow.CodeChallenge,
		flow.CodeChallengeMethod,
		flow.Code,
		codeIssuedAt,
		now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create flow: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) FindAccessToken(ctx context.Context, accessToken string, now time.Time) (*models.AccessTokenInfo, error) {
	var info models.AccessTokenInfo
	err := s.pool.QueryRow(ctx, `
		SELECT g.user_id, f.grant_id, f.client_id, f.scopes
		FROM oauth_provider.flows f
		INNER JOIN oauth_provider.grants g ON f.grant_id = g.id
		WHERE f.access_token = $1
		  AND f.access_token_expires_at > $2
		  AND f.grant_id IS NOT NULL
	`, accessToken, now).Scan(&info.UserID, &info.GrantID, &info.ClientID, &info.Scopes)
	if err != nil {
		return nil, notFound(err, "find access token")
	}
	return &info, nil
}

// CreateClient registers a client. Client management is external; this
// exists for seeding and tests.
func (s *PostgresStore) CreateClient(ctx context.Context, c *models.Client) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO oauth_provider.clients (
			owner_id, client_id, client_secret, redirect_uris, display_name,
			privacy_url, tos_url, official, allowed_scopes, enforce_code_challenge
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`,
		c.OwnerID,
		c.ClientID,
		c.ClientSecret,
		c.RedirectURIs,
		c.DisplayName,
		c.PrivacyURL,
		c.TosURL,
		c.Official,
		c.AllowedScopes,
		c.EnforceCodeChallenge,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("create client: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

// RunInTx executes fn inside a transaction. The transaction is also put on
// the context so other stores (the audit outbox) join it.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, store service.TxStore) error) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txCtx := txcontext.WithTx(ctx, tx)
	if err := fn(txCtx, &pgTxStore{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTxStore struct {
	q queryer
}

func (t *pgTxStore) LockPendingFlow(ctx context.Context, flowID, userID int64) (*models.Flow, error) {
	row := t.q.QueryRow(ctx, `
		SELECT `+flowColumns+` FROM oauth_provider.flows
		WHERE id = $1 AND user_id = $2 AND code IS NULL
		FOR UPDATE
	`, flowID, userID)
	flow, err := scanFlow(row)
	if err != nil {
		return nil, notFound(err, "lock pending flow")
	}
	return flow, nil
}

func (t *pgTxStore) LockFlowByCode(ctx context.Context, code string, clientID int64) (*models.Flow, error) {
	row := t.q.QueryRow(ctx, `
		SELECT `+flowColumns+` FROM oauth_provider.flows
		WHERE code = $1 AND client_id = $2 AND authorized_at IS NULL
		FOR UPDATE
	`, code, clientID)
	flow, err := scanFlow(row)
	if err != nil {
		return nil, notFound(err, "lock flow by code")
	}
	return flow, nil
}

func (t *pgTxStore) LockFlowByRefreshToken(ctx context.Context, flowID int64, refreshToken string, clientID int64) (*models.Flow, error) {
	row := t.q.QueryRow(ctx, `
		SELECT `+flowColumns+` FROM oauth_provider.flows
		WHERE id = $1 AND refresh_token = $2 AND client_id = $3
		FOR UPDATE
	`, flowID, refreshToken, clientID)
	flow, err := scanFlow(row)
	if err != nil {
		return nil, notFound(err, "lock flow by refresh token")
	}
	return flow, nil
}

// UpsertGrant creates the (client, user) grant or widens its scopes.
func (t *pgTxStore) UpsertGrant(ctx context.Context, clientID, userID int64, scopes []string, now time.Time) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO oauth_provider.grants (client_id, user_id, scopes, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, client_id) DO UPDATE
		SET scopes = oauth_provider.merge_arrays(grants.scopes, EXCLUDED.scopes)
		RETURNING id
	`, clientID, userID, scopes, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert grant: %w", err)
	}
	return id, nil
}

func (t *pgTxStore) IssueCode(ctx context.Context, flowID, grantID int64, code string, now time.Time) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE oauth_provider.flows
		SET code = $1, code_issued_at = $2, grant_id = $3
		WHERE id = $4
	`, code, now, grantID, flowID)
	if err != nil {
		return fmt.Errorf("issue code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("issue code: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (t *pgTxStore) StoreTokens(ctx context.Context, update models.TokenUpdate, now time.Time) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE oauth_provider.flows
		SET access_token = $1,
			refresh_token = $2,
			access_token_expires_at = $3,
			authorized_at = $4
		WHERE id = $5
	`, update.AccessToken, update.RefreshToken, update.AccessTokenExpiresAt, now, update.FlowID)
	if err != nil {
		return fmt.Errorf("store tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store tokens: %w", sentinel.ErrNotFound)
	}
	return nil
}

func scanClient(row pgx.Row) (*models.Client, error) {
	var c models.Client
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.ClientID,
		&c.ClientSecret,
		&c.RedirectURIs,
		&c.DisplayName,
		&c.PrivacyURL,
		&c.TosURL,
		&c.Official,
		&c.AllowedScopes,
		&c.EnforceCodeChallenge,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanFlow(row pgx.Row) (*models.Flow, error) {
	var f models.Flow
	err := row.Scan(
		&f.ID,
		&f.ClientID,
		&f.GrantID,
		&f.UserID,
		&f.RedirectURI,
		&f.Scopes,
		&f.State,
		&f.Nonce,
		&f.CodeChallenge,
		&f.CodeChallengeMethod,
		&f.Code,
		&f.CodeIssuedAt,
		&f.AccessToken,
		&f.RefreshToken,
		&f.CreatedAt,
		&f.AuthorizedAt,
		&f.AccessTokenExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

var (
	_ service.Store   = (*PostgresStore)(nil)
	_ service.StoreTx = (*PostgresStore)(nil)
	_ service.TxStore = (*pgTxStore)(nil)
)
