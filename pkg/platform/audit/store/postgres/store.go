package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	audit "idp/pkg/platform/audit"
	txcontext "idp/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table in the caller's transaction and
// published to Kafka by the relay worker.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type dbExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

// Payload is the JSON document published for each outbox row.
type Payload struct {
	ID        string   `json:"id"`
	Category  string   `json:"category"`
	Timestamp string   `json:"timestamp"`
	Action    string   `json:"action"`
	UserID    int64    `json:"user_id,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	FlowID    int64    `json:"flow_id,omitempty"`
	Scopes    []string `json:"scopes,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// Append writes an audit event to the outbox table. The insert fires the
// oauth_outbox notification that wakes the relay.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload := Payload{
		ID:        eventID.String(),
		Category:  string(audit.AuditEvent(event.Action).Category()),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:    event.Action,
		UserID:    event.UserID,
		ClientID:  event.ClientID,
		FlowID:    event.FlowID,
		Scopes:    event.Scopes,
		Reason:    event.Reason,
		RequestID: event.RequestID,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "client"
	aggregateID := event.ClientID
	if event.UserID != 0 {
		aggregateType = "user"
		aggregateID = fmt.Sprint(event.UserID)
	}

	query := `
		INSERT INTO oauth_provider.outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).Exec(ctx, query,
		eventID,
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}
