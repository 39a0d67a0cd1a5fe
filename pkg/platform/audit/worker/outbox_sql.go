package worker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// NotifyChannel is the Postgres channel the outbox trigger notifies on.
const NotifyChannel = "oauth_outbox"

// SQLOutbox reads the outbox table through database/sql. Batches are claimed
// with FOR UPDATE SKIP LOCKED so several relays can run side by side.
type SQLOutbox struct {
	db *sql.DB
}

func NewSQLOutbox(db *sql.DB) *SQLOutbox {
	return &SQLOutbox{db: db}
}

func (o *SQLOutbox) ClaimBatch(ctx context.Context, limit int, fn func(ctx context.Context, entries []Entry) error) (int, error) {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id::text, aggregate_id, event_type, payload
		FROM oauth_provider.outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("select outbox batch: %w", err)
	}

	var entries []Entry
	var ids []string
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox batch: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := fn(ctx, entries); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE oauth_provider.outbox SET published_at = now()
		WHERE id = ANY($1::uuid[])
	`, pq.Array(ids)); err != nil {
		return 0, fmt.Errorf("mark outbox published: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox tx: %w", err)
	}
	return len(entries), nil
}

// Listen subscribes to outbox notifications and returns a coalescing wake
// channel plus a closer. Reconnects are handled by pq.Listener; a reconnect
// also wakes the relay because notifications may have been lost.
func Listen(dsn string, onErr func(error)) (<-chan struct{}, func() error, error) {
	wake := make(chan struct{}, 1)
	signal := func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}

	listener := pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil && onErr != nil {
			onErr(err)
		}
		if ev == pq.ListenerEventReconnected {
			signal()
		}
	})
	if err := listener.Listen(NotifyChannel); err != nil {
		_ = listener.Close()
		return nil, nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}

	go func() {
		for range listener.Notify {
			signal()
		}
	}()
	return wake, listener.Close, nil
}
