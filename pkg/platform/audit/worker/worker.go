package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"idp/pkg/platform/circuit"
)

// ErrCircuitOpen is returned by Drain while the publisher is considered down.
var ErrCircuitOpen = errors.New("outbox publisher circuit open")

// Entry is one unpublished outbox row.
type Entry struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     []byte
}

// Outbox hands out batches of unpublished entries. ClaimBatch runs fn while
// the batch is locked and marks the entries published only if fn succeeds.
type Outbox interface {
	ClaimBatch(ctx context.Context, limit int, fn func(ctx context.Context, entries []Entry) error) (int, error)
}

// Publisher delivers one entry to the downstream log.
type Publisher interface {
	Publish(ctx context.Context, entry Entry) error
}

// Worker relays outbox entries to a publisher. It drains whenever wake fires
// and on every poll tick, so a missed notification only delays delivery.
type Worker struct {
	outbox       Outbox
	publisher    Publisher
	wake         <-chan struct{}
	batchSize    int
	pollInterval time.Duration
	logger       *slog.Logger
	breaker      *circuit.Breaker
	metrics      *Metrics
}

type Option func(*Worker)

func WithBatchSize(n int) Option {
	return func(w *Worker) { w.batchSize = n }
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) { w.pollInterval = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithBreaker stops draining while the publisher keeps failing, so a broker
// outage does not hammer the outbox with claim-and-rollback cycles.
func WithBreaker(b *circuit.Breaker) Option {
	return func(w *Worker) { w.breaker = b }
}

func WithMetrics(m *Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithWake sets the channel that signals new outbox rows.
func WithWake(ch <-chan struct{}) Option {
	return func(w *Worker) { w.wake = ch }
}

func NewWorker(outbox Outbox, publisher Publisher, opts ...Option) *Worker {
	w := &Worker{
		outbox:       outbox,
		publisher:    publisher,
		batchSize:    100,
		pollInterval: 5 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run relays until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if err := w.Drain(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, ErrCircuitOpen) {
			w.logger.WarnContext(ctx, "outbox relay batch failed", "error", err.Error())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.wake:
		case <-ticker.C:
		}
	}
}

// Drain publishes batches until the outbox is empty.
func (w *Worker) Drain(ctx context.Context) error {
	for {
		if w.breaker != nil && !w.breaker.Allow() {
			w.metrics.incSkipped()
			return ErrCircuitOpen
		}
		n, err := w.outbox.ClaimBatch(ctx, w.batchSize, w.publishAll)
		if err != nil {
			w.metrics.incFailure()
			w.recordOutcome(ctx, false)
			return err
		}
		if n > 0 {
			w.recordOutcome(ctx, true)
			w.metrics.addPublished(n)
		}
		if n < w.batchSize {
			return nil
		}
	}
}

func (w *Worker) publishAll(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if err := w.publisher.Publish(ctx, e); err != nil {
			return fmt.Errorf("publish outbox entry %s: %w", e.ID, err)
		}
	}
	if len(entries) > 0 {
		w.logger.DebugContext(ctx, "relayed outbox entries", "count", len(entries))
	}
	return nil
}

func (w *Worker) recordOutcome(ctx context.Context, ok bool) {
	if w.breaker == nil {
		return
	}
	var change circuit.StateChange
	if ok {
		_, change = w.breaker.RecordSuccess()
	} else {
		_, change = w.breaker.RecordFailure()
	}
	switch {
	case change.Opened:
		w.logger.WarnContext(ctx, "outbox publisher circuit opened", "breaker", w.breaker.Name())
	case change.Closed:
		w.logger.InfoContext(ctx, "outbox publisher circuit closed", "breaker", w.breaker.Name())
	}
	w.metrics.setBreakerOpen(w.breaker.IsOpen())
}
