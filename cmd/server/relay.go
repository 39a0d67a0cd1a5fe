package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"idp/internal/platform/config"
	"idp/internal/platform/httpserver"
	"idp/pkg/platform/audit/publishers/kafka"
	"idp/pkg/platform/audit/worker"
	"idp/pkg/platform/circuit"
)

func newRelayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Relay audit outbox entries to Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadDatabase(a.v)
			if err != nil {
				return err
			}
			if len(cfg.KafkaBrokers) == 0 {
				return errors.New("KAFKA_BROKERS is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.relay(ctx, cfg)
		},
	}
	cmd.Flags().String("metrics-addr", ":9091", "Address for the relay metrics endpoint")
	mustBind(a.v, "relay_metrics_addr", cmd.Flags().Lookup("metrics-addr"))
	return cmd
}

func (a *app) relay(ctx context.Context, cfg config.Config) error {
	connector, err := pq.NewConnector(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}
	db := sql.OpenDB(connector)
	defer db.Close()

	publisher, err := kafka.New(cfg.KafkaBrokers, cfg.AuditTopic)
	if err != nil {
		return err
	}
	defer publisher.Close()
	if err := publisher.Ping(ctx); err != nil {
		a.logger.Warn("kafka not reachable yet, relay will retry", "error", err)
	}

	wake, closeListener, err := worker.Listen(cfg.DatabaseURL, func(err error) {
		a.logger.Warn("outbox listener error", "error", err)
	})
	if err != nil {
		return err
	}
	defer func() { _ = closeListener() }()

	reg := prometheus.NewRegistry()
	relay := worker.NewWorker(worker.NewSQLOutbox(db), publisher,
		worker.WithWake(wake),
		worker.WithBatchSize(cfg.RelayBatchSize),
		worker.WithPollInterval(cfg.RelayPollInterval),
		worker.WithLogger(a.logger),
		worker.WithMetrics(worker.NewMetrics(reg)),
		worker.WithBreaker(circuit.New("kafka",
			circuit.WithFailureThreshold(5),
			circuit.WithCooldown(30*time.Second),
		)),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := httpserver.New(a.v.GetString("relay_metrics_addr"), mux, 5*time.Second)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("starting outbox relay", "topic", cfg.AuditTopic, "brokers", cfg.KafkaBrokers)
		if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
