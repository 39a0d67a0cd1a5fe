package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	jwttoken "idp/internal/jwt_token"
	"idp/internal/oauth/adapters/httpclient"
	"idp/internal/oauth/claims"
	"idp/internal/oauth/handler"
	oauthmetrics "idp/internal/oauth/metrics"
	"idp/internal/oauth/service"
	"idp/internal/oauth/store"
	"idp/internal/platform/config"
	"idp/internal/platform/httpserver"
	"idp/internal/platform/metrics"
	"idp/pkg/idcodec"
	"idp/pkg/platform/audit"
	auditmemory "idp/pkg/platform/audit/store/memory"
	auditpostgres "idp/pkg/platform/audit/store/postgres"
	"idp/pkg/platform/httputil"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the OpenID provider HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, cfg)
		},
	}
	cmd.Flags().String("addr", ":8080", "Address to listen on")
	cmd.Flags().String("store", config.StorePostgres, "Storage backend: postgres or memory")
	mustBind(a.v, config.KeyAddr, cmd.Flags().Lookup("addr"))
	mustBind(a.v, config.KeyStore, cmd.Flags().Lookup("store"))
	return cmd
}

// backend is the storage selected by STORE.
type backend struct {
	store service.Store
	tx    service.StoreTx
	audit audit.Store
	ping  func(ctx context.Context) error
	close func()
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	if cfg.Store == config.StoreMemory {
		mem := store.NewInMemory()
		return &backend{
			store: mem,
			tx:    mem,
			audit: auditmemory.NewInMemoryStore(),
			ping:  func(context.Context) error { return nil },
			close: func() {},
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	pg := store.NewPostgres(pool)
	return &backend{
		store: pg,
		tx:    pg,
		audit: auditpostgres.New(pool),
		ping:  pool.Ping,
		close: pool.Close,
	}, nil
}

func newAssembler(cfg config.Config, codec *idcodec.Codec, a *app) (*claims.Assembler, error) {
	identityClient, err := httpclient.New(cfg.IdentityServiceURL)
	if err != nil {
		return nil, fmt.Errorf("identity service: %w", err)
	}
	profileClient, err := httpclient.New(cfg.ProfileServiceURL)
	if err != nil {
		return nil, fmt.Errorf("profile service: %w", err)
	}
	imageClient, err := httpclient.New(cfg.ImageServiceURL)
	if err != nil {
		return nil, fmt.Errorf("image service: %w", err)
	}
	return claims.New(
		codec,
		httpclient.NewIdentityClient(identityClient),
		httpclient.NewProfileClient(profileClient),
		httpclient.NewImageClient(imageClient),
		cfg.FrontendRoot,
		claims.WithLogger(a.logger),
	), nil
}

func (a *app) serve(ctx context.Context, cfg config.Config) error {
	codec, err := idcodec.New([]byte(cfg.IDEncryptionKey))
	if err != nil {
		return err
	}
	key, err := jwttoken.LoadRSAKeyFile(cfg.SigningKeyPath)
	if err != nil {
		return err
	}
	signer, err := jwttoken.NewJWTService(key, cfg.SigningKeyID, cfg.Issuer)
	if err != nil {
		return err
	}
	assembler, err := newAssembler(cfg, codec, a)
	if err != nil {
		return err
	}

	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := service.New(be.store, be.tx, codec, assembler, signer,
		service.Config{Issuer: cfg.Issuer, FrontendRoot: cfg.FrontendRoot},
		service.WithLogger(a.logger),
		service.WithMetrics(oauthmetrics.New(reg)),
		service.WithAuditStore(be.audit),
	)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := be.ping(req.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	handler.New(svc, a.logger, metrics.New(reg), cfg.RequestTimeout).Register(r)

	srv := httpserver.New(cfg.Addr, r, cfg.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("starting oauth provider",
			"addr", cfg.Addr,
			"store", cfg.Store,
			"issuer", cfg.Issuer,
			"key_id", signer.KeyID(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
