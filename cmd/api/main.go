package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hons90/CRM/internal/audit"
	"github.com/Hons90/CRM/internal/auth"
	"github.com/Hons90/CRM/internal/calls"
	"github.com/Hons90/CRM/internal/config"
	"github.com/Hons90/CRM/internal/dialer"
	"github.com/Hons90/CRM/internal/httpapi"
	"github.com/Hons90/CRM/internal/pools"
	"github.com/Hons90/CRM/internal/reporting"
	"github.com/Hons90/CRM/internal/schema"
	"github.com/Hons90/CRM/internal/telephony"
	"github.com/Hons90/CRM/internal/users"
	"github.com/Hons90/CRM/pkg/logger"
	"github.com/Hons90/CRM/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadEnvFile(); err != nil {
		slog.Error("env file load failed", "err", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return err
	}

	db, err := utils.OpenDB(ctx, cfg.DB.Driver, cfg.DSN(), utils.PoolConfig{})
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := schema.Migrate(ctx, db, cfg.DB.Driver)
	if err != nil {
		return err
	}
	log.Info("database ready", "driver", cfg.DB.Driver, "applied_migrations", applied, "schema_version", schema.Latest())

	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb, err = utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	var revoked auth.RevocationStore = auth.NewMemoryRevocationStore()
	if rdb != nil {
		revoked = auth.NewRedisRevocationStore(rdb)
	} else {
		log.Warn("redis not configured; refresh token revocation is process-local")
	}

	provider, err := newProvider(ctx, cfg, log)
	if err != nil {
		return err
	}

	var dialOpts []dialer.Option
	if cfg.Dialer.MaxConcurrentPerUser > 0 {
		dialOpts = append(dialOpts, dialer.WithLimiter(dialer.NewRedisLimiter(rdb, cfg.Dialer.MaxConcurrentPerUser)))
	}

	auditSvc := audit.NewService(audit.NewSQLRepo(db))
	registry := pools.NewRegistry(db)
	ledger := calls.NewLedger(db)

	h := httpapi.Handlers{
		Users:          users.NewService(db, authManager, revoked, auditSvc),
		Pools:          registry,
		Calls:          ledger,
		Dialer:         dialer.NewService(db, registry, ledger, provider, dialOpts...),
		Reports:        reporting.NewService(ledger, registry),
		Audit:          auditSvc,
		UploadMaxBytes: cfg.Dialer.UploadMaxBytes,
	}

	var webhook *telephony.TwilioStatusHandler
	if cfg.Dialer.Provider == config.ProviderTwilio {
		webhook = &telephony.TwilioStatusHandler{
			Recorder:  ledger,
			AuthToken: cfg.Twilio.AuthToken,
			PublicURL: cfg.Twilio.StatusCallbackURL,
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, routeDeps{
		DB:         db,
		Handlers:   h,
		AuthMW:     auth.RequireAccessToken(authManager),
		Webhook:    webhook,
		CORSOrigin: cfg.App.CORSOrigin,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "provider", provider.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "err", err)
			return err
		}
		return nil
	})
	return g.Wait()
}

func newProvider(ctx context.Context, cfg config.Config, log *slog.Logger) (telephony.Provider, error) {
	if cfg.Dialer.Provider != config.ProviderTwilio {
		return telephony.NewSimulatedProvider(), nil
	}
	p, err := telephony.NewTwilioProvider(cfg.Twilio, &http.Client{Timeout: 15 * time.Second})
	if err != nil {
		return nil, err
	}
	// A failing check is logged, not fatal: the carrier may recover before the first dial.
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.HealthCheck(checkCtx); err != nil {
		log.Warn("twilio health check failed", "err", err)
	}
	return p, nil
}
