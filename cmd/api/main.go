package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tnm3allim/marketplace/internal/config"
	"github.com/tnm3allim/marketplace/internal/db"
	httpx "github.com/tnm3allim/marketplace/internal/http"
	"github.com/tnm3allim/marketplace/internal/janitor"
	"github.com/tnm3allim/marketplace/internal/notifications"
	"github.com/tnm3allim/marketplace/internal/observability"
	"github.com/tnm3allim/marketplace/internal/redisclient"
	"github.com/tnm3allim/marketplace/internal/repo/postgres"
	"github.com/tnm3allim/marketplace/internal/security"
)

func main() {
	cfg, err := config.Load()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		Enabled:  cfg.OTELEnabled,
		Endpoint: cfg.OTELEndpoint,
		Env:      cfg.Env,
	})

	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.DBURL, cfg.DBMaxConns)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	hasher, err := security.NewHasher(cfg.BcryptCost)

	if err != nil {
		log.Error("invalid bcrypt cost", "err", err)
		os.Exit(1)
	}

	seedCtx, cancelSeed := context.WithTimeout(ctx, 5*time.Second)
	err = db.EnsureAdminUser(seedCtx, postgres.NewUsersRepo(pool, prom), hasher, db.AdminSeed{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Name:     cfg.AdminName,
	}, log)
	cancelSeed()

	if err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}

	var rdb *redisclient.Client

	redisCfg := redisclient.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	if redisCfg.Enabled() {
		rdb = redisclient.New(redisCfg)
		defer rdb.Close()

		if err := rdb.Ping(ctx); err != nil {
			log.Warn("redis not reachable at startup", "addr", cfg.RedisAddr, "err", err)
		}
	} else {
		log.Info("redis not configured, using in-process session revocation and locks")
	}

	notifier := notifications.NewProtectedNotifier(notifications.NewLogNotifier(log), notifications.ProtectedNotifierConfig{
		Timeout:          3 * time.Second,
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
		HalfOpenMaxCalls: 1,
	})

	jan := janitor.New(janitor.Config{}, log)

	var shuttingDown atomic.Bool

	router, err := httpx.NewRouter(httpx.Deps{
		Log:      log,
		Cfg:      cfg,
		Pool:     pool,
		Registry: reg,
		Prom:     prom,
		Redis:    rdb,
		Notifier: notifier,
		Janitor:  jan,

		ShuttingDown: shuttingDown.Load,
	})

	if err != nil {
		log.Error("router setup failed", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() { _ = jan.Run(ctx) }()

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shuttingDown.Store(true)
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}

	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", "err", err)
	}

	log.Info("shutdown complete")
}
