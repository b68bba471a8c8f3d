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

	"voicegate/internal/admission"
	"voicegate/internal/auth"
	"voicegate/internal/botcheck"
	"voicegate/internal/calllog"
	"voicegate/internal/config"
	"voicegate/internal/httpapi"
	"voicegate/internal/voicevendor"
	"voicegate/pkg/logger"
	"voicegate/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

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

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// A nil interface means the gate skips the corresponding check, so only
	// assign the concrete reserver/verifier when configuration enables them.
	var quota admission.QuotaReserver
	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		quota = admission.NewRedisQuotaReserver(rdb)
	} else {
		log.Warn("redis not configured, quota reservation disabled")
	}

	var verifier botcheck.Verifier
	if cfg.VerifierEnabled() {
		v, err := botcheck.NewHTTPVerifier(cfg.Verifier.Endpoint, cfg.Verifier.SecretKey)
		if err != nil {
			log.Error("verifier init failed", "err", err)
			os.Exit(1)
		}
		verifier = v
	} else {
		log.Warn("bot verification not configured, check disabled")
	}

	vendor, err := voicevendor.NewRetellProvider(cfg.Vendor.BaseURL, cfg.Vendor.APIKey)
	if err != nil {
		log.Error("vendor init failed", "err", err)
		os.Exit(1)
	}

	gate := admission.NewGate(
		calllog.NewPostgresRepository(db),
		verifier,
		vendor,
		quota,
		cfg.Calls,
		cfg.Vendor.AgentID,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:     authManager,
		Gate:     gate,
		Verifier: cfg.Verifier,
		Calls:    cfg.Calls,
	}
	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
