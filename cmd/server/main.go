package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"magasin/backend/internal/accounts"
	"magasin/backend/internal/config"
	"magasin/backend/internal/httpapi"
	"magasin/backend/internal/limiter"
	"magasin/backend/internal/logging"
	"magasin/backend/internal/service"
	"magasin/backend/internal/store"
	"magasin/backend/internal/store/memory"
	pgstore "magasin/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()

	logger, err := logging.Setup(cfg.LogMode, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		zap.L().Fatal("invalid security configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		repo  store.Repository
		users accounts.Store
	)
	closers := make([]func() error, 0, 3)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			zap.L().Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		closers = append(closers, pg.Close)
		if cfg.BootstrapSchema {
			if err := pg.EnsureSchema(ctx); err != nil {
				zap.L().Fatal("schema bootstrap failed", zap.Error(err))
			}
			zap.L().Info("schema bootstrapped")
		}
		repo = pg

		gormUsers, err := accounts.OpenGorm(cfg.DatabaseURL)
		if err != nil {
			zap.L().Fatal("accounts store unavailable", zap.Error(err))
		}
		closers = append(closers, gormUsers.Close)
		users = gormUsers
		zap.L().Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		users = accounts.NewMemoryStore()
		zap.L().Info("repository: in-memory")
	}

	if err := accounts.EnsureAdmin(ctx, users, cfg.AdminUsername, cfg.AdminPassword, false); err != nil {
		zap.L().Fatal("admin bootstrap failed", zap.Error(err))
	}

	var loginLimiter limiter.Limiter = limiter.NewMemory(cfg.LoginMaxAttempts, time.Minute)
	if cfg.RedisAddr != "" {
		redisLimiter := limiter.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LoginMaxAttempts, time.Minute)
		if err := redisLimiter.Ping(ctx); err != nil {
			zap.L().Warn("redis unavailable, using in-process login limiter", zap.Error(err))
			_ = redisLimiter.Close()
		} else {
			loginLimiter = redisLimiter
			closers = append(closers, redisLimiter.Close)
			zap.L().Info("login limiter: redis")
		}
	} else {
		zap.L().Info("login limiter: in-process")
	}

	svc := service.New(repo)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, users)
	api := httpapi.New(svc, auth, loginLimiter, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zap.L().Info("magasin backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zap.L().Error("close error", zap.Error(err))
		}
	}

	zap.L().Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if err := accounts.CheckPasswordStrength(cfg.AdminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD is too weak: %w", err)
	}
	return nil
}
