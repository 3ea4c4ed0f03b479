// Command reset-admin recreates the admin account or resets its password in
// the Postgres accounts table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"magasin/backend/internal/accounts"
	"magasin/backend/internal/config"
	"magasin/backend/internal/logging"
)

func main() {
	cfg := config.Load()

	databaseURL := flag.String("database-url", cfg.DatabaseURL, "Postgres DSN (defaults to DATABASE_URL)")
	username := flag.String("username", cfg.AdminUsername, "admin username (defaults to ADMIN_USERNAME)")
	password := flag.String("password", cfg.AdminPassword, "new admin password (defaults to ADMIN_PASSWORD)")
	flag.Parse()

	logger, err := logging.Setup(cfg.LogMode, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(*databaseURL, *username, *password); err != nil {
		zap.L().Error("admin reset failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(databaseURL string, username string, password string) error {
	if databaseURL == "" {
		return fmt.Errorf("a database URL is required (-database-url or DATABASE_URL)")
	}
	if err := accounts.CheckPasswordStrength(password); err != nil {
		return fmt.Errorf("password is too weak: %w", err)
	}

	users, err := accounts.OpenGorm(databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = users.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return resetAdmin(ctx, users, username, password)
}

func resetAdmin(ctx context.Context, users accounts.Store, username string, password string) error {
	if err := accounts.EnsureAdmin(ctx, users, username, password, true); err != nil {
		return err
	}
	zap.L().Info("admin account ready", zap.String("username", accounts.NormalizeUsername(username)))
	return nil
}
