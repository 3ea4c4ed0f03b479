// Package accounts keeps login credentials behind a small Store interface so
// the server and the reset-admin command share one source of truth.
package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"magasin/backend/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")

type Store interface {
	GetUser(ctx context.Context, username string) (domain.UserAccount, error)
	UpsertUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}

func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func VerifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !IsPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func IsPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

// EnsureAdmin makes sure username exists as an active admin. A missing account
// is created with password. An existing one keeps its password unless
// resetPassword is set or its stored hash is unusable.
func EnsureAdmin(ctx context.Context, s Store, username string, password string, resetPassword bool) error {
	username = NormalizeUsername(username)
	if username == "" {
		return errors.New("admin username is required")
	}

	existing, err := s.GetUser(ctx, username)
	switch {
	case errors.Is(err, ErrUserNotFound):
		hash, err := HashPassword(password)
		if err != nil {
			return err
		}
		if err := s.UpsertUser(ctx, domain.UserAccount{
			Username:     username,
			PasswordHash: hash,
			Role:         domain.RoleAdmin,
			Active:       true,
			CreatedAt:    time.Now().UTC(),
		}); err != nil {
			return err
		}
		zap.L().Info("initialized admin account", zap.String("username", username))
		return nil
	case err != nil:
		return err
	}

	repairHash := resetPassword || !IsPasswordHash(existing.PasswordHash)
	repairRole := existing.Role != domain.RoleAdmin
	repairStatus := !existing.Active
	if !repairHash && !repairRole && !repairStatus {
		return nil
	}

	if repairHash {
		hash, err := HashPassword(password)
		if err != nil {
			return err
		}
		existing.PasswordHash = hash
	}
	existing.Role = domain.RoleAdmin
	existing.Active = true
	if err := s.UpsertUser(ctx, existing); err != nil {
		return err
	}

	zap.L().Warn("repaired admin account",
		zap.String("username", username),
		zap.Bool("passwordReset", repairHash),
		zap.Bool("roleReset", repairRole),
		zap.Bool("statusEnabled", repairStatus))
	return nil
}

var weakPasswords = map[string]bool{
	"admin":       true,
	"admin123":    true,
	"admin12345":  true,
	"password":    true,
	"password1":   true,
	"password123": true,
	"1234567890":  true,
	"0123456789":  true,
	"azertyuiop":  true,
	"qwertyuiop":  true,
	"motdepasse":  true,
	"changeme":    true,
	"letmein123":  true,
}

// CheckPasswordStrength rejects short passwords, single repeated characters
// and well-known defaults.
func CheckPasswordStrength(password string) error {
	if len(password) < 10 {
		return errors.New("must be at least 10 characters")
	}
	if weakPasswords[strings.ToLower(password)] {
		return errors.New("common password not allowed")
	}
	if strings.Count(password, password[:1]) == len(password) {
		return errors.New("repeated-character password not allowed")
	}
	return nil
}
