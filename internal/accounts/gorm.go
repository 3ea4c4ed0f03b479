package accounts

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"magasin/backend/internal/domain"
)

type userRecord struct {
	Username     string `gorm:"primaryKey;size:64"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"size:16;not null"`
	Active       bool   `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRecord) TableName() string {
	return "users"
}

// GormStore keeps accounts in the users table of the ledger database.
type GormStore struct {
	db *gorm.DB
}

func OpenGorm(databaseURL string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&userRecord{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) GetUser(ctx context.Context, username string) (domain.UserAccount, error) {
	var record userRecord
	err := s.db.WithContext(ctx).Where("username = ?", NormalizeUsername(username)).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.UserAccount{}, ErrUserNotFound
	}
	if err != nil {
		return domain.UserAccount{}, err
	}
	return record.account(), nil
}

func (s *GormStore) UpsertUser(ctx context.Context, user domain.UserAccount) error {
	now := time.Now().UTC()
	record := userRecord{
		Username:     NormalizeUsername(user.Username),
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		Active:       user.Active,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    now,
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "role", "active", "updated_at"}),
	}).Create(&record).Error
}

func (s *GormStore) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	var records []userRecord
	if err := s.db.WithContext(ctx).Order("username").Find(&records).Error; err != nil {
		return nil, err
	}
	users := make([]domain.UserAccount, 0, len(records))
	for _, record := range records {
		users = append(users, record.account())
	}
	return users, nil
}

func (r userRecord) account() domain.UserAccount {
	return domain.UserAccount{
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		Active:       r.Active,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}
