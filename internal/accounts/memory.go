package accounts

import (
	"context"
	"sort"
	"sync"

	"magasin/backend/internal/domain"
)

type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]domain.UserAccount
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]domain.UserAccount)}
}

func (s *MemoryStore) GetUser(_ context.Context, username string) (domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[NormalizeUsername(username)]
	if !ok {
		return domain.UserAccount{}, ErrUserNotFound
	}
	return user, nil
}

func (s *MemoryStore) UpsertUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Username = NormalizeUsername(user.Username)
	if existing, ok := s.users[user.Username]; ok && user.CreatedAt.IsZero() {
		user.CreatedAt = existing.CreatedAt
	}
	s.users[user.Username] = user
	return nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users, nil
}
