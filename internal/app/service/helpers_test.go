package service

import (
	"context"
	"sync"
	"time"

	"foundation_portal/internal/common/security"
	"foundation_portal/internal/domain/model"
	"foundation_portal/internal/domain/repository"
	"foundation_portal/internal/domain/repository/memory"
	"foundation_portal/internal/platform/logging"
)

const testBcryptCost = 4

var testLifetime = security.Lifetime{MaxAge: 30 * 24 * time.Hour, UpdateAge: 24 * time.Hour}

// spyUserRepository records writes and can inject failures on top of the memory store.
type spyUserRepository struct {
	repository.UserRepository

	mu               sync.Mutex
	createCalls      int
	updateImageCalls int

	findErr   error
	createErr error
	imageErr  error
}

func newSpyUserRepository() *spyUserRepository {
	return &spyUserRepository{UserRepository: memory.NewUserRepository()}
}

func (s *spyUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.UserRepository.FindByEmail(ctx, email)
}

func (s *spyUserRepository) Create(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	s.createCalls++
	s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	return s.UserRepository.Create(ctx, user)
}

func (s *spyUserRepository) UpdateImage(ctx context.Context, id, imageURL string) (*model.User, error) {
	s.mu.Lock()
	s.updateImageCalls++
	s.mu.Unlock()
	if s.imageErr != nil {
		return nil, s.imageErr
	}
	return s.UserRepository.UpdateImage(ctx, id, imageURL)
}

func newTestIdentityService(users repository.UserRepository) *IdentityService {
	return NewIdentityService(users, testLifetime, testBcryptCost, logging.Discard())
}

func seedUser(ctx context.Context, users repository.UserRepository, user model.User, password string) *model.User {
	if password != "" {
		hash, err := security.HashPassword(password, testBcryptCost)
		if err != nil {
			panic(err)
		}
		user.HashedPassword = hash
	}
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	if user.Provider == "" {
		user.Provider = model.ProviderCredentials
	}
	if err := users.Create(ctx, &user); err != nil {
		panic(err)
	}
	return &user
}
