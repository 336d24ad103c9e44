package service

import (
	"context"
	"fmt"
	"time"

	"foundation_portal/internal/common"
	"foundation_portal/internal/domain/model"
	"foundation_portal/internal/domain/repository"

	"github.com/sirupsen/logrus"
)

type UserService struct {
	userRepo repository.UserRepository
	sessions *SessionService
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewUserService(userRepo repository.UserRepository, sessions *SessionService, logger logrus.FieldLogger) *UserService {
	return &UserService{userRepo: userRepo, sessions: sessions, logger: logger, now: time.Now}
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.userRepo.List(ctx)
}

// ChangeRole stores the new role and revokes the user's sessions, since a session
// keeps the role it was issued with.
func (s *UserService) ChangeRole(ctx context.Context, actorID, userID, rawRole string) (*model.User, error) {
	role, err := model.ParseRole(rawRole)
	if err != nil {
		return nil, common.Validationf("%v", err)
	}

	user, err := s.userRepo.UpdateRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.RevokeAllForUser(ctx, user.ID, s.now()); err != nil {
		return nil, fmt.Errorf("role of %s changed but sessions were not revoked: %w", user.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"actor_id": actorID,
		"user_id":  user.ID,
		"role":     role,
	}).Info("user role changed")
	return user, nil
}

// RevokeSessions forces userID to sign in again.
func (s *UserService) RevokeSessions(ctx context.Context, actorID, userID string) error {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return err
	}
	if err := s.sessions.RevokeAllForUser(ctx, userID, s.now()); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"actor_id": actorID, "user_id": userID}).Info("user sessions revoked")
	return nil
}
