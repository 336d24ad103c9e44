package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"foundation_portal/internal/common"
	"foundation_portal/internal/common/security"
	"foundation_portal/internal/domain/model"
	"foundation_portal/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// IdentityService turns login attempts into identities and reconciles federated
// logins with local accounts by email.
type IdentityService struct {
	userRepo   repository.UserRepository
	lifetime   security.Lifetime
	bcryptCost int
	logger     logrus.FieldLogger
	now        func() time.Time
}

func NewIdentityService(userRepo repository.UserRepository, lifetime security.Lifetime, bcryptCost int, logger logrus.FieldLogger) *IdentityService {
	return &IdentityService{
		userRepo:   userRepo,
		lifetime:   lifetime,
		bcryptCost: bcryptCost,
		logger:     logger,
		now:        time.Now,
	}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OAuthAssertion is the profile a federated provider vouched for.
type OAuthAssertion struct {
	Provider          model.Provider
	ProviderAccountID string
	Email             string
	Name              string
	Image             string
}

// AuthenticateWithCredentials never says which half of the credentials was wrong.
// Store failures are returned as they are so they are not mistaken for a bad password.
func (s *IdentityService) AuthenticateWithCredentials(ctx context.Context, email, password string) (model.Identity, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return model.Identity{}, common.ErrInvalidCredentials
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return model.Identity{}, common.ErrInvalidCredentials
		}
		return model.Identity{}, fmt.Errorf("credentials login: %w", err)
	}

	// OAuth-only accounts have no hash and can never pass here.
	if !user.HasPassword() || !security.CheckPasswordHash(password, user.HashedPassword) {
		return model.Identity{}, common.ErrInvalidCredentials
	}
	return user.Identity(), nil
}

// AuthenticateWithOAuth links a federated login to the local account with the same
// email, creating one when none exists. Local name, email and role win over the
// assertion; only the avatar follows the latest login.
func (s *IdentityService) AuthenticateWithOAuth(ctx context.Context, assertion OAuthAssertion) (model.Identity, error) {
	if assertion.Provider != model.ProviderGoogle {
		return model.Identity{}, common.Validationf("provider %q is not supported", assertion.Provider)
	}
	email := model.NormalizeEmail(assertion.Email)
	if email == "" || strings.TrimSpace(assertion.ProviderAccountID) == "" {
		return model.Identity{}, common.Validationf("oauth assertion must carry an email and an account id")
	}
	log := s.logger.WithFields(logrus.Fields{"provider": assertion.Provider, "email": email})

	existing, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return s.linkExisting(ctx, existing, assertion, log)
	case errors.Is(err, common.ErrNotFound):
		return s.createFederated(ctx, email, assertion, log)
	default:
		return model.Identity{}, fmt.Errorf("oauth login: %w", err)
	}
}

func (s *IdentityService) linkExisting(ctx context.Context, user *model.User, assertion OAuthAssertion, log logrus.FieldLogger) (model.Identity, error) {
	if assertion.Image == "" || assertion.Image == user.Image {
		return user.Identity(), nil
	}

	updated, err := s.userRepo.UpdateImage(ctx, user.ID, assertion.Image)
	if err != nil {
		return model.Identity{}, fmt.Errorf("oauth login: refresh image for user %s: %w", user.ID, err)
	}
	log.WithField("user_id", user.ID).Info("refreshed avatar from oauth login")
	return updated.Identity(), nil
}

func (s *IdentityService) createFederated(ctx context.Context, email string, assertion OAuthAssertion, log logrus.FieldLogger) (model.Identity, error) {
	name := strings.TrimSpace(assertion.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	user := &model.User{
		ID:         uuid.NewString(),
		Name:       name,
		Email:      email,
		Role:       model.RoleUser,
		Image:      assertion.Image,
		Provider:   model.ProviderGoogle,
		ProviderID: assertion.ProviderAccountID,
	}
	if err := user.Validate(); err != nil {
		return model.Identity{}, err
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) {
			log.Warn("concurrent first oauth login lost the account race")
			return model.Identity{}, fmt.Errorf("oauth login for %s: %w", email, common.ErrAccountConflict)
		}
		return model.Identity{}, fmt.Errorf("oauth login: create user: %w", err)
	}
	log.WithField("user_id", user.ID).Info("created account from oauth login")
	return user.Identity(), nil
}

// Register creates a credentials account with the default role.
func (s *IdentityService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	return s.CreateAccount(ctx, req, model.RoleUser)
}

// CreateAccount creates a credentials account with role. The returned user never
// carries the password hash.
func (s *IdentityService) CreateAccount(ctx context.Context, req RegisterRequest, role model.Role) (*model.User, error) {
	user := &model.User{
		ID:       uuid.NewString(),
		Name:     req.Name,
		Email:    req.Email,
		Role:     role,
		Provider: model.ProviderCredentials,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	hashedPassword, err := security.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.HashedPassword = hashedPassword

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, fmt.Errorf("register %s: %w", user.Email, common.ErrAccountConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("registered credentials account")

	user.HashedPassword = "" // Clear password before returning
	return user, nil
}

// BuildSession snapshots identity into a new session. The role it carries is
// authoritative until the session ends.
func (s *IdentityService) BuildSession(identity model.Identity, upstreamAccessToken string) model.Session {
	return s.lifetime.New(identity, upstreamAccessToken, s.now())
}
