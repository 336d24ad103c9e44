package service

import (
	"context"
	"fmt"
	"time"

	"foundation_portal/internal/common/security"
	"foundation_portal/internal/domain/model"
)

// SessionService signs, refreshes and revokes session snapshots.
type SessionService struct {
	tokens      *security.SessionTokens
	lifetime    security.Lifetime
	revocations RevocationStore
	now         func() time.Time
}

func NewSessionService(tokens *security.SessionTokens, lifetime security.Lifetime, revocations RevocationStore) *SessionService {
	return &SessionService{
		tokens:      tokens,
		lifetime:    lifetime,
		revocations: revocations,
		now:         time.Now,
	}
}

func (s *SessionService) Tokens() *security.SessionTokens {
	return s.tokens
}

func (s *SessionService) Issue(session model.Session) (string, error) {
	return s.tokens.Issue(session)
}

func (s *SessionService) FromClaims(claims map[string]interface{}) (model.Session, error) {
	return s.tokens.FromClaims(claims)
}

// Refresh extends session at most once per update age.
func (s *SessionService) Refresh(session model.Session) (model.Session, bool) {
	return s.lifetime.Refresh(session, s.now())
}

// Revoke ends one session (logout) for the rest of its lifetime.
func (s *SessionService) Revoke(ctx context.Context, session model.Session) error {
	if err := s.revocations.RevokeSession(ctx, session.ID, session.ExpiresAt); err != nil {
		return fmt.Errorf("revoke session %s: %w", session.ID, err)
	}
	return nil
}

// RevokeAllForUser rejects every session of userID authenticated before at, compared
// at millisecond precision.
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID string, at time.Time) error {
	if err := s.revocations.RevokeUserBefore(ctx, userID, at.UTC().Truncate(time.Millisecond), s.lifetime.MaxAge); err != nil {
		return fmt.Errorf("revoke sessions of user %s: %w", userID, err)
	}
	return nil
}

func (s *SessionService) IsRevoked(ctx context.Context, session model.Session) (bool, error) {
	revoked, err := s.revocations.IsSessionRevoked(ctx, session.ID)
	if err != nil || revoked {
		return revoked, err
	}

	before, err := s.revocations.UserRevokedBefore(ctx, session.UserID)
	if err != nil {
		return false, err
	}
	return !before.IsZero() && session.AuthTime.Before(before), nil
}
