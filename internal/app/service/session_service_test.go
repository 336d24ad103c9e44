package service

import (
	"context"
	"testing"
	"time"

	"foundation_portal/internal/common/security"
	"foundation_portal/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionService() *SessionService {
	tokens := security.NewSessionTokens([]byte("0123456789abcdef0123456789abcdef"), testLifetime.MaxAge)
	return NewSessionService(tokens, testLifetime, NewMemoryRevocationStore())
}

func TestSessionRevoke(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessionService()
	session := testLifetime.New(model.Identity{ID: "u1", Email: "a@x.test", Role: model.RoleAdmin}, "", time.Now())
	other := testLifetime.New(model.Identity{ID: "u1", Email: "a@x.test", Role: model.RoleAdmin}, "", time.Now())

	revoked, err := svc.IsRevoked(ctx, session)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, svc.Revoke(ctx, session))

	revoked, err = svc.IsRevoked(ctx, session)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = svc.IsRevoked(ctx, other)
	require.NoError(t, err)
	assert.False(t, revoked, "logout ends only the one session")
}

func TestSessionRevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessionService()
	login := time.Now().Add(-time.Hour)
	old := testLifetime.New(model.Identity{ID: "u1", Email: "a@x.test"}, "", login)
	bystander := testLifetime.New(model.Identity{ID: "u2", Email: "b@x.test"}, "", login)

	require.NoError(t, svc.RevokeAllForUser(ctx, "u1", time.Now()))

	revoked, err := svc.IsRevoked(ctx, old)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = svc.IsRevoked(ctx, bystander)
	require.NoError(t, err)
	assert.False(t, revoked)

	fresh := testLifetime.New(model.Identity{ID: "u1", Email: "a@x.test"}, "", time.Now().Add(time.Second))
	revoked, err = svc.IsRevoked(ctx, fresh)
	require.NoError(t, err)
	assert.False(t, revoked, "a later login is not affected")
}

func TestRevokeAllForUserWithinOneSecond(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessionService()
	second := time.Now().UTC().Truncate(time.Second).Add(-time.Minute)
	identity := model.Identity{ID: "u1", Email: "a@x.test", Role: model.RoleAdmin}

	early := issueAndParse(t, svc, testLifetime.New(identity, "", second.Add(100*time.Millisecond)))
	require.NoError(t, svc.RevokeAllForUser(ctx, "u1", second.Add(600*time.Millisecond)))
	late := issueAndParse(t, svc, testLifetime.New(identity, "", second.Add(900*time.Millisecond)))

	revoked, err := svc.IsRevoked(ctx, early)
	require.NoError(t, err)
	assert.True(t, revoked, "a login earlier in the same second keeps the old role")

	revoked, err = svc.IsRevoked(ctx, late)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func issueAndParse(t *testing.T, svc *SessionService, session model.Session) model.Session {
	t.Helper()
	token, err := svc.Issue(session)
	require.NoError(t, err)
	parsed, err := svc.Tokens().Parse(token)
	require.NoError(t, err)
	return parsed
}

func TestSessionRefreshUsesClock(t *testing.T) {
	svc := newTestSessionService()
	login := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	session := testLifetime.New(model.Identity{ID: "u1", Email: "a@x.test", Role: model.RoleUser}, "", login)

	svc.now = func() time.Time { return login.Add(2 * time.Hour) }
	_, refreshed := svc.Refresh(session)
	assert.False(t, refreshed)

	svc.now = func() time.Time { return login.Add(26 * time.Hour) }
	next, refreshed := svc.Refresh(session)
	assert.True(t, refreshed)
	assert.Equal(t, login.Add(26*time.Hour).Add(testLifetime.MaxAge), next.ExpiresAt)
}

func TestMemoryRevocationStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRevocationStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.RevokeSession(ctx, "s1", now.Add(time.Minute)))
	require.NoError(t, store.RevokeUserBefore(ctx, "u1", now, time.Minute))

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	revoked, err := store.IsSessionRevoked(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, revoked)

	before, err := store.UserRevokedBefore(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, before.IsZero())
}
