package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"foundation_portal/internal/common"

	"github.com/redis/go-redis/v9"
)

// RevocationStore remembers logged-out sessions and per-user "revoked before" marks.
// Entries only need to outlive the sessions they cancel.
type RevocationStore interface {
	RevokeSession(ctx context.Context, sessionID string, until time.Time) error
	IsSessionRevoked(ctx context.Context, sessionID string) (bool, error)
	RevokeUserBefore(ctx context.Context, userID string, at time.Time, ttl time.Duration) error
	UserRevokedBefore(ctx context.Context, userID string) (time.Time, error)
}

const (
	revokedSessionKeyPrefix = "session:revoked:"
	revokedUserKeyPrefix    = "session:user-revoked-before:"
)

type RedisRevocationStore struct {
	rdb *redis.Client
}

func NewRedisRevocationStore(rdb *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{rdb: rdb}
}

func (s *RedisRevocationStore) RevokeSession(ctx context.Context, sessionID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, revokedSessionKeyPrefix+sessionID, "1", ttl).Err(); err != nil {
		return common.StoreError("RedisRevocationStore.RevokeSession", err)
	}
	return nil
}

func (s *RedisRevocationStore) IsSessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, revokedSessionKeyPrefix+sessionID).Result()
	if err != nil {
		return false, common.StoreError("RedisRevocationStore.IsSessionRevoked", err)
	}
	return n > 0, nil
}

func (s *RedisRevocationStore) RevokeUserBefore(ctx context.Context, userID string, at time.Time, ttl time.Duration) error {
	value := strconv.FormatInt(at.UnixMilli(), 10)
	if err := s.rdb.Set(ctx, revokedUserKeyPrefix+userID, value, ttl).Err(); err != nil {
		return common.StoreError("RedisRevocationStore.RevokeUserBefore", err)
	}
	return nil
}

func (s *RedisRevocationStore) UserRevokedBefore(ctx context.Context, userID string) (time.Time, error) {
	value, err := s.rdb.Get(ctx, revokedUserKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, common.StoreError("RedisRevocationStore.UserRevokedBefore", err)
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, common.StoreError("RedisRevocationStore.UserRevokedBefore parse", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

type MemoryRevocationStore struct {
	mu       sync.Mutex
	sessions map[string]time.Time
	users    map[string]revokedMark
	now      func() time.Time
}

type revokedMark struct {
	at      time.Time
	expires time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		sessions: map[string]time.Time{},
		users:    map[string]revokedMark{},
		now:      time.Now,
	}
}

func (s *MemoryRevocationStore) RevokeSession(_ context.Context, sessionID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = until
	return nil
}

func (s *MemoryRevocationStore) IsSessionRevoked(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(until) {
		delete(s.sessions, sessionID)
		return false, nil
	}
	return true, nil
}

func (s *MemoryRevocationStore) RevokeUserBefore(_ context.Context, userID string, at time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = revokedMark{at: at.UTC().Truncate(time.Millisecond), expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryRevocationStore) UserRevokedBefore(_ context.Context, userID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mark, ok := s.users[userID]
	if !ok {
		return time.Time{}, nil
	}
	if !s.now().Before(mark.expires) {
		delete(s.users, userID)
		return time.Time{}, nil
	}
	return mark.at, nil
}
