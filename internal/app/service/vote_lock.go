package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"foundation_portal/internal/common"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// VoteLocker serializes read-modify-write cycles on one expense. Lock blocks until
// the key is free or ctx is done.
type VoteLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Release only if we still hold the lock.
var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end`)

const lockRetryInterval = 25 * time.Millisecond

type RedisVoteLocker struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger logrus.FieldLogger
}

func NewRedisVoteLocker(rdb *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *RedisVoteLocker {
	return &RedisVoteLocker{rdb: rdb, ttl: ttl, logger: logger}
}

func (l *RedisVoteLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := "lock:" + key
	lockValue := uuid.NewString() // Unique value for this lock instance

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, lockKey, lockValue, l.ttl).Result()
		if err != nil {
			return nil, common.StoreError("RedisVoteLocker.Lock", err)
		}
		if ok {
			return func() { l.release(lockKey, lockValue) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s: %w: %v", key, common.ErrServiceUnavailable, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisVoteLocker) release(lockKey, lockValue string) {
	// The request context may already be cancelled; release regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	deleted, err := releaseLockScript.Run(ctx, l.rdb, []string{lockKey}, lockValue).Int()
	if err != nil {
		l.logger.WithError(err).WithField("lock", lockKey).Error("failed to release lock")
		return
	}
	if deleted == 0 {
		l.logger.WithField("lock", lockKey).Warn("lock expired before release")
	}
}

// MemoryVoteLocker is the single-process fallback used when Redis is disabled.
// A key's slot lives only while someone holds or waits for it.
type MemoryVoteLocker struct {
	mu    sync.Mutex
	slots map[string]*memorySlot
}

type memorySlot struct {
	held chan struct{}
	refs int
}

func NewMemoryVoteLocker() *MemoryVoteLocker {
	return &MemoryVoteLocker{slots: map[string]*memorySlot{}}
}

func (l *MemoryVoteLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &memorySlot{held: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.held <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.held
				l.release(key, slot)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, slot)
		return nil, fmt.Errorf("lock %s: %w: %v", key, common.ErrServiceUnavailable, ctx.Err())
	}
}

func (l *MemoryVoteLocker) release(key string, slot *memorySlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *MemoryVoteLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
