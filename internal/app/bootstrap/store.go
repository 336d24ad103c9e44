package bootstrap

import (
	"context"
	"fmt"

	"foundation_portal/internal/app/service"
	"foundation_portal/internal/domain/repository"
	"foundation_portal/internal/domain/repository/memory"
	"foundation_portal/internal/platform/cache"
	"foundation_portal/internal/platform/config"
	"foundation_portal/internal/platform/database"

	"github.com/sirupsen/logrus"
)

// Store holds the repositories selected by STORE_DRIVER.
type Store struct {
	Users    repository.UserRepository
	Expenses repository.ExpenseRepository
	Tasks    repository.TaskRepository

	closers []func()
}

func OpenStore(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("Using in-memory store, data is lost on restart")
		return &Store{
			Users:    memory.NewUserRepository(),
			Expenses: memory.NewExpenseRepository(),
			Tasks:    memory.NewTaskRepository(),
		}, nil
	case config.StoreDriverPostgres:
		db, err := database.Connect(ctx, cfg.DBConnStr, logger)
		if err != nil {
			return nil, err
		}
		return &Store{
			Users:    repository.NewPgUserRepository(db),
			Expenses: repository.NewPgExpenseRepository(db),
			Tasks:    repository.NewPgTaskRepository(db),
			closers:  []func(){func() { database.Close(logger) }},
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func (s *Store) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// Coordination is the cross-instance state: vote locks and session revocations.
type Coordination struct {
	Locker      service.VoteLocker
	Revocations service.RevocationStore

	close func()
}

// OpenCoordination uses Redis when enabled. The in-process fallback is only safe
// for a single server instance.
func OpenCoordination(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*Coordination, error) {
	if !cfg.RedisEnabled {
		logger.Warn("Redis disabled, vote locks and session revocations are process-local")
		return &Coordination{
			Locker:      service.NewMemoryVoteLocker(),
			Revocations: service.NewMemoryRevocationStore(),
			close:       func() {},
		}, nil
	}

	rdb, err := cache.ConnectRedis(ctx, cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		return nil, err
	}
	return &Coordination{
		Locker:      service.NewRedisVoteLocker(rdb, cfg.VoteLockTTL, logger),
		Revocations: service.NewRedisRevocationStore(rdb),
		close:       func() { cache.CloseRedis(logger) },
	}, nil
}

func (c *Coordination) Close() {
	c.close()
}
