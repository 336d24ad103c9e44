package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var RDB *redis.Client

type Options struct {
	Addr     string
	Password string
	DB       int
}

// ConnectRedis opens the shared client used for vote locks and session revocation.
func ConnectRedis(ctx context.Context, opts Options, logger logrus.FieldLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	logger.WithField("addr", opts.Addr).Info("connected to Redis")

	RDB = client
	return client, nil
}

func CloseRedis(logger logrus.FieldLogger) {
	if RDB != nil {
		if err := RDB.Close(); err != nil {
			logger.WithError(err).Warn("closing redis")
			return
		}
		logger.Info("redis connection closed")
	}
}
