package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/sirupsen/logrus"
)

var DB *sql.DB

// Connect opens the pooled connection, verifies it and applies pending migrations.
func Connect(ctx context.Context, connStr string, logger logrus.FieldLogger) (*sql.DB, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("connected to PostgreSQL")

	applied, err := Migrate(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if len(applied) > 0 {
		logger.WithField("migrations", applied).Info("database migrations applied")
	}

	DB = db
	return db, nil
}

func Close(logger logrus.FieldLogger) {
	if DB != nil {
		if err := DB.Close(); err != nil {
			logger.WithError(err).Warn("closing database")
			return
		}
		logger.Info("database connection closed")
	}
}
