package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foundation_portal/internal/api"
	"foundation_portal/internal/app/bootstrap"
	"foundation_portal/internal/app/service"
	"foundation_portal/internal/common/security"
	"foundation_portal/internal/platform/config"
	"foundation_portal/internal/platform/logging"

	"github.com/sirupsen/logrus"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Could not load configuration")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.WithField("env", cfg.AppEnv).Info("Configuration loaded.")

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	// 2. Initialize Store (PostgreSQL or in-memory)
	store, err := bootstrap.OpenStore(startupCtx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Could not open store")
	}
	defer store.Close()

	// 3. Initialize Redis-backed coordination
	coord, err := bootstrap.OpenCoordination(startupCtx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Could not connect to Redis")
	}
	defer coord.Close()

	// 4. Initialize Session signing
	lifetime := security.Lifetime{MaxAge: cfg.SessionMaxAge, UpdateAge: cfg.SessionUpdateAge}
	tokens := security.NewSessionTokens(cfg.JWTKey, cfg.SessionMaxAge)

	// 5. Initialize Services
	sessionService := service.NewSessionService(tokens, lifetime, coord.Revocations)
	services := api.Services{
		Identity: service.NewIdentityService(store.Users, lifetime, cfg.BcryptCost, logger),
		Sessions: sessionService,
		Users:    service.NewUserService(store.Users, sessionService, logger),
		Expenses: service.NewExpenseService(store.Expenses, coord.Locker, logger),
		Tasks:    service.NewTaskService(store.Tasks, store.Users),
		Stats:    service.NewStatsService(store.Users, store.Expenses, store.Tasks),
	}
	if cfg.GoogleEnabled() {
		services.OAuth = service.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		logger.Info("Google sign-in enabled.")
	}

	// 6. Initialize Router & HTTP Server
	router := api.NewRouter(services, api.Options{
		BaseURL:      cfg.BaseURL,
		CookieSecure: cfg.CookieSecure,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.APIPort).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		logger.WithError(err).Error("Could not listen")
		return
	}

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
		return
	}
	logger.Info("Server stopped gracefully.")
}
