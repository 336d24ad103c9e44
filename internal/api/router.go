package api

import (
	"net/http"
	"time"

	"foundation_portal/internal/api/handler"
	"foundation_portal/internal/api/middleware"
	"foundation_portal/internal/app/service"
	"foundation_portal/internal/platform/logging"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Identity *service.IdentityService
	Sessions *service.SessionService
	Users    *service.UserService
	Expenses *service.ExpenseService
	Tasks    *service.TaskService
	Stats    *service.StatsService

	// OAuth is nil when Google sign-in is not configured.
	OAuth service.OAuthProvider
}

type Options struct {
	BaseURL      string
	CookieSecure bool
	Logger       logrus.FieldLogger
}

func NewRouter(svc Services, opts Options) http.Handler {
	r := chi.NewRouter()
	guard := middleware.NewSessionGuard(svc.Sessions, opts.CookieSecure, opts.Logger)

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(logging.RequestLogger(opts.Logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Looks for a session token in "Authorization: Bearer T" or the session cookie
	// and puts the verified token in context. Authentication is enforced per route.
	r.Use(guard.Verifier())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Browser OAuth flow lives outside the versioned API so the callback URL is stable.
	oauthHandler := handler.NewOAuthHandler(svc.Identity, svc.Sessions, svc.OAuth, opts.BaseURL, opts.CookieSecure, opts.Logger)
	r.Route("/api/auth", oauthHandler.RegisterRoutes)

	r.Route("/api/v1", func(v1 chi.Router) {
		sessionHandler := handler.NewSessionHandler(svc.Identity, svc.Sessions, svc.OAuth, guard, opts.CookieSecure, opts.Logger)
		v1.Route("/sessions", sessionHandler.RegisterRoutes)

		userHandler := handler.NewUserHandler(svc.Identity, svc.Users, guard, opts.Logger)
		v1.Route("/users", userHandler.RegisterRoutes)

		expenseHandler := handler.NewExpenseHandler(svc.Expenses, guard, opts.Logger)
		v1.Route("/expenses", expenseHandler.RegisterRoutes)

		taskHandler := handler.NewTaskHandler(svc.Tasks, guard, opts.Logger)
		v1.Route("/tasks", taskHandler.RegisterRoutes)

		statsHandler := handler.NewStatsHandler(svc.Stats, guard, opts.Logger)
		v1.Route("/stats", statsHandler.RegisterRoutes)
	})

	return r
}
