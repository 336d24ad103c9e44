package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"foundation_portal/internal/app/service"
	"foundation_portal/internal/common"
	"foundation_portal/internal/common/security"
	"foundation_portal/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	SessionCtxKey  contextKey = "session"
	UserIDCtxKey   contextKey = "userID"
	UserRoleCtxKey contextKey = "userRole"

	// RefreshedTokenHeader carries a re-issued token to bearer-token clients.
	RefreshedTokenHeader = "X-Session-Token"
)

// SessionGuard authenticates requests whose token the jwtauth verifier already checked.
type SessionGuard struct {
	sessions     *service.SessionService
	cookieSecure bool
	logger       logrus.FieldLogger
}

func NewSessionGuard(sessions *service.SessionService, cookieSecure bool, logger logrus.FieldLogger) *SessionGuard {
	return &SessionGuard{sessions: sessions, cookieSecure: cookieSecure, logger: logger}
}

// Verifier finds the token in the Authorization header or the session cookie.
func (g *SessionGuard) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verify(g.sessions.Tokens().Auth(), jwtauth.TokenFromHeader, TokenFromSessionCookie)
}

func TokenFromSessionCookie(r *http.Request) string {
	cookie, err := r.Cookie(security.SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Authenticator rejects missing, invalid and revoked sessions, extends the session when
// its update age has passed, and puts the snapshot into the request context.
func (g *SessionGuard) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			if err == nil || errors.Is(err, jwtauth.ErrNoTokenFound) {
				common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
			} else {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			}
			return
		}

		session, err := g.sessions.FromClaims(claims)
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		revoked, err := g.sessions.IsRevoked(r.Context(), session)
		if err != nil {
			common.RespondWithServiceError(w, r, g.logger, err)
			return
		}
		if revoked {
			common.RespondWithError(w, http.StatusUnauthorized, "Session revoked, sign in again")
			return
		}

		if refreshed, ok := g.sessions.Refresh(session); ok {
			tokenString, err := g.sessions.Issue(refreshed)
			if err != nil {
				g.logger.WithError(err).WithField("session_id", session.ID).Warn("failed to re-issue session")
			} else {
				SetSessionCookie(w, tokenString, refreshed.ExpiresAt, g.cookieSecure)
				w.Header().Set(RefreshedTokenHeader, tokenString)
				session = refreshed
			}
		}

		ctx := context.WithValue(r.Context(), SessionCtxKey, session)
		ctx = context.WithValue(ctx, UserIDCtxKey, session.UserID)
		ctx = context.WithValue(ctx, UserRoleCtxKey, session.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePolicy must run after Authenticator.
func RequirePolicy(policy security.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRoleFromContext(r.Context())
			if !ok || !policy.Allows(role) {
				common.RespondWithError(w, http.StatusForbidden, "Forbidden: requires "+policy.String())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetSessionFromContext(ctx context.Context) (model.Session, bool) {
	session, ok := ctx.Value(SessionCtxKey).(model.Session)
	return session, ok
}

// Helper to get user ID from context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDCtxKey).(string)
	return userID, ok
}

func GetUserRoleFromContext(ctx context.Context) (model.Role, bool) {
	userRole, ok := ctx.Value(UserRoleCtxKey).(model.Role)
	return userRole, ok
}

func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     security.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires) / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     security.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
