package handler

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"foundation_portal/internal/api/middleware"
	"foundation_portal/internal/app/service"
	"foundation_portal/internal/common"
	"foundation_portal/internal/common/security"
	"foundation_portal/internal/domain/model"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type SessionHandler struct {
	identity     *service.IdentityService
	sessions     *service.SessionService
	oauth        service.OAuthProvider
	guard        *middleware.SessionGuard
	limiter      *loginLimiter
	cookieSecure bool
	logger       logrus.FieldLogger
}

func NewSessionHandler(
	identity *service.IdentityService,
	sessions *service.SessionService,
	oauth service.OAuthProvider,
	guard *middleware.SessionGuard,
	cookieSecure bool,
	logger logrus.FieldLogger,
) *SessionHandler {
	return &SessionHandler{
		identity:     identity,
		sessions:     sessions,
		oauth:        oauth,
		guard:        guard,
		limiter:      newLoginLimiter(loginFailureLimit, loginFailureWindow),
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.login) // POST /api/v1/sessions

	r.Group(func(authed chi.Router) {
		authed.Use(h.guard.Authenticator)
		authed.Get("/", h.current)   // GET /api/v1/sessions
		authed.Delete("/", h.logout) // DELETE /api/v1/sessions
	})
}

// loginRequest carries either credentials or a Google access token.
type loginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Provider    string `json:"provider"`
	AccessToken string `json:"access_token"`
}

type sessionResponse struct {
	Session     model.Session        `json:"session"`
	User        model.Identity       `json:"user"`
	Permissions security.Permissions `json:"permissions"`
	Token       string               `json:"token,omitempty"`
}

func (h *SessionHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		identity model.Identity
		upstream string
		err      error
	)
	switch model.Provider(strings.ToLower(strings.TrimSpace(req.Provider))) {
	case "", model.ProviderCredentials:
		identity, err = h.loginWithCredentials(r, req)
	case model.ProviderGoogle:
		identity, err = h.loginWithGoogle(r, req)
		upstream = req.AccessToken
	default:
		err = common.Validationf("provider %q is not supported", req.Provider)
	}
	if errors.Is(err, errTooManyAttempts) {
		common.RespondWithError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}

	session := h.identity.BuildSession(identity, upstream)
	token, err := h.sessions.Issue(session)
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	middleware.SetSessionCookie(w, token, session.ExpiresAt, h.cookieSecure)

	h.logger.WithFields(logrus.Fields{"user_id": identity.ID, "session_id": session.ID}).Info("session created")
	common.RespondWithData(w, http.StatusOK, sessionResponse{
		Session:     session,
		User:        identity,
		Permissions: security.PermissionsFor(identity.Role),
		Token:       token,
	})
}

var errTooManyAttempts = errors.New("too many failed login attempts, try again later")

func (h *SessionHandler) loginWithCredentials(r *http.Request, req loginRequest) (model.Identity, error) {
	key := model.NormalizeEmail(req.Email) + "|" + clientIP(r)
	now := time.Now()
	if h.limiter.blocked(key, now) {
		return model.Identity{}, errTooManyAttempts
	}

	identity, err := h.identity.AuthenticateWithCredentials(r.Context(), req.Email, req.Password)
	if errors.Is(err, common.ErrInvalidCredentials) {
		h.limiter.addFailure(key, now)
	}
	if err != nil {
		return model.Identity{}, err
	}
	h.limiter.reset(key)
	return identity, nil
}

func (h *SessionHandler) loginWithGoogle(r *http.Request, req loginRequest) (model.Identity, error) {
	if h.oauth == nil {
		return model.Identity{}, fmt.Errorf("google sign-in is not configured: %w", common.ErrServiceUnavailable)
	}
	assertion, err := h.oauth.FetchProfile(r.Context(), req.AccessToken)
	if err != nil {
		return model.Identity{}, err
	}
	return h.identity.AuthenticateWithOAuth(r.Context(), assertion)
}

func (h *SessionHandler) current(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing session context")
		return
	}
	common.RespondWithData(w, http.StatusOK, sessionResponse{
		Session:     session,
		User:        session.Identity(),
		Permissions: security.PermissionsFor(session.Role),
	})
}

func (h *SessionHandler) logout(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing session context")
		return
	}
	if err := h.sessions.Revoke(r.Context(), session); err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	middleware.ClearSessionCookie(w, h.cookieSecure)
	common.RespondWithData(w, http.StatusOK, map[string]bool{"revoked": true})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
