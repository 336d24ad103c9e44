package handler

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"foundation_portal/internal/api/middleware"
	"foundation_portal/internal/app/service"
	"foundation_portal/internal/common"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/securecookie"
	"github.com/sirupsen/logrus"
)

const (
	oauthStateCookie    = "oauth_state"
	oauthCallbackCookie = "oauth_callback"
	oauthCookiePath     = "/api/auth"
	oauthCookieTTL      = 10 * time.Minute
)

// OAuthHandler runs the browser authorization-code flow for Google.
type OAuthHandler struct {
	identity     *service.IdentityService
	sessions     *service.SessionService
	provider     service.OAuthProvider
	baseURL      string
	cookieSecure bool
	logger       logrus.FieldLogger
}

func NewOAuthHandler(
	identity *service.IdentityService,
	sessions *service.SessionService,
	provider service.OAuthProvider,
	baseURL string,
	cookieSecure bool,
	logger logrus.FieldLogger,
) *OAuthHandler {
	return &OAuthHandler{
		identity:     identity,
		sessions:     sessions,
		provider:     provider,
		baseURL:      baseURL,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

func (h *OAuthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/signin/google", h.signIn)     // GET /api/auth/signin/google
	r.Get("/callback/google", h.callback) // GET /api/auth/callback/google
}

func (h *OAuthHandler) signIn(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		common.RespondWithError(w, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}

	state := base64.RawURLEncoding.EncodeToString(securecookie.GenerateRandomKey(32))
	h.setFlowCookie(w, oauthStateCookie, state)
	if callbackURL := r.URL.Query().Get("callbackUrl"); callbackURL != "" {
		h.setFlowCookie(w, oauthCallbackCookie, base64.RawURLEncoding.EncodeToString([]byte(callbackURL)))
	}

	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		common.RespondWithError(w, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		common.RespondWithError(w, http.StatusBadRequest, "OAuth state mismatch")
		return
	}
	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		common.RespondWithError(w, http.StatusUnauthorized, "Google sign-in was cancelled: "+providerErr)
		return
	}

	token, err := h.provider.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	assertion, err := h.provider.FetchProfile(r.Context(), token.AccessToken)
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	identity, err := h.identity.AuthenticateWithOAuth(r.Context(), assertion)
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}

	session := h.identity.BuildSession(identity, token.AccessToken)
	tokenString, err := h.sessions.Issue(session)
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, fmt.Errorf("issue oauth session: %w", err))
		return
	}
	middleware.SetSessionCookie(w, tokenString, session.ExpiresAt, h.cookieSecure)

	requested := h.baseURL
	if cb, err := r.Cookie(oauthCallbackCookie); err == nil {
		if decoded, err := base64.RawURLEncoding.DecodeString(cb.Value); err == nil {
			requested = string(decoded)
		}
	}
	h.clearFlowCookie(w, oauthStateCookie)
	h.clearFlowCookie(w, oauthCallbackCookie)

	h.logger.WithFields(logrus.Fields{"user_id": identity.ID, "session_id": session.ID}).Info("oauth session created")
	http.Redirect(w, r, service.PostLoginRedirectTarget(requested, h.baseURL), http.StatusFound)
}

func (h *OAuthHandler) setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     oauthCookiePath,
		MaxAge:   int(oauthCookieTTL / time.Second),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *OAuthHandler) clearFlowCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     oauthCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
