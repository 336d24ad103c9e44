package handler

import (
	"net/http"

	"foundation_portal/internal/api/middleware"
	"foundation_portal/internal/app/service"
	"foundation_portal/internal/common"
	"foundation_portal/internal/common/security"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type UserHandler struct {
	identity *service.IdentityService
	users    *service.UserService
	guard    *middleware.SessionGuard
	logger   logrus.FieldLogger
}

func NewUserHandler(identity *service.IdentityService, users *service.UserService, guard *middleware.SessionGuard, logger logrus.FieldLogger) *UserHandler {
	return &UserHandler{identity: identity, users: users, guard: guard, logger: logger}
}

func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.register) // POST /api/v1/users

	r.Group(func(authed chi.Router) {
		authed.Use(h.guard.Authenticator)
		authed.With(middleware.RequirePolicy(security.ViewAdminReport)).Get("/", h.listUsers)

		authed.Group(func(admin chi.Router) {
			admin.Use(middleware.RequirePolicy(security.ManageUsers))
			admin.Patch("/{userID}/role", h.changeRole)          // PATCH /api/v1/users/{id}/role
			admin.Delete("/{userID}/sessions", h.revokeSessions) // DELETE /api/v1/users/{id}/sessions
		})
	})
}

func (h *UserHandler) register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.identity.Register(r.Context(), req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusCreated, user)
}

func (h *UserHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, users)
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (h *UserHandler) changeRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.GetUserIDFromContext(r.Context())

	var req changeRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.ChangeRole(r.Context(), actorID, chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, user)
}

func (h *UserHandler) revokeSessions(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.GetUserIDFromContext(r.Context())

	if err := h.users.RevokeSessions(r.Context(), actorID, chi.URLParam(r, "userID")); err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, map[string]bool{"revoked": true})
}
