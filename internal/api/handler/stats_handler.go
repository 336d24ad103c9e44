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

type StatsHandler struct {
	statsService *service.StatsService
	guard        *middleware.SessionGuard
	logger       logrus.FieldLogger
}

func NewStatsHandler(ss *service.StatsService, guard *middleware.SessionGuard, logger logrus.FieldLogger) *StatsHandler {
	return &StatsHandler{statsService: ss, guard: guard, logger: logger}
}

func (h *StatsHandler) RegisterRoutes(r chi.Router) {
	r.Use(h.guard.Authenticator)
	r.Use(middleware.RequirePolicy(security.ViewAdminReport))
	r.Get("/", h.getStats) // GET /api/v1/stats
}

func (h *StatsHandler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.Snapshot(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, stats)
}
