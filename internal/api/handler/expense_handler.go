package handler

import (
	"net/http"
	"strconv"

	"foundation_portal/internal/api/middleware"
	"foundation_portal/internal/app/service"
	"foundation_portal/internal/common"
	"foundation_portal/internal/common/security"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type ExpenseHandler struct {
	expenseService *service.ExpenseService
	guard          *middleware.SessionGuard
	logger         logrus.FieldLogger
}

func NewExpenseHandler(es *service.ExpenseService, guard *middleware.SessionGuard, logger logrus.FieldLogger) *ExpenseHandler {
	return &ExpenseHandler{expenseService: es, guard: guard, logger: logger}
}

func (h *ExpenseHandler) RegisterRoutes(r chi.Router) {
	r.Use(h.guard.Authenticator)

	r.Get("/", h.listExpenses)          // GET /api/v1/expenses?category=...&approved=true
	r.Post("/", h.createExpense)        // POST /api/v1/expenses
	r.Get("/{expenseID}", h.getExpense) // GET /api/v1/expenses/{id}

	r.With(middleware.RequirePolicy(security.VoteOnExpenses)).
		Patch("/{expenseID}/approval", h.vote) // PATCH /api/v1/expenses/{id}/approval
}

func (h *ExpenseHandler) createExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.CreateExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	expense, err := h.expenseService.Create(r.Context(), userID, req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusCreated, expense)
}

func (h *ExpenseHandler) listExpenses(w http.ResponseWriter, r *http.Request) {
	filter := service.ExpenseListFilter{Category: r.URL.Query().Get("category")}
	if approvedStr := r.URL.Query().Get("approved"); approvedStr != "" {
		approved, err := strconv.ParseBool(approvedStr)
		if err != nil {
			common.RespondWithError(w, http.StatusBadRequest, "approved must be true or false")
			return
		}
		filter.Approved = &approved
	}

	expenses, err := h.expenseService.List(r.Context(), filter)
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, expenses)
}

func (h *ExpenseHandler) getExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := h.expenseService.Get(r.Context(), chi.URLParam(r, "expenseID"))
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, expense)
}

type voteRequest struct {
	ApproverID *string `json:"approverId"`
	Approved   *bool   `json:"approved"`
}

// vote records the signed-in administrator's vote. approverId may be omitted; when
// present it has to name the caller.
func (h *ExpenseHandler) vote(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req voteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Approved == nil {
		common.RespondWithError(w, http.StatusBadRequest, "approved is required")
		return
	}
	approverID := userID
	if req.ApproverID != nil && *req.ApproverID != userID {
		common.RespondWithError(w, http.StatusForbidden, "approverId must be the signed-in approver")
		return
	}

	expense, err := h.expenseService.Vote(r.Context(), chi.URLParam(r, "expenseID"), approverID, *req.Approved)
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, expense)
}
