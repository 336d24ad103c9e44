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

type TaskHandler struct {
	taskService *service.TaskService
	guard       *middleware.SessionGuard
	logger      logrus.FieldLogger
}

func NewTaskHandler(ts *service.TaskService, guard *middleware.SessionGuard, logger logrus.FieldLogger) *TaskHandler {
	return &TaskHandler{taskService: ts, guard: guard, logger: logger}
}

func (h *TaskHandler) RegisterRoutes(r chi.Router) {
	r.Use(h.guard.Authenticator)

	r.Get("/", h.listTasks)
	r.Get("/{taskID}", h.getTask)
	r.Patch("/{taskID}", h.updateTask)
	r.Patch("/{taskID}/complete", h.completeTask)

	// Creating and deleting tasks is reserved to admins exactly, not by hierarchy.
	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.RequirePolicy(security.ManageTasks))
		adminRouter.Post("/", h.createTask)
		adminRouter.Delete("/{taskID}", h.deleteTask)
	})
}

func (h *TaskHandler) createTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.taskService.Create(r.Context(), userID, req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusCreated, task)
}

func (h *TaskHandler) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.taskService.List(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, tasks)
}

func (h *TaskHandler) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.taskService.Get(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, task)
}

func (h *TaskHandler) updateTask(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.taskService.Update(r.Context(), chi.URLParam(r, "taskID"), req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, task)
}

type completeTaskRequest struct {
	Completed *bool `json:"completed"`
}

func (h *TaskHandler) completeTask(w http.ResponseWriter, r *http.Request) {
	completed := true
	if r.ContentLength != 0 {
		var req completeTaskRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Completed != nil {
			completed = *req.Completed
		}
	}

	task, err := h.taskService.SetCompleted(r.Context(), chi.URLParam(r, "taskID"), completed)
	if err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, task)
}

func (h *TaskHandler) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.taskService.Delete(r.Context(), chi.URLParam(r, "taskID")); err != nil {
		common.RespondWithServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
