package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foundation_portal/internal/common"
	"foundation_portal/internal/domain/model"
	"foundation_portal/internal/domain/repository"

	"github.com/google/uuid"
)

type TaskService struct {
	taskRepo repository.TaskRepository
	userRepo repository.UserRepository
}

func NewTaskService(taskRepo repository.TaskRepository, userRepo repository.UserRepository) *TaskService {
	return &TaskService{taskRepo: taskRepo, userRepo: userRepo}
}

type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
}

func (s *TaskService) Create(ctx context.Context, creatorID string, req CreateTaskRequest) (*model.Task, error) {
	task := &model.Task{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Priority:    model.Priority(req.Priority),
		DueDate:     req.DueDate,
		CreatedBy:   creatorID,
		AssignedTo:  req.AssignedTo,
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, task.AssignedTo); err != nil {
		return nil, err
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, id)
}

func (s *TaskService) List(ctx context.Context) ([]model.Task, error) {
	return s.taskRepo.List(ctx)
}

// Update applies the fields present in req.
func (s *TaskService) Update(ctx context.Context, id string, req UpdateTaskRequest) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Priority != nil {
		task.Priority = model.Priority(*req.Priority)
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.AssignedTo != nil {
		task.AssignedTo = req.AssignedTo
		if *req.AssignedTo == "" {
			task.AssignedTo = nil
		}
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}
	if req.AssignedTo != nil {
		if err := s.checkAssignee(ctx, task.AssignedTo); err != nil {
			return nil, err
		}
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task %s: %w", id, err)
	}
	return task, nil
}

func (s *TaskService) SetCompleted(ctx context.Context, id string, completed bool) (*model.Task, error) {
	return s.Update(ctx, id, UpdateTaskRequest{Completed: &completed})
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	return s.taskRepo.Delete(ctx, id)
}

func (s *TaskService) checkAssignee(ctx context.Context, assignee *string) error {
	if assignee == nil || *assignee == "" {
		return nil
	}
	if _, err := s.userRepo.FindByID(ctx, *assignee); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.Validationf("assignee %s does not exist", *assignee)
		}
		return err
	}
	return nil
}
